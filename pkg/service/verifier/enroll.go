package verifier

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Enrolled reports whether a voice profile exists
func (e *Eagle) Enrolled() bool {
	info, err := os.Stat(e.cfg.ProfilePath)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Enroll records the master voice from the microphone and writes the profile.
// The enroller writes next to the profile, which is replaced only once the new
// one exists, so a failed run keeps the previous profile.
func (e *Eagle) Enroll(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(e.cfg.ProfilePath), 0755); err != nil {
		return goerr.Wrap(err, "failed to create profile directory", goerr.V("path", e.cfg.ProfilePath))
	}

	pending := e.cfg.ProfilePath + ".new"
	if err := os.Remove(pending); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to remove stale profile", goerr.V("path", pending))
	}
	defer os.Remove(pending)

	cmd := exec.CommandContext(ctx, e.cfg.EnrollCommand,
		"enroll",
		"--access_key", e.cfg.AccessKey,
		"--output_profile_path", pending,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return goerr.Wrap(err, "enrollment process failed",
			goerr.V("command", e.cfg.EnrollCommand),
			goerr.V("stderr", strings.TrimSpace(stderr.String())))
	}

	info, err := os.Stat(pending)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return goerr.New("enrollment finished without a profile", goerr.V("path", pending))
	}
	if err := os.Rename(pending, e.cfg.ProfilePath); err != nil {
		return goerr.Wrap(err, "failed to install profile", goerr.V("path", e.cfg.ProfilePath))
	}
	return nil
}
