package verifier

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultTestCommand   = "eagle_demo_file"
	DefaultEnrollCommand = "eagle_demo_mic"
	DefaultProfilePath   = "master_sh/master_voice"
)

// Segment lines look like "time: 1.28 sec | scores -> `master_voice`: 0.734"
var segmentPattern = regexp.MustCompile("time:\\s*(\\d+(?:\\.\\d+)?)\\s*sec\\b.*?scores?\\b[^:]*:\\s*(\\d+(?:\\.\\d+)?)")

// Config of the voice biometric engine processes
type Config struct {
	AccessKey     string
	ProfilePath   string
	TestCommand   string
	EnrollCommand string
}

// Eagle runs the speaker recognition engine as a subprocess
type Eagle struct {
	cfg Config
}

func New(cfg Config) *Eagle {
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = DefaultProfilePath
	}
	if cfg.TestCommand == "" {
		cfg.TestCommand = DefaultTestCommand
	}
	if cfg.EnrollCommand == "" {
		cfg.EnrollCommand = DefaultEnrollCommand
	}
	return &Eagle{cfg: cfg}
}

func (e *Eagle) ProfilePath() string {
	return e.cfg.ProfilePath
}

// Verify scores the recorded utterance against the enrolled profile
func (e *Eagle) Verify(ctx context.Context, audioPath string) ([]model.Segment, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, goerr.Wrap(err, "utterance audio is not readable", goerr.V("path", audioPath))
	}

	cmd := exec.CommandContext(ctx, e.cfg.TestCommand,
		"test",
		"--access_key", e.cfg.AccessKey,
		"--input_profile_paths", e.cfg.ProfilePath,
		"--test_audio_path", audioPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, goerr.Wrap(err, "verifier process failed",
			goerr.V("command", e.cfg.TestCommand),
			goerr.V("stderr", strings.TrimSpace(stderr.String())))
	}

	segments, err := ParseSegments(&stdout)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, goerr.New("no score in verifier output",
			goerr.V("stdout", strings.TrimSpace(stdout.String())))
	}
	return segments, nil
}

// ParseSegments collects every scored line of the verifier output. Other lines
// are ignored.
func ParseSegments(r io.Reader) ([]model.Segment, error) {
	var segments []model.Segment

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := segmentPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		segments = append(segments, model.Segment{Time: t, Score: score})
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read verifier output")
	}

	return segments, nil
}
