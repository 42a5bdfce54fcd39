package wakeword

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultCommand     = "porcupine_demo_mic"
	DefaultSensitivity = 0.9
)

// ErrEngineExited is returned by Wait when the engine process is gone
var ErrEngineExited = goerr.New("wake word engine exited")

// Config of the wake word engine process
type Config struct {
	Command      string
	AccessKey    string
	KeywordPaths []string
	Sensitivity  float64
}

// Detector runs the wake word engine and turns its "Detected" lines into
// events. At most one event is kept pending while nobody waits.
type Detector struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	events chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	exitErr error
}

func Start(ctx context.Context, cfg Config) (*Detector, error) {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = DefaultSensitivity
	}

	args := []string{"--access_key", cfg.AccessKey}
	if len(cfg.KeywordPaths) > 0 {
		sens := make([]string, len(cfg.KeywordPaths))
		for i := range sens {
			sens[i] = strconv.FormatFloat(cfg.Sensitivity, 'f', -1, 64)
		}
		args = append(args, "--keyword_paths")
		args = append(args, cfg.KeywordPaths...)
		args = append(args, "--sensitivities")
		args = append(args, sens...)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, cfg.Command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, goerr.Wrap(err, "failed to open wake word engine output")
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, goerr.Wrap(err, "failed to start wake word engine", goerr.V("command", cfg.Command))
	}

	d := &Detector{
		cmd:    cmd,
		cancel: cancel,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run(logging.With(procCtx, logging.From(ctx)), stdout)

	return d, nil
}

func (d *Detector) run(ctx context.Context, stdout io.Reader) {
	logger := logging.From(ctx)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("wake word engine", "line", line)
		if !strings.Contains(line, "Detected") {
			continue
		}
		select {
		case d.events <- struct{}{}:
		default:
		}
	}

	err := d.cmd.Wait()
	d.mu.Lock()
	if err != nil {
		d.exitErr = goerr.Wrap(ErrEngineExited, "wake word engine stopped", goerr.V("cause", err))
	} else {
		d.exitErr = goerr.Wrap(ErrEngineExited, "wake word engine stopped")
	}
	d.mu.Unlock()
	close(d.done)
}

// Wait blocks until the wake word is heard. It fails when the engine exits.
func (d *Detector) Wait(ctx context.Context) error {
	select {
	case <-d.events:
		return nil
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.exitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discard drops a wake event that arrived while nobody was waiting
func (d *Detector) Discard() {
	select {
	case <-d.events:
	default:
	}
}

// Close stops the engine process
func (d *Detector) Close() error {
	d.cancel()
	<-d.done
	return nil
}
