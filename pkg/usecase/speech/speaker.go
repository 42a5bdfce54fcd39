package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/brewie/voicegate/pkg/utils/logging"
)

// Player plays an audio file, returning early when ctx is done
type Player interface {
	Play(ctx context.Context, path string) error
}

// Speaker synthesizes notices through the cache and plays them in the
// background. Overlapping notices are mixed.
type Speaker struct {
	cache  *Cache
	player Player

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewSpeaker(cache *Cache, player Player) *Speaker {
	root, cancel := context.WithCancel(context.Background())
	return &Speaker{
		cache:  cache,
		player: player,
		root:   root,
		cancel: cancel,
	}
}

// Speak returns once the audio is ready and playback has started
func (s *Speaker) Speak(ctx context.Context, text string) {
	logger := logging.From(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	path, err := s.cache.Artifact(ctx, text)
	if err != nil {
		s.wg.Done()
		logger.Error("cannot prepare speech", "text", text, "error", err)
		return
	}

	logger.Info("speaking", "text", text)
	playCtx := logging.With(s.root, logger)
	go func() {
		defer s.wg.Done()
		if err := s.player.Play(playCtx, path); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("playback failed", "path", path, "error", err)
		}
	}()
}

// Wait blocks until every started playback has finished
func (s *Speaker) Wait() {
	s.wg.Wait()
}

// Stop interrupts all playback and disables further speech
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// PrintSpeaker writes notices to w instead of playing them
type PrintSpeaker struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrintSpeaker(w io.Writer) *PrintSpeaker {
	return &PrintSpeaker{w: w}
}

func (p *PrintSpeaker) Speak(ctx context.Context, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "🔊 %s\n", text)
}

func (p *PrintSpeaker) Wait() {}

func (p *PrintSpeaker) Stop() {}
