package listen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/audio"
	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/repository"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/brewie/voicegate/pkg/usecase/speech"
	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// NoticeNotRecognized is spoken when no transcript could be made
const NoticeNotRecognized = "I didn't catch that"

// NoticeScout is spoken before dispatching combat related requests
const NoticeScout = "I'll scout out the situation...."

var scoutWords = []string{"save", "safe", "attack", "enemy", "opponent", "fire", "snipe", "sniper"}

const defaultTranscribeTimeout = 30 * time.Second

// WakeDetector blocks until the wake word is heard. Discard drops an event
// heard while a cycle was running.
type WakeDetector interface {
	Wait(ctx context.Context) error
	Discard()
}

// Recorder captures one utterance as mono samples at audio.SampleRate
type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
}

// Handler runs the dispatch pipeline for one utterance
type Handler interface {
	Handle(ctx context.Context, sess *command.Session, u command.Utterance) *model.Cycle
}

// Loop is the wake word, capture, recognize and dispatch cycle
type Loop struct {
	handler     Handler
	wake        WakeDetector
	recorder    Recorder
	transcriber adapter.Transcriber
	speaker     command.Speaker
	head        Head
	repo        repository.Repository

	session           *command.Session
	audioDir          string
	scoutPause        time.Duration
	transcribeTimeout time.Duration
}

type Option func(*Loop)

func WithHead(head Head) Option {
	return func(l *Loop) {
		l.head = head
	}
}

// WithAudioDir sets where recorded utterances are kept
func WithAudioDir(dir string) Option {
	return func(l *Loop) {
		l.audioDir = dir
	}
}

// WithHistory keeps the conversation across cycles
func WithHistory(enabled bool) Option {
	return func(l *Loop) {
		l.session.HistoryMode = enabled
	}
}

// WithRepository records cycles that end before dispatch
func WithRepository(repo repository.Repository) Option {
	return func(l *Loop) {
		l.repo = repo
	}
}

func WithScoutPause(d time.Duration) Option {
	return func(l *Loop) {
		l.scoutPause = d
	}
}

func New(handler Handler, wake WakeDetector, recorder Recorder, transcriber adapter.Transcriber, speaker command.Speaker, opts ...Option) *Loop {
	l := &Loop{
		handler:           handler,
		wake:              wake,
		recorder:          recorder,
		transcriber:       transcriber,
		speaker:           speaker,
		head:              noHead{},
		session:           &command.Session{},
		audioDir:          "audio_in",
		scoutPause:        500 * time.Millisecond,
		transcribeTimeout: defaultTranscribeTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Session returns the conversation owned by the loop
func (l *Loop) Session() *command.Session {
	return l.session
}

// Run serves wake word events until ctx is done or the wake word engine fails
func (l *Loop) Run(ctx context.Context) error {
	logger := logging.From(ctx)
	logger.Info("listening for wake word")

	for {
		l.wake.Discard()
		if err := l.wake.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return goerr.Wrap(err, "wake word detection failed")
		}

		logger.Info("wake word detected")
		l.Cycle(ctx)
	}
}

// Cycle captures and dispatches one utterance after a wake word
func (l *Loop) Cycle(ctx context.Context) {
	logger := logging.From(ctx)
	l.lookUp(ctx)

	transcript, audioPath, err := l.recognize(ctx)
	if err != nil || transcript == "" {
		if err != nil {
			logger.Warn("recognition failed", "error", err)
		}
		l.speak(ctx, NoticeNotRecognized)
		l.lookDown(ctx)
		l.pan(ctx, 0.0, gestureDuration)
		l.recordMiss(ctx)
		return
	}

	l.lookDown(ctx)
	if isScoutRequest(transcript) {
		l.speak(ctx, NoticeScout)
		l.scout(ctx)
	}

	l.handler.Handle(ctx, l.session, command.Utterance{
		Transcript: transcript,
		AudioPath:  audioPath,
	})
	l.neutral(ctx)
}

// recognize records an utterance, transcribes it and keeps the audio under
// the hash of its transcript
func (l *Loop) recognize(ctx context.Context) (string, string, error) {
	samples, err := l.recorder.Record(ctx)
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to record utterance")
	}
	if len(samples) == 0 {
		return "", "", nil
	}

	if err := os.MkdirAll(l.audioDir, 0755); err != nil {
		return "", "", goerr.Wrap(err, "failed to create audio directory", goerr.V("dir", l.audioDir))
	}
	tmp, err := os.CreateTemp(l.audioDir, ".capture-*.wav")
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to create capture file")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := audio.WriteWAV(tmpPath, samples, audio.SampleRate); err != nil {
		return "", "", err
	}

	tctx, cancel := context.WithTimeout(ctx, l.transcribeTimeout)
	defer cancel()
	text, err := l.transcriber.Transcribe(tctx, tmpPath)
	if err != nil {
		return "", "", goerr.Wrap(err, "failed to transcribe utterance")
	}

	transcript := strings.ToLower(strings.TrimSpace(text))
	if transcript == "" {
		return "", "", nil
	}

	audioPath := filepath.Join(l.audioDir, speech.Key(transcript)+".wav")
	if err := os.Rename(tmpPath, audioPath); err != nil {
		return "", "", goerr.Wrap(err, "failed to keep utterance audio", goerr.V("path", audioPath))
	}
	return transcript, audioPath, nil
}

func isScoutRequest(transcript string) bool {
	for _, w := range scoutWords {
		if strings.Contains(transcript, w) {
			return true
		}
	}
	return false
}

func (l *Loop) speak(ctx context.Context, text string) {
	if l.speaker != nil {
		l.speaker.Speak(ctx, text)
	}
}

func (l *Loop) recordMiss(ctx context.Context) {
	if l.repo == nil {
		return
	}
	cycle := &model.Cycle{
		ID:        model.NewCycleID(),
		Outcome:   model.OutcomeNotRecognized,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.PutCycle(ctx, cycle); err != nil {
		logging.From(ctx).Warn("failed to record cycle", "error", err)
	}
}
