package listen_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/repository"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/brewie/voicegate/pkg/usecase/listen"
	"github.com/brewie/voicegate/pkg/usecase/speech"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockWake struct {
	events   int
	pending  int
	discards int
	err      error
}

func (m *mockWake) Discard() {
	m.discards++
	m.pending = 0
}

func (m *mockWake) Wait(ctx context.Context) error {
	if m.pending > 0 {
		m.pending--
		return nil
	}
	if m.events > 0 {
		m.events--
		return nil
	}
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type mockRecorder struct {
	samples []float32
	err     error
}

func (m *mockRecorder) Record(ctx context.Context) ([]float32, error) {
	return m.samples, m.err
}

type mockTranscriber struct {
	text  string
	err   error
	paths []string
}

func (m *mockTranscriber) Transcribe(ctx context.Context, wavPath string) (string, error) {
	m.paths = append(m.paths, wavPath)
	if _, err := os.Stat(wavPath); err != nil {
		return "", err
	}
	return m.text, m.err
}

type mockHandler struct {
	utterances []command.Utterance
	sessions   []*command.Session
}

func (m *mockHandler) Handle(ctx context.Context, sess *command.Session, u command.Utterance) *model.Cycle {
	m.utterances = append(m.utterances, u)
	m.sessions = append(m.sessions, sess)
	return &model.Cycle{ID: model.NewCycleID(), Transcript: u.Transcript}
}

type mockSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (m *mockSpeaker) Speak(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, text)
}

type mockHead struct {
	moves []string
}

func (m *mockHead) Pan(position float64, d time.Duration) error {
	m.moves = append(m.moves, fmt.Sprintf("pan %.1f %s", position, d))
	return nil
}

func (m *mockHead) Tilt(position float64, d time.Duration) error {
	m.moves = append(m.moves, fmt.Sprintf("tilt %.1f %s", position, d))
	return nil
}

func voice() []float32 {
	s := make([]float32, 1600)
	for i := range s {
		s[i] = 0.3
	}
	return s
}

func TestCycleDispatchesTranscript(t *testing.T) {
	dir := t.TempDir()
	handler := &mockHandler{}
	stt := &mockTranscriber{text: "  Move Forward "}
	sp := &mockSpeaker{}
	head := &mockHead{}

	l := listen.New(handler, &mockWake{}, &mockRecorder{samples: voice()}, stt, sp,
		listen.WithAudioDir(dir),
		listen.WithHead(head))
	l.Cycle(context.Background())

	gt.A(t, handler.utterances).Length(1)
	u := handler.utterances[0]
	gt.Equal(t, u.Transcript, "move forward")
	gt.Equal(t, u.AudioPath, filepath.Join(dir, speech.Key("move forward")+".wav"))
	_, err := os.Stat(u.AudioPath)
	gt.NoError(t, err)

	gt.A(t, sp.spoken).Length(0)
	gt.Equal(t, head.moves, []string{"tilt 0.2 500ms", "tilt 0.0 500ms", "pan 0.0 500ms", "tilt 0.0 500ms"})

	// no leftover capture files
	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.A(t, entries).Length(1)
}

func TestCycleNotRecognized(t *testing.T) {
	testCases := []struct {
		name     string
		recorder *mockRecorder
		stt      *mockTranscriber
	}{
		{"silence", &mockRecorder{}, &mockTranscriber{text: "hello"}},
		{"recorder error", &mockRecorder{err: goerr.New("device lost")}, &mockTranscriber{text: "hello"}},
		{"empty transcript", &mockRecorder{samples: voice()}, &mockTranscriber{text: "   "}},
		{"transcriber error", &mockRecorder{samples: voice()}, &mockTranscriber{err: goerr.New("stt down")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := &mockHandler{}
			sp := &mockSpeaker{}
			repo := repository.NewMemory()

			l := listen.New(handler, &mockWake{}, tc.recorder, tc.stt, sp,
				listen.WithAudioDir(t.TempDir()),
				listen.WithRepository(repo))
			l.Cycle(context.Background())

			gt.A(t, handler.utterances).Length(0)
			gt.Equal(t, sp.spoken, []string{listen.NoticeNotRecognized})

			cycles, err := repo.ListCycles(context.Background(), 0, 10)
			gt.NoError(t, err)
			gt.A(t, cycles).Length(1)
			gt.Equal(t, cycles[0].Outcome, model.OutcomeNotRecognized)
		})
	}
}

func TestCycleScout(t *testing.T) {
	handler := &mockHandler{}
	sp := &mockSpeaker{}
	head := &mockHead{}

	l := listen.New(handler, &mockWake{}, &mockRecorder{samples: voice()}, &mockTranscriber{text: "attack the enemy"}, sp,
		listen.WithAudioDir(t.TempDir()),
		listen.WithHead(head),
		listen.WithScoutPause(0))
	l.Cycle(context.Background())

	gt.Equal(t, sp.spoken, []string{listen.NoticeScout})
	gt.Equal(t, head.moves, []string{
		"tilt 0.2 500ms",
		"tilt 0.0 500ms",
		"pan 1.0 250ms",
		"pan -1.2 4.5s",
		"pan 0.0 500ms",
		"tilt 0.0 500ms",
	})
	gt.A(t, handler.utterances).Length(1)
}

func TestRun(t *testing.T) {
	t.Run("serves events until canceled", func(t *testing.T) {
		handler := &mockHandler{}
		wake := &mockWake{events: 2}
		l := listen.New(handler, wake, &mockRecorder{samples: voice()}, &mockTranscriber{text: "hello"}, &mockSpeaker{},
			listen.WithAudioDir(t.TempDir()),
			listen.WithHistory(true))

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		gt.NoError(t, l.Run(ctx))

		gt.A(t, handler.utterances).Length(2)
		gt.True(t, handler.sessions[0] == handler.sessions[1])
		gt.True(t, l.Session().HistoryMode)
	})

	t.Run("events heard during a cycle are dropped", func(t *testing.T) {
		handler := &mockHandler{}
		wake := &mockWake{events: 1, pending: 1}
		l := listen.New(handler, wake, &mockRecorder{samples: voice()}, &mockTranscriber{text: "hello"}, &mockSpeaker{},
			listen.WithAudioDir(t.TempDir()))

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		gt.NoError(t, l.Run(ctx))

		gt.A(t, handler.utterances).Length(1)
		gt.Equal(t, wake.discards, 2)
	})

	t.Run("wake word engine failure ends the loop", func(t *testing.T) {
		wake := &mockWake{err: goerr.New("engine exited")}
		l := listen.New(&mockHandler{}, wake, &mockRecorder{}, &mockTranscriber{}, &mockSpeaker{})
		gt.Error(t, l.Run(context.Background()))
	})
}
