package speech_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/usecase/speech"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockSynth struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (m *mockSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte("mp3:" + text), nil
}

type mockPlayer struct {
	mu     sync.Mutex
	paths  []string
	block  bool
	played chan struct{}
}

func newMockPlayer(block bool) *mockPlayer {
	return &mockPlayer{block: block, played: make(chan struct{}, 16)}
}

func (m *mockPlayer) Play(ctx context.Context, path string) error {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	m.played <- struct{}{}

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (m *mockPlayer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}

func TestKey(t *testing.T) {
	gt.Equal(t, speech.Key("ready"), speech.Key("ready"))
	gt.True(t, speech.Key("ready") != speech.Key("Ready"))
	gt.Equal(t, len(speech.Key("What's up? /tmp/../x")), 64)
}

func TestCacheSynthesizesOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	synth := &mockSynth{}

	cache, err := speech.NewCache(dir, synth)
	gt.NoError(t, err)

	p1, err := cache.Artifact(ctx, "ready")
	gt.NoError(t, err)
	p2, err := cache.Artifact(ctx, "ready")
	gt.NoError(t, err)

	gt.Equal(t, p1, p2)
	gt.Equal(t, synth.calls.Load(), int32(1))
	gt.Equal(t, p1, filepath.Join(dir, speech.Key("ready")+".mp3"))

	data, err := os.ReadFile(p1)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "mp3:ready")

	p3, err := cache.Artifact(ctx, "I am ready")
	gt.NoError(t, err)
	gt.True(t, p3 != p1)
	gt.Equal(t, synth.calls.Load(), int32(2))
}

func TestCacheConcurrentMisses(t *testing.T) {
	synth := &mockSynth{delay: 50 * time.Millisecond}
	cache, err := speech.NewCache(t.TempDir(), synth)
	gt.NoError(t, err)

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.Artifact(context.Background(), "Checking your voice")
			gt.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	gt.Equal(t, synth.calls.Load(), int32(1))
	for _, p := range paths {
		gt.Equal(t, p, paths[0])
	}
}

func TestCacheReusesFilesFromPreviousRun(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, speech.Key("hello")+".mp3"), []byte("old"), 0644))

	synth := &mockSynth{}
	cache, err := speech.NewCache(dir, synth)
	gt.NoError(t, err)

	_, err = cache.Artifact(context.Background(), "hello")
	gt.NoError(t, err)
	gt.Equal(t, synth.calls.Load(), int32(0))
}

func TestCacheSynthesisError(t *testing.T) {
	synth := &mockSynth{err: goerr.New("tts down")}
	cache, err := speech.NewCache(t.TempDir(), synth)
	gt.NoError(t, err)

	_, err = cache.Artifact(context.Background(), "hello")
	gt.Error(t, err)

	// a failed synthesis is not cached
	synth.err = nil
	_, err = cache.Artifact(context.Background(), "hello")
	gt.NoError(t, err)
	gt.Equal(t, synth.calls.Load(), int32(2))
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

type objectWriter struct {
	bytes.Buffer
	key string
	s   *memoryStorage
}

func (w *objectWriter) Close() error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	w.s.objects[w.key] = w.Bytes()
	return nil
}

func (m *memoryStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &objectWriter{key: key, s: m}, nil
}

func (m *memoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, goerr.Wrap(adapter.ErrObjectNotFound, "missing", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestCacheSharedStorage(t *testing.T) {
	ctx := context.Background()
	storage := &memoryStorage{objects: map[string][]byte{}}

	first := &mockSynth{}
	c1, err := speech.NewCache(t.TempDir(), first, speech.WithStorage(storage))
	gt.NoError(t, err)
	_, err = c1.Artifact(ctx, "Master verified")
	gt.NoError(t, err)
	gt.Equal(t, first.calls.Load(), int32(1))
	gt.Equal(t, string(storage.objects[speech.Key("Master verified")+".mp3"]), "mp3:Master verified")

	// another robot with an empty local directory downloads instead of synthesizing
	second := &mockSynth{}
	c2, err := speech.NewCache(t.TempDir(), second, speech.WithStorage(storage))
	gt.NoError(t, err)
	path, err := c2.Artifact(ctx, "Master verified")
	gt.NoError(t, err)
	gt.Equal(t, second.calls.Load(), int32(0))

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "mp3:Master verified")
}

func TestSpeakerPlaysCachedArtifact(t *testing.T) {
	synth := &mockSynth{}
	cache, err := speech.NewCache(t.TempDir(), synth)
	gt.NoError(t, err)
	player := newMockPlayer(false)

	sp := speech.NewSpeaker(cache, player)
	sp.Speak(context.Background(), "ready")
	sp.Speak(context.Background(), "ready")
	sp.Wait()

	gt.Equal(t, synth.calls.Load(), int32(1))
	gt.Equal(t, player.count(), 2)
	gt.Equal(t, player.paths[0], player.paths[1])
}

func TestSpeakerStop(t *testing.T) {
	cache, err := speech.NewCache(t.TempDir(), &mockSynth{})
	gt.NoError(t, err)
	player := newMockPlayer(true)

	sp := speech.NewSpeaker(cache, player)
	sp.Speak(context.Background(), "a long story")
	<-player.played

	done := make(chan struct{})
	go func() {
		sp.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt playback")
	}

	sp.Speak(context.Background(), "after stop")
	gt.Equal(t, player.count(), 1)
}

func TestPrintSpeaker(t *testing.T) {
	var buf bytes.Buffer
	sp := speech.NewPrintSpeaker(&buf)
	sp.Speak(context.Background(), "Moving")
	gt.S(t, buf.String()).Contains("Moving")
}
