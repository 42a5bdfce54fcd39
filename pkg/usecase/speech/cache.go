package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"
)

const defaultSynthesizeTimeout = 30 * time.Second

// Key is the cache key and file stem of a text
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Cache maps spoken text to a synthesized MP3 file. Entries live for the
// whole process and files are reused across runs.
type Cache struct {
	dir     string
	synth   adapter.SpeechSynthesizer
	storage adapter.Storage
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]string
	group   singleflight.Group
}

type CacheOption func(*Cache)

// WithStorage adds a shared Cloud Storage tier behind the local directory
func WithStorage(storage adapter.Storage) CacheOption {
	return func(c *Cache) {
		c.storage = storage
	}
}

func WithSynthesizeTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.timeout = d
	}
}

func NewCache(dir string, synth adapter.SpeechSynthesizer, opts ...CacheOption) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create audio cache directory", goerr.V("dir", dir))
	}

	c := &Cache{
		dir:     dir,
		synth:   synth,
		timeout: defaultSynthesizeTimeout,
		entries: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Artifact returns the audio file for text, synthesizing it on first use.
// Concurrent misses for the same text share one synthesis.
func (c *Cache) Artifact(ctx context.Context, text string) (string, error) {
	key := Key(text)
	if path, ok := c.lookup(key); ok {
		return path, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if path, ok := c.lookup(key); ok {
			return path, nil
		}

		path, err := c.fill(ctx, key, text)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.entries[key] = path
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.entries[key]
	return path, ok
}

func (c *Cache) fill(ctx context.Context, key, text string) (string, error) {
	logger := logging.From(ctx)
	path := filepath.Join(c.dir, key+".mp3")

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	if c.storage != nil {
		ok, err := c.download(ctx, key, path)
		if err != nil {
			logger.Warn("failed to download cached audio", "key", key, "error", err)
		}
		if ok {
			return path, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to synthesize speech", goerr.V("text", text))
	}

	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	logger.Debug("speech synthesized", "key", key, "bytes", len(data))

	if c.storage != nil {
		if err := c.upload(ctx, key, data); err != nil {
			logger.Warn("failed to upload audio", "key", key, "error", err)
		}
	}

	return path, nil
}

func (c *Cache) download(ctx context.Context, key, path string) (bool, error) {
	r, err := c.storage.Get(ctx, key+".mp3")
	if err != nil {
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return false, goerr.Wrap(err, "failed to read audio object", goerr.V("key", key))
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := writeFileAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) upload(ctx context.Context, key string, data []byte) error {
	w, err := c.storage.Put(ctx, key+".mp3")
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write audio object", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finish audio object", goerr.V("key", key))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create temp file", goerr.V("path", path))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return goerr.Wrap(err, "failed to write temp file", goerr.V("path", path))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close temp file", goerr.V("path", path))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return goerr.Wrap(err, "failed to move audio into place", goerr.V("path", path))
	}
	return nil
}
