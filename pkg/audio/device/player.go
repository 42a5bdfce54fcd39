package device

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/m-mizutani/goerr/v2"
)

const outputRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Player plays MP3 files through the default output device. Overlapping
// Play calls are mixed.
type Player struct{}

func NewPlayer() (*Player, error) {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	if speakerErr != nil {
		return nil, goerr.Wrap(speakerErr, "failed to initialize speaker")
	}
	return &Player{}, nil
}

// Play blocks until the file has been played or ctx is done
func (p *Player) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "failed to open audio", goerr.V("path", path))
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		_ = f.Close()
		return goerr.Wrap(err, "failed to decode mp3", goerr.V("path", path))
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != outputRate {
		s = beep.Resample(4, format.SampleRate, outputRate, streamer)
	}

	done := make(chan struct{})
	ctrl := &beep.Ctrl{Streamer: beep.Seq(s, beep.Callback(func() {
		close(done)
	}))}
	speaker.Play(ctrl)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
		return ctx.Err()
	}
}
