package device

import (
	"context"
	"time"

	"github.com/brewie/voicegate/pkg/audio"
	"github.com/gordonklaus/portaudio"
	"github.com/m-mizutani/goerr/v2"
)

// Recorder captures one utterance from the default input device
type Recorder struct {
	silence   time.Duration
	maxLength time.Duration
}

type RecorderOption func(*Recorder)

// WithSilence sets how much trailing silence ends an utterance
func WithSilence(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.silence = d
	}
}

func WithMaxLength(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.maxLength = d
	}
}

// NewRecorder initializes PortAudio. Close must be called to release it.
func NewRecorder(opts ...RecorderOption) (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize portaudio")
	}

	r := &Recorder{
		silence:   800 * time.Millisecond,
		maxLength: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Recorder) Close() error {
	if err := portaudio.Terminate(); err != nil {
		return goerr.Wrap(err, "failed to terminate portaudio")
	}
	return nil
}

// Record reads the microphone until the speaker falls silent, the maximum
// length is reached or ctx is done
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	buf := make([]float32, audio.FrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.SampleRate, len(buf), buf)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open input stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, goerr.Wrap(err, "failed to start input stream")
	}
	defer stream.Stop()

	vad := audio.NewDetector(r.silence)
	maxFrames := int(r.maxLength / audio.FrameDuration)
	out := make([]float32, 0, audio.SampleRate*3)

	for i := 0; i < maxFrames; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := stream.Read(); err != nil {
			return nil, goerr.Wrap(err, "failed to read input stream")
		}

		keep, done := vad.Push(buf)
		if keep {
			out = append(out, buf...)
		}
		if done {
			break
		}
	}

	return out, nil
}
