package audio

import (
	"math"
	"time"
)

const (
	// SampleRate is the rate of every recorded utterance
	SampleRate = 16000
	// FrameSize is the number of samples in one 20ms frame
	FrameSize     = 320
	FrameDuration = 20 * time.Millisecond

	silenceThreshRMS = 0.015
)

// Detector is an energy based end-of-utterance detector
type Detector struct {
	speaking      bool
	silenceFrames int
	maxSilence    int
}

// NewDetector ends an utterance after the given trailing silence
func NewDetector(silence time.Duration) *Detector {
	n := int(silence / FrameDuration)
	if n < 1 {
		n = 1
	}
	return &Detector{maxSilence: n}
}

// Push returns whether the frame belongs to the utterance and whether the
// utterance has ended. Leading silence is not kept.
func (d *Detector) Push(frame []float32) (keep, done bool) {
	if FrameRMS(frame) > silenceThreshRMS {
		d.speaking = true
		d.silenceFrames = 0
		return true, false
	}

	if !d.speaking {
		return false, false
	}

	d.silenceFrames++
	return true, d.silenceFrames >= d.maxSilence
}

// FrameRMS is the root mean square of a frame
func FrameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
