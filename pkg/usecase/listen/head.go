package listen

import (
	"context"
	"time"

	"github.com/brewie/voicegate/pkg/utils/logging"
)

// Head is the robot head used for gestures
type Head interface {
	Pan(position float64, d time.Duration) error
	Tilt(position float64, d time.Duration) error
}

type noHead struct{}

func (noHead) Pan(float64, time.Duration) error  { return nil }
func (noHead) Tilt(float64, time.Duration) error { return nil }

const gestureDuration = 500 * time.Millisecond

func (l *Loop) lookUp(ctx context.Context) {
	l.tilt(ctx, 0.2, gestureDuration)
}

func (l *Loop) lookDown(ctx context.Context) {
	l.tilt(ctx, 0.0, gestureDuration)
}

func (l *Loop) neutral(ctx context.Context) {
	l.pan(ctx, 0.0, gestureDuration)
	l.tilt(ctx, 0.0, gestureDuration)
}

// scout sweeps the head across the field
func (l *Loop) scout(ctx context.Context) {
	l.pan(ctx, 1.0, 250*time.Millisecond)
	select {
	case <-time.After(l.scoutPause):
	case <-ctx.Done():
		return
	}
	l.pan(ctx, -1.2, 4500*time.Millisecond)
}

func (l *Loop) pan(ctx context.Context, position float64, d time.Duration) {
	if err := l.head.Pan(position, d); err != nil {
		logging.From(ctx).Warn("failed to pan head", "position", position, "error", err)
	}
}

func (l *Loop) tilt(ctx context.Context, position float64, d time.Duration) {
	if err := l.head.Tilt(position, d); err != nil {
		logging.From(ctx).Warn("failed to tilt head", "position", position, "error", err)
	}
}
