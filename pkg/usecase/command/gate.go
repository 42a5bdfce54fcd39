package command

import (
	"context"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/policy"
	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// VerificationThreshold is the average score an utterance must exceed
const VerificationThreshold = 0.1

// FixedClassifier marks only the fixed policy.Privileged tools as privileged
type FixedClassifier struct{}

func (FixedClassifier) IsPrivileged(_ context.Context, tool string, _ map[string]any) bool {
	return policy.IsFixedPrivileged(tool)
}

// AverageScore is the mean of the non-zero segment scores, 0 if there is none
func AverageScore(segments []model.Segment) float64 {
	var sum float64
	var n int
	for _, s := range segments {
		if s.Score == 0 {
			continue
		}
		sum += s.Score
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Authorize decides whether privileged commands of the plan may run. The voice
// verifier only runs when the plan has a privileged command; any verifier
// failure denies.
func (p *Pipeline) Authorize(ctx context.Context, plan *model.Plan, audioPath string) model.Authorization {
	if !p.hasPrivileged(ctx, plan) {
		return model.AutoAuthorized()
	}

	logger := logging.From(ctx)
	p.speak(ctx, NoticeChecking)

	auth := model.Authorization{Checked: true}
	segments, err := p.verify(ctx, audioPath)
	if err != nil {
		logger.Warn("voice verification failed", "error", err)
		return auth
	}

	auth.Score = AverageScore(segments)
	auth.Verified = auth.Score > VerificationThreshold
	logger.Info("voice verified",
		"segments", len(segments),
		"score", auth.Score,
		"verified", auth.Verified)

	if auth.Verified {
		p.speak(ctx, NoticeVerified)
	}
	return auth
}

func (p *Pipeline) hasPrivileged(ctx context.Context, plan *model.Plan) bool {
	for _, cmd := range plan.Commands {
		if p.isPrivileged(ctx, cmd) {
			return true
		}
	}
	return false
}

// isPrivileged adds the classifier's decision to the fixed privileged set
func (p *Pipeline) isPrivileged(ctx context.Context, cmd model.Command) bool {
	return policy.IsFixedPrivileged(cmd.Tool) || p.classifier.IsPrivileged(ctx, cmd.Tool, cmd.Params)
}

func (p *Pipeline) verify(ctx context.Context, audioPath string) ([]model.Segment, error) {
	if p.verifier == nil {
		return nil, goerr.Wrap(ErrVerification, "no voice verifier configured")
	}
	if audioPath == "" {
		return nil, goerr.Wrap(ErrVerification, "no utterance audio to verify")
	}

	ctx, cancel := context.WithTimeout(ctx, p.verifyTimeout)
	defer cancel()

	segments, err := p.verifier.Verify(ctx, audioPath)
	if err != nil {
		return nil, goerr.Wrap(ErrVerification, "verifier failed", goerr.V("cause", err), goerr.V("audio", audioPath))
	}
	if len(segments) == 0 {
		return nil, goerr.Wrap(ErrVerification, "verifier gave no score", goerr.V("audio", audioPath))
	}
	return segments, nil
}
