package command

import (
	"context"
	"sync"
	"time"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/model"
	"github.com/brewie/voicegate/pkg/repository"
	"github.com/brewie/voicegate/pkg/tool"
	"github.com/brewie/voicegate/pkg/utils/logging"
)

// Robot is the action executor on the robot side
type Robot interface {
	ListTools(ctx context.Context) ([]*tool.Descriptor, error)
	ActionGroups(ctx context.Context) (map[string]string, error)
	// Invoke runs a tool and returns the text to speak about its result
	Invoke(ctx context.Context, name string, params map[string]any) (string, error)
}

// Verifier scores an utterance against the enrolled voice profile
type Verifier interface {
	Verify(ctx context.Context, audioPath string) ([]model.Segment, error)
}

// Classifier decides the privilege tier of a command
type Classifier interface {
	IsPrivileged(ctx context.Context, tool string, params map[string]any) bool
}

// Speaker says a notice without blocking the cycle
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// Session is the conversation state owned by one capture loop
type Session struct {
	HistoryMode bool
	History     []model.Message
}

// Utterance is one recognized request. AudioPath is empty when the text did
// not come from the microphone.
type Utterance struct {
	Transcript string
	AudioPath  string
}

const (
	defaultCompletionTimeout = 60 * time.Second
	defaultVerifyTimeout     = 30 * time.Second

	completionMaxTokens   = 800
	completionTemperature = 0.2
)

var completionStop = []string{"</s>"}

// Pipeline turns transcripts into robot commands
type Pipeline struct {
	llm        adapter.LLM
	robot      Robot
	speaker    Speaker
	verifier   Verifier
	classifier Classifier
	repo       repository.Repository

	completionTimeout time.Duration
	verifyTimeout     time.Duration

	promptOnce   sync.Once
	systemPrompt string
	catalog      *tool.Catalog
}

type Option func(*Pipeline)

func WithVerifier(v Verifier) Option {
	return func(p *Pipeline) {
		p.verifier = v
	}
}

func WithClassifier(c Classifier) Option {
	return func(p *Pipeline) {
		p.classifier = c
	}
}

// WithRepository enables the cycle audit log
func WithRepository(repo repository.Repository) Option {
	return func(p *Pipeline) {
		p.repo = repo
	}
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.completionTimeout = d
	}
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.verifyTimeout = d
	}
}

func New(llm adapter.LLM, robot Robot, speaker Speaker, opts ...Option) *Pipeline {
	p := &Pipeline{
		llm:               llm,
		robot:             robot,
		speaker:           speaker,
		classifier:        FixedClassifier{},
		completionTimeout: defaultCompletionTimeout,
		verifyTimeout:     defaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle runs one dispatch cycle for an utterance and returns its record
func (p *Pipeline) Handle(ctx context.Context, sess *Session, u Utterance) *model.Cycle {
	cycle := &model.Cycle{
		ID:         model.NewCycleID(),
		Transcript: u.Transcript,
		CreatedAt:  time.Now().UTC(),
	}
	ctx = logging.WithAttrs(ctx, "cycle_id", cycle.ID)
	logger := logging.From(ctx)
	logger.Info("handling request", "transcript", u.Transcript)

	defer p.record(ctx, cycle)

	raw, err := p.Synthesize(ctx, sess, u.Transcript)
	if err != nil {
		logger.Error("completion failed", "error", err)
		p.speak(ctx, NoticeRequestFailed)
		cycle.Outcome = model.OutcomeRequestFailed
		return cycle
	}
	logger.Debug("model replied", "raw", raw)

	plan, err := ParsePlan(raw)
	if err != nil {
		logger.Error("cannot parse model reply", "error", err)
		p.speak(ctx, NoticeDecodeFailed)
		cycle.Outcome = model.OutcomeDecodeFailed
		return cycle
	}
	if plan.Dropped > 0 {
		logger.Warn("dropped commands without tool", "dropped", plan.Dropped)
	}
	logger.Info("plan parsed", "answer", plan.Answer, "tools", plan.Tools())

	auth := p.Authorize(ctx, plan, u.AudioPath)
	report := p.Dispatch(ctx, plan, auth)

	cycle.Outcome = model.OutcomeDispatched
	cycle.Answer = plan.Answer
	cycle.Commands = report.Commands
	cycle.Verified = auth.Verified
	cycle.Checked = auth.Checked
	cycle.Score = auth.Score
	return cycle
}

func (p *Pipeline) speak(ctx context.Context, text string) {
	if p.speaker == nil {
		return
	}
	p.speaker.Speak(ctx, text)
}

func (p *Pipeline) record(ctx context.Context, cycle *model.Cycle) {
	if p.repo == nil {
		return
	}
	if err := p.repo.PutCycle(ctx, cycle); err != nil {
		logging.From(ctx).Warn("failed to record cycle", "error", err)
	}
}
