package command

import (
	"context"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Synthesize asks the language model to turn a transcript into a plan and
// returns the raw reply
func (p *Pipeline) Synthesize(ctx context.Context, sess *Session, transcript string) (string, error) {
	if !sess.HistoryMode {
		sess.History = nil
	}

	messages := make([]model.Message, 0, len(sess.History)+2)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: p.SystemPrompt(ctx)})
	messages = append(messages, sess.History...)
	user := model.Message{Role: model.RoleUser, Content: transcript}
	messages = append(messages, user)

	ctx, cancel := context.WithTimeout(ctx, p.completionTimeout)
	defer cancel()

	raw, err := p.llm.Complete(ctx, &adapter.CompletionRequest{
		Messages:    messages,
		MaxTokens:   completionMaxTokens,
		Temperature: completionTemperature,
		Stop:        completionStop,
	})
	if err != nil {
		return "", goerr.Wrap(ErrTransport, "completion failed", goerr.V("cause", err))
	}

	if sess.HistoryMode {
		sess.History = append(sess.History, user, model.Message{Role: model.RoleAssistant, Content: raw})
	}

	return raw, nil
}
