package adapter

import (
	"context"

	"github.com/brewie/voicegate/pkg/model"
)

// LLM is a chat completion service
type LLM interface {
	// Complete sends the conversation and returns the raw text of the reply
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// CompletionRequest is a single completion call
type CompletionRequest struct {
	Messages    []model.Message
	MaxTokens   int
	Temperature float64
	Stop        []string
}
