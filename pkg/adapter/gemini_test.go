package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestGeminiComplete(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	resp, err := client.Complete(ctx, &adapter.CompletionRequest{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "Reply with one word."},
			{Role: model.RoleUser, Content: "Say hello"},
		},
		MaxTokens:   32,
		Temperature: 0.2,
	})
	gt.NoError(t, err)
	gt.True(t, resp != "")
}
