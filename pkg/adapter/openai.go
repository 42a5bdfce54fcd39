package adapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultLLMBaseURL is the OpenAI compatible endpoint of Together AI
	DefaultLLMBaseURL = "https://api.together.xyz/v1/"
	DefaultLLMModel   = "meta-llama/Llama-3.3-70B-Instruct-Turbo"
)

// OpenAIClient talks to any OpenAI compatible chat completion endpoint
type OpenAIClient struct {
	client openai.Client
	model  string
}

type openAIConfig struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type OpenAIOption func(*openAIConfig)

func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		c.model = model
	}
}

func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openAIConfig) {
		c.httpClient = client
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := &openAIConfig{
		baseURL: DefaultLLMBaseURL,
		model:   DefaultLLMModel,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &OpenAIClient{
		client: openai.NewClient(clientOptions(apiKey, cfg.baseURL, cfg.httpClient)...),
		model:  cfg.model,
	}
}

func clientOptions(apiKey, baseURL string, httpClient *http.Client) []option.RequestOption {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// a failed request ends the cycle
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}

func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	params.Temperature = openai.Float(req.Temperature)
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "chat completion failed", goerr.V("model", c.model))
	}

	if len(resp.Choices) == 0 {
		return "", goerr.New("no choices in response", goerr.V("model", c.model))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", goerr.New("empty message content", goerr.V("model", c.model))
	}
	return content, nil
}

func toOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
