package adapter

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	openai "github.com/openai/openai-go/v3"
)

const (
	DefaultSpeechModel     = "tts-1"
	DefaultSpeechVoice     = "alloy"
	DefaultTranscribeModel = string(openai.AudioModelWhisper1)
	DefaultLanguage        = "en"
)

// SpeechSynthesizer turns text into encoded audio (mp3)
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns a recorded WAV file into lower-cased text
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Speech implements SpeechSynthesizer and Transcriber with the OpenAI audio API
type Speech struct {
	client          openai.Client
	speechModel     string
	voice           string
	transcribeModel string
	language        string
}

type speechConfig struct {
	baseURL         string
	speechModel     string
	voice           string
	transcribeModel string
	language        string
	httpClient      *http.Client
}

type SpeechOption func(*speechConfig)

func WithSpeechBaseURL(url string) SpeechOption {
	return func(c *speechConfig) {
		c.baseURL = url
	}
}

func WithVoice(voice string) SpeechOption {
	return func(c *speechConfig) {
		c.voice = voice
	}
}

func WithSpeechModel(model string) SpeechOption {
	return func(c *speechConfig) {
		c.speechModel = model
	}
}

func WithTranscribeModel(model string) SpeechOption {
	return func(c *speechConfig) {
		c.transcribeModel = model
	}
}

func WithLanguage(lang string) SpeechOption {
	return func(c *speechConfig) {
		c.language = lang
	}
}

func WithSpeechHTTPClient(client *http.Client) SpeechOption {
	return func(c *speechConfig) {
		c.httpClient = client
	}
}

func NewSpeech(apiKey string, opts ...SpeechOption) *Speech {
	cfg := &speechConfig{
		speechModel:     DefaultSpeechModel,
		voice:           DefaultSpeechVoice,
		transcribeModel: DefaultTranscribeModel,
		language:        DefaultLanguage,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Speech{
		client:          openai.NewClient(clientOptions(apiKey, cfg.baseURL, cfg.httpClient)...),
		speechModel:     cfg.speechModel,
		voice:           cfg.voice,
		transcribeModel: cfg.transcribeModel,
		language:        cfg.language,
	}
}

func (s *Speech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body := map[string]any{
		"model":           s.speechModel,
		"voice":           s.voice,
		"input":           text,
		"response_format": "mp3",
	}

	var resp *http.Response
	if err := s.client.Post(ctx, "audio/speech", body, &resp); err != nil {
		return nil, goerr.Wrap(err, "speech synthesis failed", goerr.V("model", s.speechModel))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read synthesized audio")
	}
	if len(data) == 0 {
		return nil, goerr.New("empty synthesized audio", goerr.V("text", text))
	}
	return data, nil
}

func (s *Speech) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open recording", goerr.V("path", wavPath))
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(s.transcribeModel),
	}
	if s.language != "" {
		params.Language = openai.String(s.language)
	}

	res, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "transcription failed", goerr.V("path", wavPath))
	}

	return strings.ToLower(strings.TrimSpace(res.Text)), nil
}
