package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/audio/device"
	"github.com/brewie/voicegate/pkg/policy"
	"github.com/brewie/voicegate/pkg/repository"
	"github.com/brewie/voicegate/pkg/service/mcp"
	"github.com/brewie/voicegate/pkg/service/rosbridge"
	"github.com/brewie/voicegate/pkg/service/verifier"
	"github.com/brewie/voicegate/pkg/service/wakeword"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/brewie/voicegate/pkg/usecase/speech"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// LLM
	llmProvider    string
	llmAPIKey      string
	llmBaseURL     string
	llmModel       string
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Speech
	speechAPIKey     string
	speechBaseURL    string
	voice            string
	language         string
	audioDir         string
	audioBucket      string
	audioCredentials string

	// Robot
	robotConfig  string
	robotURL     string
	rosbridgeURL string

	// Authorization
	wakeupAPIKey    string
	profilePath     string
	verifierCommand string
	enrollCommand   string
	policyDir       string

	// Capture
	wakeCommand  string
	keywordPaths []string
	sensitivity  float64
	audioIn      string
	silence      time.Duration
	history      bool

	// Audit
	dbPath            string
	firestoreProject  string
	firestoreDatabase string

	proxy string
}

// speaker is a command.Speaker whose playback can be awaited and stopped
type speaker interface {
	command.Speaker
	Wait()
	Stop()
}

// globalFlags returns flags shared by every command that talks to the outside
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "proxy",
			Usage:       "SOCKS5 proxy address for outbound HTTP (host:port)",
			Sources:     cli.EnvVars("VOICEGATE_PROXY"),
			Destination: &cfg.proxy,
		},
	}
}

// robotFlags returns flags for the robot MCP server
func robotFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "robot-config",
			Aliases:     []string{"r"},
			Usage:       "Path to robot MCP server YAML config",
			Sources:     cli.EnvVars("VOICEGATE_ROBOT_CONFIG"),
			Destination: &cfg.robotConfig,
		},
		&cli.StringFlag{
			Name:        "robot-url",
			Usage:       "Robot MCP server URL (streamable HTTP)",
			Value:       "http://localhost:8000/mcp",
			Sources:     cli.EnvVars("VOICEGATE_ROBOT_URL"),
			Destination: &cfg.robotURL,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "Completion provider (openai, gemini)",
			Value:       "openai",
			Sources:     cli.EnvVars("VOICEGATE_LLM_PROVIDER"),
			Destination: &cfg.llmProvider,
		},
		&cli.StringFlag{
			Name:        "llm-api-key",
			Usage:       "API key of the OpenAI compatible completion endpoint",
			Sources:     cli.EnvVars("LLM_API_KEY", "TOGETHER_API_KEY"),
			Destination: &cfg.llmAPIKey,
		},
		&cli.StringFlag{
			Name:        "llm-base-url",
			Usage:       "Base URL of the OpenAI compatible completion endpoint",
			Value:       adapter.DefaultLLMBaseURL,
			Sources:     cli.EnvVars("LLM_BASE_URL"),
			Destination: &cfg.llmBaseURL,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Completion model",
			Value:       adapter.DefaultLLMModel,
			Sources:     cli.EnvVars("LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// speechFlags returns flags for text-to-speech, speech-to-text and the audio cache
func speechFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "speech-api-key",
			Usage:       "OpenAI API key for speech synthesis and transcription",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.speechAPIKey,
		},
		&cli.StringFlag{
			Name:        "speech-base-url",
			Usage:       "Base URL of the speech endpoint",
			Value:       "https://api.openai.com/v1/",
			Sources:     cli.EnvVars("SPEECH_BASE_URL"),
			Destination: &cfg.speechBaseURL,
		},
		&cli.StringFlag{
			Name:        "voice",
			Usage:       "Synthesis voice",
			Value:       "alloy",
			Sources:     cli.EnvVars("VOICEGATE_VOICE"),
			Destination: &cfg.voice,
		},
		&cli.StringFlag{
			Name:        "language",
			Usage:       "Transcription language",
			Value:       "en",
			Sources:     cli.EnvVars("VOICEGATE_LANGUAGE"),
			Destination: &cfg.language,
		},
		&cli.StringFlag{
			Name:        "audio-dir",
			Usage:       "Directory of synthesized speech files",
			Value:       "audio",
			Sources:     cli.EnvVars("VOICEGATE_AUDIO_DIR"),
			Destination: &cfg.audioDir,
		},
		&cli.StringFlag{
			Name:        "audio-bucket",
			Usage:       "Cloud Storage bucket shared as a second audio cache tier",
			Sources:     cli.EnvVars("VOICEGATE_AUDIO_BUCKET"),
			Destination: &cfg.audioBucket,
		},
		&cli.StringFlag{
			Name:        "audio-credentials",
			Usage:       "Path to a credentials file for the audio bucket",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.audioCredentials,
		},
	}
}

// authFlags returns flags for the privilege gate
func authFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "wakeup-api-key",
			Usage:       "Access key of the wake word engine and the speaker verifier",
			Sources:     cli.EnvVars("WAKEUP_API_KEY"),
			Destination: &cfg.wakeupAPIKey,
		},
		&cli.StringFlag{
			Name:        "profile",
			Usage:       "Path to the enrolled speaker profile",
			Value:       verifier.DefaultProfilePath,
			Sources:     cli.EnvVars("VOICEGATE_PROFILE"),
			Destination: &cfg.profilePath,
		},
		&cli.StringFlag{
			Name:        "verifier-command",
			Usage:       "Speaker verifier executable",
			Value:       verifier.DefaultTestCommand,
			Sources:     cli.EnvVars("VOICEGATE_VERIFIER_COMMAND"),
			Destination: &cfg.verifierCommand,
		},
		&cli.StringFlag{
			Name:        "enroll-command",
			Usage:       "Speaker enrollment executable",
			Value:       verifier.DefaultEnrollCommand,
			Sources:     cli.EnvVars("VOICEGATE_ENROLL_COMMAND"),
			Destination: &cfg.enrollCommand,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of rego files overriding the built-in privilege policy",
			Sources:     cli.EnvVars("VOICEGATE_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// captureFlags returns flags for the wake word and capture loop
func captureFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "wake-command",
			Usage:       "Wake word engine executable",
			Value:       wakeword.DefaultCommand,
			Sources:     cli.EnvVars("VOICEGATE_WAKE_COMMAND"),
			Destination: &cfg.wakeCommand,
		},
		&cli.StringSliceFlag{
			Name:        "keyword-paths",
			Usage:       "Wake word keyword files",
			Sources:     cli.EnvVars("VOICEGATE_KEYWORD_PATHS"),
			Destination: &cfg.keywordPaths,
		},
		&cli.FloatFlag{
			Name:        "sensitivity",
			Usage:       "Wake word sensitivity",
			Value:       wakeword.DefaultSensitivity,
			Destination: &cfg.sensitivity,
		},
		&cli.StringFlag{
			Name:        "audio-in",
			Usage:       "Directory of recorded utterances",
			Value:       "audio_in",
			Sources:     cli.EnvVars("VOICEGATE_AUDIO_IN"),
			Destination: &cfg.audioIn,
		},
		&cli.DurationFlag{
			Name:        "silence",
			Usage:       "Trailing silence that ends an utterance",
			Value:       800 * time.Millisecond,
			Destination: &cfg.silence,
		},
		&cli.StringFlag{
			Name:        "rosbridge-url",
			Usage:       "rosbridge websocket URL for head gestures",
			Sources:     cli.EnvVars("VOICEGATE_ROSBRIDGE_URL"),
			Destination: &cfg.rosbridgeURL,
		},
		&cli.BoolFlag{
			Name:        "history",
			Usage:       "Keep conversation history across cycles",
			Sources:     cli.EnvVars("VOICEGATE_HISTORY"),
			Destination: &cfg.history,
		},
	}
}

// auditFlags returns flags for the cycle audit log
func auditFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Path to the sqlite audit log",
			Value:       "voicegate.db",
			Sources:     cli.EnvVars("VOICEGATE_DB"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID of the Firestore audit log",
			Sources:     cli.EnvVars("FIRESTORE_PROJECT_ID"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
	}
}

func (cfg *config) httpClient() (*http.Client, error) {
	if cfg.proxy == "" {
		return nil, nil
	}
	client, err := adapter.NewSocksClient(cfg.proxy)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure proxy", goerr.V("proxy", cfg.proxy))
	}
	return client, nil
}

// newLLM creates the completion client of the configured provider
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	switch cfg.llmProvider {
	case "gemini":
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation,
			adapter.WithGenerativeModel(cfg.geminiModel))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini client")
		}
		return client, nil

	case "openai", "":
		if cfg.llmAPIKey == "" {
			return nil, goerr.New("llm-api-key is required")
		}
		httpClient, err := cfg.httpClient()
		if err != nil {
			return nil, err
		}
		opts := []adapter.OpenAIOption{
			adapter.WithBaseURL(cfg.llmBaseURL),
			adapter.WithModel(cfg.llmModel),
		}
		if httpClient != nil {
			opts = append(opts, adapter.WithHTTPClient(httpClient))
		}
		return adapter.NewOpenAI(cfg.llmAPIKey, opts...), nil

	default:
		return nil, goerr.New("unsupported llm provider",
			goerr.V("provider", cfg.llmProvider),
			goerr.V("supported", []string{"openai", "gemini"}))
	}
}

// newSpeech creates the synthesis and transcription client
func (cfg *config) newSpeech() (*adapter.Speech, error) {
	if cfg.speechAPIKey == "" {
		return nil, goerr.New("speech-api-key is required")
	}
	httpClient, err := cfg.httpClient()
	if err != nil {
		return nil, err
	}

	opts := []adapter.SpeechOption{
		adapter.WithSpeechBaseURL(cfg.speechBaseURL),
		adapter.WithVoice(cfg.voice),
		adapter.WithLanguage(cfg.language),
	}
	if httpClient != nil {
		opts = append(opts, adapter.WithSpeechHTTPClient(httpClient))
	}
	return adapter.NewSpeech(cfg.speechAPIKey, opts...), nil
}

// newCache creates the audio cache, with the bucket tier when configured
func (cfg *config) newCache(ctx context.Context, synth adapter.SpeechSynthesizer) (*speech.Cache, error) {
	var opts []speech.CacheOption
	if cfg.audioBucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.audioBucket, cfg.audioCredentials,
			adapter.WithPrefix("audio/"))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create audio storage")
		}
		opts = append(opts, speech.WithStorage(storage))
	}

	cache, err := speech.NewCache(cfg.audioDir, synth, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create audio cache")
	}
	return cache, nil
}

// newSpeaker returns a speaker playing through the sound device, or one
// printing to w when muted
func (cfg *config) newSpeaker(ctx context.Context, synth adapter.SpeechSynthesizer, mute bool, w io.Writer) (speaker, error) {
	if mute {
		return speech.NewPrintSpeaker(w), nil
	}

	cache, err := cfg.newCache(ctx, synth)
	if err != nil {
		return nil, err
	}
	player, err := device.NewPlayer()
	if err != nil {
		return nil, err
	}
	return speech.NewSpeaker(cache, player), nil
}

// newRobot connects to the robot MCP server
func (cfg *config) newRobot(ctx context.Context) (*mcp.Client, error) {
	serverCfg := mcp.ServerConfig{Transport: "http", URL: cfg.robotURL}
	if cfg.robotConfig != "" {
		loaded, err := mcp.LoadConfig(cfg.robotConfig)
		if err != nil {
			return nil, err
		}
		serverCfg = *loaded
	}
	if serverCfg.URL == "" && len(serverCfg.Command) == 0 {
		return nil, goerr.New("robot-url or robot-config is required")
	}

	robot, err := mcp.Connect(ctx, serverCfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect robot", goerr.V("robot", serverCfg.Name))
	}
	return robot, nil
}

// newHead connects head gestures to rosbridge. Without a URL the capture loop
// keeps its no-op head and the returned client is nil.
func (cfg *config) newHead(ctx context.Context) (*rosbridge.Client, *rosbridge.Head, error) {
	if cfg.rosbridgeURL == "" {
		return nil, nil, nil
	}
	bus, err := rosbridge.Dial(ctx, cfg.rosbridgeURL)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to connect rosbridge", goerr.V("url", cfg.rosbridgeURL))
	}
	return bus, rosbridge.NewHead(bus), nil
}

// newRepository opens Firestore when a project is given, sqlite otherwise
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.firestoreProject != "" {
		if cfg.firestoreDatabase == "" {
			return nil, goerr.New("firestore-database is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return repo, nil
	}

	if cfg.dbPath == "" {
		return repository.NewMemory(), nil
	}
	if dir := filepath.Dir(cfg.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", dir))
		}
	}
	repo, err := repository.NewSQLite(cfg.dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newClassifier loads the privilege policy
func (cfg *config) newClassifier(ctx context.Context) (*policy.Classifier, error) {
	classifier, err := policy.New(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load privilege policy", goerr.V("dir", cfg.policyDir))
	}
	return classifier, nil
}

// newVerifier creates the speaker verifier
func (cfg *config) newVerifier() (*verifier.Eagle, error) {
	if cfg.wakeupAPIKey == "" {
		return nil, goerr.New("wakeup-api-key is required")
	}
	return verifier.New(verifier.Config{
		AccessKey:     cfg.wakeupAPIKey,
		ProfilePath:   cfg.profilePath,
		TestCommand:   cfg.verifierCommand,
		EnrollCommand: cfg.enrollCommand,
	}), nil
}
