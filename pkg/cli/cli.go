package cli

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

const defaultEnvFile = ".env"

func Run(ctx context.Context, argv []string) *Error {
	if err := loadEnvFile(argv); err != nil {
		return &Error{Code: 1, Message: err.Error()}
	}

	var (
		logLevel string
		envFile  string
	)

	cmd := &cli.Command{
		Name:  "voicegate",
		Usage: "Voice commanded robot with speaker verified privileged actions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("VOICEGATE_LOG_LEVEL"),
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "Dotenv file loaded before reading environment variables",
				Value:       defaultEnvFile,
				Destination: &envFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger := logging.New(logLevel, c.Root().ErrWriter)
			logging.SetDefault(logger)
			return logging.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			runCommand(),
			askCommand(),
			enrollCommand(),
			toolsCommand(),
			historyCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// loadEnvFile loads the dotenv file named by --env-file before flags read
// their environment sources. A missing default file is not an error.
func loadEnvFile(argv []string) error {
	path := defaultEnvFile
	explicit := false
	for i, arg := range argv {
		if v, ok := strings.CutPrefix(arg, "--env-file="); ok {
			path, explicit = v, true
			break
		}
		if arg == "--env-file" && i+1 < len(argv) {
			path, explicit = argv[i+1], true
			break
		}
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return goerr.Wrap(err, "failed to load env file", goerr.V("path", path))
	}
	return nil
}
