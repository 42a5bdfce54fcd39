package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brewie/voicegate/pkg/adapter"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg  config
		mute bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "mute",
			Aliases:     []string{"m"},
			Usage:       "Print spoken feedback instead of playing it",
			Destination: &mute,
		},
		&cli.BoolFlag{
			Name:        "history",
			Usage:       "Keep conversation history across requests",
			Sources:     cli.EnvVars("VOICEGATE_HISTORY"),
			Destination: &cfg.history,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, robotFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, speechFlags(&cfg)...)
	flags = append(flags, authFlags(&cfg)...)
	flags = append(flags, auditFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Dispatch typed requests to the robot without the wake word",
		ArgsUsage: "[request]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			w := c.Root().Writer

			llm, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}
			classifier, err := cfg.newClassifier(ctx)
			if err != nil {
				return err
			}

			var synth adapter.SpeechSynthesizer
			if !mute {
				speechClient, err := cfg.newSpeech()
				if err != nil {
					return err
				}
				synth = speechClient
			}
			spk, err := cfg.newSpeaker(ctx, synth, mute, w)
			if err != nil {
				return err
			}
			defer spk.Stop()

			robot, err := cfg.newRobot(ctx)
			if err != nil {
				return err
			}
			defer closeLogged(ctx, "robot", robot.Close)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeLogged(ctx, "repository", repo.Close)

			// Typed requests carry no utterance audio, so privileged commands
			// are always refused by the gate.
			pipeline := command.New(llm, robot, spk,
				command.WithClassifier(classifier),
				command.WithRepository(repo),
			)
			sess := &command.Session{HistoryMode: cfg.history}

			if c.Args().Len() > 0 {
				ask(ctx, pipeline, sess, spk, w, strings.Join(c.Args().Slice(), " "))
				return nil
			}
			return repl(ctx, pipeline, sess, spk, w)
		},
	}
}

func repl(ctx context.Context, pipeline *command.Pipeline, sess *command.Session, spk speaker, w io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          w,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to start readline")
	}
	defer rl.Close()

	fmt.Fprintf(w, "Type a request for the robot. Type 'exit' to quit.\n")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}

		ask(ctx, pipeline, sess, spk, w, line)
	}
}

func ask(ctx context.Context, pipeline *command.Pipeline, sess *command.Session, spk speaker, w io.Writer, request string) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " thinking..."
	s.Start()
	cycle := pipeline.Handle(ctx, sess, command.Utterance{Transcript: request})
	s.Stop()
	spk.Wait()

	for _, cmd := range cycle.Commands {
		status := "executed"
		switch {
		case cmd.Denied:
			status = "denied"
		case cmd.Error != "":
			status = "failed"
		}
		fmt.Fprintf(w, "  %s\t%s\n", cmd.Tool, status)
	}
}
