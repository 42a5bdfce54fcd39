package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/brewie/voicegate/pkg/audio/device"
	"github.com/brewie/voicegate/pkg/service/verifier"
	"github.com/brewie/voicegate/pkg/service/wakeword"
	"github.com/brewie/voicegate/pkg/usecase/command"
	"github.com/brewie/voicegate/pkg/usecase/listen"
	"github.com/brewie/voicegate/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const (
	noticeWelcome    = "Welcome new master"
	noticeIntroduce  = "Tell me a little about yourself so I can remember your voice."
	noticeRegistered = "New master registered!"
	noticeReady      = "I am ready"
)

func runCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, robotFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, speechFlags(&cfg)...)
	flags = append(flags, authFlags(&cfg)...)
	flags = append(flags, captureFlags(&cfg)...)
	flags = append(flags, auditFlags(&cfg)...)

	return &cli.Command{
		Name:  "run",
		Usage: "Listen for the wake word and dispatch spoken commands to the robot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := logging.From(ctx)

			eagle, err := cfg.newVerifier()
			if err != nil {
				return err
			}
			llm, err := cfg.newLLM(ctx)
			if err != nil {
				return err
			}
			speechClient, err := cfg.newSpeech()
			if err != nil {
				return err
			}
			classifier, err := cfg.newClassifier(ctx)
			if err != nil {
				return err
			}

			spk, err := cfg.newSpeaker(ctx, speechClient, false, c.Root().Writer)
			if err != nil {
				return err
			}
			defer spk.Stop()

			if err := bootstrapEnrollment(ctx, eagle, spk); err != nil {
				return err
			}

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

			bus, head, err := cfg.newHead(ctx)
			if err != nil {
				return err
			}
			if bus != nil {
				defer closeLogged(ctx, "rosbridge", bus.Close)
			}

			recorder, err := device.NewRecorder(device.WithSilence(cfg.silence))
			if err != nil {
				return err
			}
			defer closeLogged(ctx, "recorder", recorder.Close)

			pipeline := command.New(llm, robot, spk,
				command.WithVerifier(eagle),
				command.WithClassifier(classifier),
				command.WithRepository(repo),
			)

			wake, err := wakeword.Start(ctx, wakeword.Config{
				Command:      cfg.wakeCommand,
				AccessKey:    cfg.wakeupAPIKey,
				KeywordPaths: cfg.keywordPaths,
				Sensitivity:  cfg.sensitivity,
			})
			if err != nil {
				return err
			}
			defer closeLogged(ctx, "wake word engine", wake.Close)

			opts := []listen.Option{
				listen.WithAudioDir(cfg.audioIn),
				listen.WithHistory(cfg.history),
				listen.WithRepository(repo),
			}
			if head != nil {
				opts = append(opts, listen.WithHead(head))
			}
			loop := listen.New(pipeline, wake, recorder, speechClient, spk, opts...)

			// Builds the prompt before the first wake word
			pipeline.SystemPrompt(ctx)

			spk.Speak(ctx, noticeReady)
			logger.Info("voicegate is ready", "robot_tools", len(pipeline.Catalog(ctx).Tools()))

			if err := loop.Run(ctx); err != nil {
				return err
			}
			logger.Info("shutting down")
			return nil
		},
	}
}

// bootstrapEnrollment registers the master voice when no profile exists yet
func bootstrapEnrollment(ctx context.Context, eagle *verifier.Eagle, spk speaker) error {
	if eagle.Enrolled() {
		return nil
	}

	logging.From(ctx).Info("no speaker profile, starting enrollment", "profile", eagle.ProfilePath())
	for _, notice := range []string{noticeWelcome, noticeIntroduce} {
		spk.Speak(ctx, notice)
		spk.Wait()
	}

	if err := eagle.Enroll(ctx); err != nil {
		return goerr.Wrap(err, "enrollment failed")
	}

	spk.Speak(ctx, noticeRegistered)
	spk.Wait()
	return nil
}

func closeLogged(ctx context.Context, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logging.From(ctx).Warn("failed to close", "component", name, "error", err)
	}
}
