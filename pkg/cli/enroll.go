package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func enrollCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Replace an existing speaker profile",
			Destination: &force,
		},
	}
	flags = append(flags, authFlags(&cfg)...)

	return &cli.Command{
		Name:  "enroll",
		Usage: "Record the master voice into a speaker profile",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			eagle, err := cfg.newVerifier()
			if err != nil {
				return err
			}

			if eagle.Enrolled() && !force {
				fmt.Fprintf(c.Root().Writer, "Speaker profile already exists at %s (use --force to replace)\n", eagle.ProfilePath())
				return nil
			}

			fmt.Fprintf(c.Root().Writer, "Speak to the microphone until enrollment completes.\n")
			if err := eagle.Enroll(ctx); err != nil {
				return goerr.Wrap(err, "enrollment failed")
			}

			fmt.Fprintf(c.Root().Writer, "Speaker profile saved to %s\n", eagle.ProfilePath())
			return nil
		},
	}
}
