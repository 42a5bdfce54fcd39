package cli

import (
	"context"
	"fmt"

	"github.com/brewie/voicegate/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func toolsCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, robotFlags(&cfg)...)

	return &cli.Command{
		Name:  "tools",
		Usage: "List robot tools and action groups",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			robot, err := cfg.newRobot(ctx)
			if err != nil {
				return err
			}
			defer closeLogged(ctx, "robot", robot.Close)

			tools, err := robot.ListTools(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list tools")
			}
			groups, err := robot.ActionGroups(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list action groups")
			}

			catalog := tool.NewCatalog(tools, groups)
			w := c.Root().Writer

			fmt.Fprintf(w, "Tools:\n")
			for _, line := range catalog.ToolLines() {
				fmt.Fprintf(w, "  %s\n", line)
			}

			fmt.Fprintf(w, "\nAction groups:\n")
			for _, line := range catalog.ActionGroupLines() {
				fmt.Fprintf(w, "  %s\n", line)
			}
			return nil
		},
	}
}
