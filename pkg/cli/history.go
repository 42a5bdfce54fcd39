package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Number of cycles to skip",
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of cycles to list",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, auditFlags(&cfg)...)

	return &cli.Command{
		Name:      "history",
		Usage:     "List dispatch cycles, or show one cycle in detail",
		ArgsUsage: "[cycle-id]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeLogged(ctx, "repository", repo.Close)

			w := c.Root().Writer

			if id := c.Args().First(); id != "" {
				cycle, err := repo.GetCycle(ctx, model.CycleID(id))
				if err != nil {
					return goerr.Wrap(err, "failed to get cycle", goerr.V("id", id))
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(cycle)
			}

			cycles, err := repo.ListCycles(ctx, int(offset), int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list cycles")
			}

			if len(cycles) == 0 {
				fmt.Fprintf(w, "No dispatch cycles found\n")
				return nil
			}

			for _, cycle := range cycles {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.3f\t%q\n",
					cycle.ID,
					cycle.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					cycle.Outcome,
					verification(cycle),
					cycle.Score,
					cycle.Transcript,
				)
			}

			return nil
		},
	}
}

func verification(cycle *model.Cycle) string {
	switch {
	case !cycle.Checked:
		return "-"
	case cycle.Verified:
		return "verified"
	default:
		return "rejected"
	}
}
