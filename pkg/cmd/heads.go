package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
)

// heads creates the CLI command listing the tips of the revision graph.
func heads() *cli.Command {
	return &cli.Command{
		Name:   "heads",
		Usage:  "Show the revisions at the tip of the history",
		Before: requireProject(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "resolve-dependencies",
				Usage: "Treat dependencies as parent revisions",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			scripts, err := currentMigrate.Heads(appContext(ctx), cmd.Bool("resolve-dependencies"))
			if err != nil {
				return err
			}

			printScripts(cmd, scripts)
			return nil
		},
	}
}
