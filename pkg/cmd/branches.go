package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
)

// branches creates the CLI command listing the points where the
// revision graph splits.
func branches() *cli.Command {
	return &cli.Command{
		Name:   "branches",
		Usage:  "Show the revisions where the history branches",
		Before: requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			scripts, err := currentMigrate.Branches(appContext(ctx))
			if err != nil {
				return err
			}

			printScripts(cmd, scripts)
			return nil
		},
	}
}
