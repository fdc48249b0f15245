package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// stamp creates the CLI command that records a revision as applied
// without executing any migration SQL.
func stamp() *cli.Command {
	return &cli.Command{
		Name:      "stamp",
		Usage:     "Record a revision as applied without running migrations",
		ArgsUsage: "[target]",
		Before:    requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := parseTarget(cmd.Args().First())
			if err := currentMigrate.Stamp(appContext(ctx), target); err != nil {
				return err
			}

			fmt.Fprintln(cmd.Writer, "Stamp complete")
			return nil
		},
	}
}
