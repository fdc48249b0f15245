package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// downgrade creates the CLI command reverting migrations down to a
// target revision.
func downgrade() *cli.Command {
	return &cli.Command{
		Name:      "downgrade",
		Usage:     "Run downgrade migrations",
		ArgsUsage: "[target]",
		Description: `Revert migrations down to the target revision on every configured
database. Without a target one revision is reverted; "-2" reverts two
steps, "base" reverts everything.`,
		Before: requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := parseTarget(cmd.Args().First())
			if err := currentMigrate.Downgrade(appContext(ctx), target); err != nil {
				return err
			}

			fmt.Fprintln(cmd.Writer, "Downgrade complete")
			return nil
		},
	}
}
