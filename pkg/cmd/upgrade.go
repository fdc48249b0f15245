package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// upgrade creates the CLI command applying migrations up to a target
// revision.
func upgrade() *cli.Command {
	return &cli.Command{
		Name:      "upgrade",
		Usage:     "Run upgrade migrations",
		ArgsUsage: "[target]",
		Description: `Apply upgrade migrations up to the target revision on every
configured database. The target defaults to "heads"; a signed offset
such as "+2" moves forward a fixed number of steps.`,
		Before: requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := parseTarget(cmd.Args().First())
			if err := currentMigrate.Upgrade(appContext(ctx), target); err != nil {
				return err
			}

			fmt.Fprintln(cmd.Writer, "Upgrade complete")
			return nil
		},
	}
}
