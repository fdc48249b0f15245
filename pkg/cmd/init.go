package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// initCmd creates the CLI command that prepares the migration directory
// layout for a project: the script root with its revision template and
// every configured version location.
func initCmd() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create the migration directory layout",
		Before: requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := currentMigrate.Mkdir(appContext(ctx)); err != nil {
				return err
			}

			fmt.Fprintln(cmd.Writer, "Migration directory ready")
			return nil
		},
	}
}
