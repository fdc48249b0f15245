package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// diff creates the CLI command that prints the schema changes a new
// revision would contain without writing anything.
func diff() *cli.Command {
	return &cli.Command{
		Name:   "diff",
		Usage:  "Show pending schema changes without writing a revision",
		Before: requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			plan, err := currentMigrate.ProduceMigrations(appContext(ctx))
			if err != nil {
				return err
			}

			if plan.Empty() {
				fmt.Fprintln(cmd.Writer, "No schema changes detected")
				return nil
			}

			for _, db := range plan.Databases {
				if len(db.Ops) == 0 {
					continue
				}

				fmt.Fprintf(cmd.Writer, "-- %s\n%s\n", db.Name, plan.UpgradeSQL(db.Name))
			}

			return nil
		},
	}
}
