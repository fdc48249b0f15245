package cmd

import (
	"context"

	"github.com/urfave/cli/v3"
)

// logCmd creates the CLI command printing the revision history between
// two references.
func logCmd() *cli.Command {
	return &cli.Command{
		Name:   "log",
		Usage:  "Show the revision history",
		Before: requireProject(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "start",
				Usage: "Lower bound reference, exclusive (\"base\", \"current\" or a revision)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Upper bound reference, inclusive (\"heads\", \"current\" or a revision)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			scripts, err := currentMigrate.Log(appContext(ctx),
				parseTarget(cmd.String("start")),
				parseTarget(cmd.String("end")),
			)
			if err != nil {
				return err
			}

			printScripts(cmd, scripts)
			return nil
		},
	}
}
