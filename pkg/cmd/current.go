package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// current creates the CLI command showing the revisions applied across
// the project's databases.
func current() *cli.Command {
	return &cli.Command{
		Name:   "current",
		Usage:  "Show the currently applied revisions",
		Before: requireProject(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			scripts, err := currentMigrate.Current(appContext(ctx))
			if err != nil {
				return err
			}

			if len(scripts) == 0 {
				fmt.Fprintln(cmd.Writer, "No revisions applied")
				return nil
			}

			printScripts(cmd, scripts)
			return nil
		},
	}
}

func printScripts(cmd *cli.Command, scripts []*toolkit.Script) {
	for _, s := range scripts {
		line := s.Revision
		if s.Message != "" {
			line += "  " + s.Message
		}
		if len(s.BranchLabels) > 0 {
			line += fmt.Sprintf("  (%v)", s.BranchLabels)
		}

		fmt.Fprintln(cmd.Writer, line)
	}
}
