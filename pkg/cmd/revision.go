package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/revisor-dev/revisor/pkg/migrate"
)

// revision creates the CLI command that writes a new revision file,
// autogenerating its SQL sections unless --empty is given.
func revision() *cli.Command {
	return &cli.Command{
		Name:      "revision",
		Usage:     "Create a new revision file",
		ArgsUsage: "<message>",
		Description: `Create a new revision on top of the current head. The SQL sections
are generated by diffing each database against its declared metadata;
use --empty to create a blank revision instead.

Use --branch to place the revision on a named branch. The branch is
created when no revision carries its label yet.`,
		Before: requireProject(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "empty",
				Usage: "Skip autogeneration and write blank SQL sections",
			},
			&cli.StringFlag{
				Name:  "branch",
				Usage: "Branch to place the revision on",
			},
			&cli.StringFlag{
				Name:  "parent",
				Usage: "Parent revision reference",
			},
			&cli.BoolFlag{
				Name:  "splice",
				Usage: "Allow branching from a non-head parent",
			},
			&cli.StringSliceFlag{
				Name:  "label",
				Usage: "Extra branch labels for the new revision",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Directory to write the revision file to",
			},
			&cli.StringSliceFlag{
				Name:  "depends",
				Usage: "Revisions required before this one outside the parent chain",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			message := cmd.Args().First()
			if message == "" {
				return fmt.Errorf("a revision message is required")
			}

			s, err := currentMigrate.Revision(appContext(ctx), message, migrate.RevisionOptions{
				Empty:     cmd.Bool("empty"),
				Branch:    cmd.String("branch"),
				Parent:    cmd.String("parent"),
				Splice:    cmd.Bool("splice"),
				Labels:    cmd.StringSlice("label"),
				Path:      cmd.String("path"),
				DependsOn: cmd.StringSlice("depends"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.Writer, "Created revision %s: %s\n", s.Revision, s.Path)
			return nil
		},
	}
}
