package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/revisor-dev/revisor/pkg/migrate"
)

// merge creates the CLI command joining divergent revision heads into a
// single parent chain.
func merge() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Create a revision merging the given heads",
		ArgsUsage: "[revision...]",
		Before:    requireProject(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Revision message",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			target := migrate.Target{}
			if args := cmd.Args().Slice(); len(args) > 0 {
				target = migrate.TargetRefs(args...)
			}

			s, err := currentMigrate.Merge(appContext(ctx), cmd.String("message"), target)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.Writer, "Created merge revision %s: %s\n", s.Revision, s.Path)
			return nil
		},
	}
}
