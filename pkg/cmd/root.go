package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"

	"github.com/revisor-dev/revisor/pkg/config"
	"github.com/revisor-dev/revisor/pkg/migrate"
	"github.com/revisor-dev/revisor/pkg/scope"
)

// Project state built by the root command's Before hook once the
// project directory is known.
var (
	currentApp     *scope.App
	currentMigrate *migrate.Migrate
	currentCloser  func() error
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Config     *config.Config `optional:"true"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates and executes the revisor CLI application. The root
// command handles global configuration:
//
//   - --dir, -d: project directory (defaults to the current directory)
//
// The application detects revisor projects by looking for revisor.yaml
// in the project directory. When found, the application scope, its
// engines and the migration core are built before any subcommand runs
// and torn down after it finishes.
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "revisor",
		Usage: "A tool for managing versioned database migrations",
		Description: `revisor manages database schema migrations as a graph of revision
files. It tracks the revisions applied to each configured database,
generates new revisions by diffing the live schema against declared
metadata, and upgrades or downgrades every database in lockstep.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the project directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := os.Chdir(cmd.String("dir")); err != nil {
				return ctx, err
			}

			// Environment files are optional.
			_ = godotenv.Load()

			// The injected config was loaded before --dir took effect;
			// fall back to loading from the project directory.
			cfg := p.Config
			if cfg == nil {
				if _, err := os.Stat(config.FileName); os.IsNotExist(err) {
					return ctx, nil
				} else if err != nil {
					return ctx, err
				}

				loaded, err := config.LoadConfigFile(config.FileName)
				if err != nil {
					return ctx, err
				}
				cfg = loaded
			}

			pwd, err := os.Getwd()
			if err != nil {
				return ctx, errors.Wrap(err, "failed to get current working directory")
			}

			currentApp, currentCloser, err = cfg.App(filepath.Base(pwd), pwd)
			if err != nil {
				return ctx, err
			}

			currentMigrate = migrate.New(migrate.Options{Logger: logrus.StandardLogger()})
			if err := currentMigrate.InitApp(currentApp); err != nil {
				return ctx, err
			}

			return ctx, nil
		},
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		err := app.Run(p.Ctx, p.Args)
		finishProject(err)

		if err != nil {
			logrus.WithError(err).Error("command failed")
			_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
			return
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

// finishProject tears down the scope built by the root Before hook and
// releases the project's engines.
func finishProject(err error) {
	if currentApp != nil {
		currentApp.Teardown(err)
	}

	if currentCloser != nil {
		if cerr := currentCloser(); cerr != nil {
			logrus.WithError(cerr).Warn("failed to close database engines")
		}
	}
}

// requireProject guards commands that need a revisor project.
func requireProject() func(context.Context, *cli.Command) (context.Context, error) {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if currentApp == nil {
			return ctx, errors.New(config.FileName + " not found")
		}

		return ctx, nil
	}
}

// appContext attaches the project scope to ctx.
func appContext(ctx context.Context) context.Context {
	return scope.NewContext(ctx, currentApp)
}

var relativeTarget = regexp.MustCompile(`^[+-]\d+$`)

// parseTarget turns a command-line revision argument into a Target.
// Signed integers are relative offsets; "current" expands to the
// applied revisions; anything else is a revision reference. An empty
// argument yields the zero target so each operation applies its own
// default.
func parseTarget(s string) migrate.Target {
	switch {
	case s == "":
		return migrate.Target{}
	case s == "current":
		return migrate.TargetCurrent()
	case relativeTarget.MatchString(s):
		n, _ := strconv.Atoi(s)
		return migrate.TargetRelative(n)
	default:
		return migrate.TargetRefs(s)
	}
}
