package toolkit

import (
	"context"
	"database/sql"
)

type (
	// Engine pairs an open database handle with the SQL dialect it
	// speaks. The dialect selects introspection queries during
	// autogeneration ("sqlite3", "postgres", "clickhouse").
	Engine struct {
		DB      *sql.DB
		Dialect string
	}

	// ConfigureOptions is the per-context configuration passed to
	// EnvironmentContext.Configure. A fresh value is built for every
	// Configure call; implementations must not retain references to
	// caller-owned maps.
	ConfigureOptions struct {
		// Conn is the dedicated connection this context will own. The
		// context is responsible for closing it.
		Conn *sql.Conn

		// Dialect of the engine the connection came from.
		Dialect string

		// TargetMetadata describes the schema shape migrations are
		// generated toward. May be nil for contexts that only execute.
		TargetMetadata *Metadata

		// UpgradeToken and DowngradeToken select which SQL section of a
		// combined multi-database script this context runs. Empty for
		// single-database configurations.
		UpgradeToken   string
		DowngradeToken string

		// Extra carries the scope's extra context options, e.g.
		// compare_server_default.
		Extra map[string]any
	}

	// Transaction is a scoped transaction handle. Exactly one of Commit
	// or Rollback must be called; both are safe to call twice (the
	// second call is a no-op).
	Transaction interface {
		Commit() error
		Rollback() error
	}

	// MigrationContext wraps one live database connection and the
	// version-table bookkeeping for one logical database. Contexts are
	// created by EnvironmentContext.Configure and owned by the scope
	// cache, which closes them when the scope ends.
	MigrationContext interface {
		// BeginTransaction opens the context's transaction scope.
		BeginTransaction(ctx context.Context) (Transaction, error)

		// SetStepFunc installs the planning function RunMigrations uses.
		SetStepFunc(fn StepFunc)

		// RunMigrations plans steps via the installed StepFunc and
		// executes them inside the current transaction scope. Extra
		// arguments are passed through to the steps; unknown keys are
		// ignored.
		RunMigrations(ctx context.Context, extra map[string]any) error

		// CurrentHeads returns the revision ids recorded as applied.
		CurrentHeads(ctx context.Context) ([]string, error)

		// Exec runs a statement through the active transaction when one
		// is open, otherwise directly on the owned connection.
		Exec(ctx context.Context, query string, args ...any) error

		// Query runs a query the same way Exec runs statements.
		Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)

		// Connection exposes the owned connection. Callers must not
		// close it; see Close.
		Connection() *sql.Conn

		// Options returns the options the context was configured with.
		Options() ConfigureOptions

		// Close releases the owned connection. Only the owning scope
		// cache may call this.
		Close() error
	}

	// EnvironmentContext builds migration contexts from a config and
	// script directory. It is durable for a scope's whole life while the
	// contexts it produces are transient.
	EnvironmentContext interface {
		Configure(ctx context.Context, opts ConfigureOptions) (MigrationContext, error)
	}
)
