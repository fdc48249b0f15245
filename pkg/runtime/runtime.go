// Package runtime implements the toolkit environment and migration
// context over database/sql connections. Each migration context owns
// one dedicated connection, tracks applied revisions in the
// revisor_version table, and executes planned steps inside a single
// transaction scope.
package runtime

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// VersionTable is the bookkeeping table holding the currently applied
// revision ids (one row per head).
const VersionTable = "revisor_version"

const createVersionTable = `CREATE TABLE IF NOT EXISTS ` + VersionTable + ` (
	version_num VARCHAR(64) NOT NULL PRIMARY KEY
)`

type (
	// Environment builds migration contexts from a config and script
	// directory. It satisfies toolkit.EnvironmentContext.
	Environment struct {
		cfg     *toolkit.Config
		scripts toolkit.ScriptDirectory
	}

	// Context is one live migration context. It satisfies
	// toolkit.MigrationContext.
	Context struct {
		conn *sql.Conn
		opts toolkit.ConfigureOptions
		fn   toolkit.StepFunc

		mu     sync.Mutex
		tx     *sql.Tx
		closed bool
	}

	// transaction is the scoped handle returned by BeginTransaction.
	transaction struct {
		ctx  *Context
		done bool
	}
)

// New returns an Environment over the given config and script
// directory.
func New(cfg *toolkit.Config, scripts toolkit.ScriptDirectory) *Environment {
	return &Environment{cfg: cfg, scripts: scripts}
}

// Config returns the environment's config.
func (e *Environment) Config() *toolkit.Config { return e.cfg }

// ScriptDirectory returns the environment's script directory.
func (e *Environment) ScriptDirectory() toolkit.ScriptDirectory { return e.scripts }

// Configure creates a migration context owning opts.Conn and ensures
// the version table exists.
func (e *Environment) Configure(ctx context.Context, opts toolkit.ConfigureOptions) (toolkit.MigrationContext, error) {
	if opts.Conn == nil {
		return nil, errors.New("cannot configure a migration context without a connection")
	}

	if opts.Extra != nil {
		extra := make(map[string]any, len(opts.Extra))
		for k, v := range opts.Extra {
			extra[k] = v
		}
		opts.Extra = extra
	}

	mc := &Context{conn: opts.Conn, opts: opts}

	if _, err := mc.conn.ExecContext(ctx, createVersionTable); err != nil {
		_ = mc.Close()
		return nil, errors.Wrap(err, "failed to create version table")
	}

	return mc, nil
}

// Options returns the options the context was configured with.
func (c *Context) Options() toolkit.ConfigureOptions { return c.opts }

// Connection returns the owned connection.
func (c *Context) Connection() *sql.Conn { return c.conn }

// SetStepFunc installs the planning function used by RunMigrations.
func (c *Context) SetStepFunc(fn toolkit.StepFunc) { c.fn = fn }

// BeginTransaction opens the context's transaction scope. Only one
// scope may be open at a time.
func (c *Context) BeginTransaction(ctx context.Context) (toolkit.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx != nil {
		return nil, errors.New("transaction already in progress")
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	c.tx = tx
	return &transaction{ctx: c}, nil
}

func (t *transaction) Commit() error {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	tx := t.ctx.tx
	t.ctx.tx = nil

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

func (t *transaction) Rollback() error {
	t.ctx.mu.Lock()
	defer t.ctx.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true

	tx := t.ctx.tx
	t.ctx.tx = nil

	if err := tx.Rollback(); err != nil {
		return errors.Wrap(err, "failed to roll back transaction")
	}

	return nil
}

// Exec runs a statement through the active transaction when one is
// open, otherwise directly on the owned connection.
func (c *Context) Exec(ctx context.Context, query string, args ...any) error {
	c.mu.Lock()
	tx := c.tx
	c.mu.Unlock()

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = c.conn.ExecContext(ctx, query, args...)
	}

	return err
}

// Query runs a query the same way Exec runs statements.
func (c *Context) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.mu.Lock()
	tx := c.tx
	c.mu.Unlock()

	if tx != nil {
		return tx.QueryContext(ctx, query, args...)
	}

	return c.conn.QueryContext(ctx, query, args...)
}

// CurrentHeads returns the revision ids recorded in the version table,
// sorted ascending.
func (c *Context) CurrentHeads(ctx context.Context) ([]string, error) {
	rows, err := c.Query(ctx, "SELECT version_num FROM "+VersionTable)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query version table")
	}
	defer rows.Close()

	var heads []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "failed to scan version row")
		}
		heads = append(heads, v)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate version rows")
	}

	sort.Strings(heads)
	return heads, nil
}

// RunMigrations plans steps via the installed StepFunc and executes
// them in order. Extra arguments are accepted for parity with callers
// that tag multi-database runs; the SQL runtime has no use for them.
func (c *Context) RunMigrations(ctx context.Context, extra map[string]any) error {
	if c.fn == nil {
		return errors.New("no step function installed")
	}

	heads, err := c.CurrentHeads(ctx)
	if err != nil {
		return err
	}

	steps, err := c.fn(heads, c)
	if err != nil {
		return err
	}

	for _, step := range steps {
		if err := c.runStep(ctx, step); err != nil {
			return err
		}
	}

	return nil
}

// sectionKey returns the logical database name whose SQL sections this
// context runs, derived from the upgrade token for multi-database
// configurations.
func (c *Context) sectionKey() string {
	if name, ok := strings.CutSuffix(c.opts.UpgradeToken, "_upgrades"); ok && name != "" {
		return name
	}

	return "default"
}

func (c *Context) runStep(ctx context.Context, step toolkit.MigrationStep) error {
	switch step.Op {
	case toolkit.StepUpgrade:
		if stmt := step.Revision.Up[c.sectionKey()]; stmt != "" {
			if err := c.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "failed to upgrade to %s", step.Revision.Revision)
			}
		}
	case toolkit.StepDowngrade:
		if stmt := step.Revision.Down[c.sectionKey()]; stmt != "" {
			if err := c.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(err, "failed to downgrade %s", step.Revision.Revision)
			}
		}
	case toolkit.StepStamp:
		// Version delta only.
	}

	return c.applyVersionDelta(ctx, step)
}

// placeholder returns the bind parameter syntax for the context's
// dialect. Only single-parameter statements are used here.
func (c *Context) placeholder() string {
	if c.opts.Dialect == "postgres" {
		return "$1"
	}

	return "?"
}

func (c *Context) applyVersionDelta(ctx context.Context, step toolkit.MigrationStep) error {
	ph := c.placeholder()

	for _, v := range step.DeleteVersions {
		if err := c.Exec(ctx, "DELETE FROM "+VersionTable+" WHERE version_num = "+ph, v); err != nil {
			return errors.Wrapf(err, "failed to delete version %s", v)
		}
	}

	for _, v := range step.InsertVersions {
		rows, err := c.Query(ctx, "SELECT 1 FROM "+VersionTable+" WHERE version_num = "+ph, v)
		if err != nil {
			return errors.Wrapf(err, "failed to check version %s", v)
		}

		exists := rows.Next()
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return errors.Wrapf(err, "failed to check version %s", v)
		}
		_ = rows.Close()

		if exists {
			continue
		}

		if err := c.Exec(ctx, "INSERT INTO "+VersionTable+" (version_num) VALUES ("+ph+")", v); err != nil {
			return errors.Wrapf(err, "failed to insert version %s", v)
		}
	}

	return nil
}

// Close releases the owned connection. Safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}

	if err := c.conn.Close(); err != nil {
		return errors.Wrap(err, "failed to close connection")
	}

	return nil
}
