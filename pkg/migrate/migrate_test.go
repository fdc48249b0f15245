package migrate_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	. "github.com/revisor-dev/revisor/pkg/migrate"
	"github.com/revisor-dev/revisor/pkg/scope"
	"github.com/revisor-dev/revisor/pkg/script"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

type fixture struct {
	m   *Migrate
	app *scope.App
	ctx context.Context
	dbs map[string]*sql.DB
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newFixture builds a registered scope over one sqlite engine per name,
// with the migration layout created under a temp root.
func newFixture(t *testing.T, metadatas map[string]*toolkit.Metadata, names ...string) *fixture {
	t.Helper()

	if len(names) == 0 {
		names = []string{"default"}
	}

	root := t.TempDir()
	engines := map[string]*toolkit.Engine{}
	dbs := map[string]*sql.DB{}

	for _, name := range names {
		db, err := sql.Open("sqlite3", "file:"+filepath.Join(root, name+".db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		engines[name] = &toolkit.Engine{DB: db, Dialect: "sqlite3"}
		dbs[name] = db
	}

	seq := 0
	m := New(Options{
		Logger:   quietLogger(),
		RunMkdir: true,
		RevID: func() string {
			seq++
			return fmt.Sprintf("r%02d", seq)
		},
	})

	app := scope.New(scope.AppParams{
		Name:      "test",
		Root:      root,
		Engines:   engines,
		Metadatas: metadatas,
	})
	require.NoError(t, m.InitApp(app))

	f := &fixture{m: m, app: app, ctx: scope.NewContext(context.Background(), app), dbs: dbs}
	t.Cleanup(func() { f.app.Teardown(nil) })
	return f
}

func (f *fixture) scriptDir() string {
	return filepath.Join(f.app.Root(), "migrations")
}

func (f *fixture) writeRevision(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.scriptDir(), name), []byte(content), 0o644))
}

func currentIDs(t *testing.T, f *fixture) []string {
	t.Helper()

	scripts, err := f.m.Current(f.ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(scripts))
	for _, s := range scripts {
		ids = append(ids, s.Revision)
	}
	return ids
}

func TestInitAppDefaults(t *testing.T) {
	f := newFixture(t, nil)

	st := f.app.Settings()
	require.Equal(t, "migrations", st.ScriptLocation)
	require.Equal(t, true, st.Context["compare_server_default"])
}

func TestMkdir(t *testing.T) {
	f := newFixture(t, nil)
	tmplPath := filepath.Join(f.scriptDir(), script.TemplateName)

	data, err := os.ReadFile(tmplPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "revisor:revision")

	// Re-running never overwrites an edited template.
	require.NoError(t, os.WriteFile(tmplPath, []byte("custom"), 0o644))
	require.NoError(t, f.m.Mkdir(f.ctx))

	data, err = os.ReadFile(tmplPath)
	require.NoError(t, err)
	require.Equal(t, "custom", string(data))
}

func TestUnregisteredScope(t *testing.T) {
	m := New(Options{Logger: quietLogger()})
	app := scope.New(scope.AppParams{Name: "loner"})

	_, err := m.Current(scope.NewContext(context.Background(), app))
	require.Error(t, err)
	require.True(t, IsConfigurationError(err))

	_, err = m.Current(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no active scope")
}

func TestCacheLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("durable objects are memoized", func(t *testing.T) {
		cfg1, err := f.m.Config(f.ctx)
		require.NoError(t, err)
		cfg2, err := f.m.Config(f.ctx)
		require.NoError(t, err)
		require.Same(t, cfg1, cfg2)

		sd1, err := f.m.ScriptDirectory(f.ctx)
		require.NoError(t, err)
		sd2, err := f.m.ScriptDirectory(f.ctx)
		require.NoError(t, err)
		require.Same(t, sd1, sd2)
	})

	t.Run("teardown discards only the transient half", func(t *testing.T) {
		cfg, err := f.m.Config(f.ctx)
		require.NoError(t, err)

		before, err := f.m.MigrationContexts(f.ctx)
		require.NoError(t, err)

		f.app.Teardown(nil)

		after, err := f.m.MigrationContexts(f.ctx)
		require.NoError(t, err)
		require.NotSame(t, before["default"], after["default"])

		cfgAfter, err := f.m.Config(f.ctx)
		require.NoError(t, err)
		require.Same(t, cfg, cfgAfter)
	})

	t.Run("closed contexts reject further use", func(t *testing.T) {
		contexts, err := f.m.MigrationContexts(f.ctx)
		require.NoError(t, err)
		mc := contexts["default"]

		f.app.Teardown(nil)

		_, err = mc.CurrentHeads(f.ctx)
		require.Error(t, err)
	})
}

func TestAutogeneratedRevisionRoundTrip(t *testing.T) {
	meta := &toolkit.Metadata{Tables: []toolkit.Table{{
		Name: "users",
		Columns: []toolkit.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "email", Type: "TEXT", Nullable: true},
		},
	}}}

	f := newFixture(t, map[string]*toolkit.Metadata{"default": meta})

	s, err := f.m.Revision(f.ctx, "create users", RevisionOptions{})
	require.NoError(t, err)
	require.Contains(t, s.Up["default"], "CREATE TABLE users")
	require.Contains(t, s.Down["default"], "DROP TABLE users")

	require.NoError(t, f.m.Upgrade(f.ctx, Target{}))
	require.Equal(t, []string{s.Revision}, currentIDs(t, f))

	// The live schema now matches the metadata.
	plan, err := f.m.ProduceMigrations(f.ctx)
	require.NoError(t, err)
	require.True(t, plan.Empty())

	ops, err := f.m.CompareMetadata(f.ctx)
	require.NoError(t, err)
	require.Empty(t, ops)

	require.NoError(t, f.m.Downgrade(f.ctx, TargetRefs("base")))
	require.Empty(t, currentIDs(t, f))

	_, err = f.dbs["default"].Exec("INSERT INTO users (id) VALUES (1)")
	require.Error(t, err)
}

func TestEmptyRevisionRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.m.Revision(f.ctx, "first", RevisionOptions{Empty: true})
	require.NoError(t, err)

	second, err := f.m.Revision(f.ctx, "second", RevisionOptions{Empty: true})
	require.NoError(t, err)
	require.Equal(t, []string{first.Revision}, second.DownRevisions)

	require.NoError(t, f.m.Upgrade(f.ctx, Target{}))
	require.Equal(t, []string{second.Revision}, currentIDs(t, f))

	require.NoError(t, f.m.Downgrade(f.ctx, TargetRelative(-1)))
	require.Equal(t, []string{first.Revision}, currentIDs(t, f))

	require.NoError(t, f.m.Upgrade(f.ctx, Target{}))
	require.Equal(t, []string{second.Revision}, currentIDs(t, f))
}

func TestDowngradeNegatesPositiveOffsets(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.m.Revision(f.ctx, "first", RevisionOptions{Empty: true})
	require.NoError(t, err)
	_, err = f.m.Revision(f.ctx, "second", RevisionOptions{Empty: true})
	require.NoError(t, err)

	require.NoError(t, f.m.Upgrade(f.ctx, Target{}))
	require.NoError(t, f.m.Downgrade(f.ctx, TargetRelative(2)))
	require.Empty(t, currentIDs(t, f))
}

func TestStamp(t *testing.T) {
	f := newFixture(t, nil)

	s, err := f.m.Revision(f.ctx, "only", RevisionOptions{Empty: true})
	require.NoError(t, err)

	require.NoError(t, f.m.Stamp(f.ctx, Target{}))
	require.Equal(t, []string{s.Revision}, currentIDs(t, f))
}

func TestLogAndHeads(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.m.Revision(f.ctx, "first", RevisionOptions{Empty: true})
	require.NoError(t, err)
	second, err := f.m.Revision(f.ctx, "second", RevisionOptions{Empty: true})
	require.NoError(t, err)

	history, err := f.m.Log(f.ctx, Target{}, Target{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.Revision, history[0].Revision)
	require.Equal(t, second.Revision, history[1].Revision)

	heads, err := f.m.Heads(f.ctx, false)
	require.NoError(t, err)
	require.Len(t, heads, 1)
	require.Equal(t, second.Revision, heads[0].Revision)

	// Upgrade one step, then log from the current position.
	require.NoError(t, f.m.Upgrade(f.ctx, TargetScript(first)))
	rest, err := f.m.Log(f.ctx, TargetCurrent(), Target{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, second.Revision, rest[0].Revision)
}

func TestBranchWorkflow(t *testing.T) {
	f := newFixture(t, nil)

	trunk, err := f.m.Revision(f.ctx, "trunk", RevisionOptions{Empty: true})
	require.NoError(t, err)

	var start *toolkit.Script

	t.Run("unseen branch starts at base with its label", func(t *testing.T) {
		s, err := f.m.Revision(f.ctx, "auth start", RevisionOptions{Empty: true, Branch: "auth"})
		require.NoError(t, err)
		require.Empty(t, s.DownRevisions)
		require.Contains(t, s.BranchLabels, "auth")
		start = s
	})

	t.Run("explicit parent id chains onto the branch", func(t *testing.T) {
		s, err := f.m.Revision(f.ctx, "auth next", RevisionOptions{Empty: true, Branch: "auth", Parent: start.Revision})
		require.NoError(t, err)
		require.Equal(t, []string{start.Revision}, s.DownRevisions)
		require.NotContains(t, s.BranchLabels, "auth")
	})

	t.Run("existing branch chains onto its head", func(t *testing.T) {
		s, err := f.m.Revision(f.ctx, "auth more", RevisionOptions{Empty: true, Branch: "auth"})
		require.NoError(t, err)
		require.Len(t, s.DownRevisions, 1)
	})

	t.Run("merge joins the heads", func(t *testing.T) {
		heads, err := f.m.Heads(f.ctx, false)
		require.NoError(t, err)
		require.Len(t, heads, 2)

		merged, err := f.m.Merge(f.ctx, "", Target{})
		require.NoError(t, err)
		require.Len(t, merged.DownRevisions, 2)
		require.Contains(t, merged.Message, "merge")

		heads, err = f.m.Heads(f.ctx, false)
		require.NoError(t, err)
		require.Len(t, heads, 1)
	})

	t.Run("branches reports the split", func(t *testing.T) {
		// The trunk revision never became a branchpoint; only label
		// bootstrap created the second root.
		points, err := f.m.Branches(f.ctx)
		require.NoError(t, err)
		require.Empty(t, points)

		_, err = f.m.Revision(f.ctx, "split", RevisionOptions{Empty: true, Parent: trunk.Revision, Splice: true})
		require.NoError(t, err)

		points, err = f.m.Branches(f.ctx)
		require.NoError(t, err)
		require.Len(t, points, 1)
		require.Equal(t, trunk.Revision, points[0].Revision)
	})
}

func TestBranchVersionLocation(t *testing.T) {
	root := t.TempDir()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(root, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := New(Options{Logger: quietLogger(), RunMkdir: true, RevID: func() string { return "r01" }})
	app := scope.New(scope.AppParams{
		Name: "test",
		Root: root,
		Settings: scope.Settings{
			VersionLocations: []scope.VersionLocation{{Branch: "auth", Path: "migrations/auth"}},
		},
		Engines: map[string]*toolkit.Engine{"default": {DB: db, Dialect: "sqlite3"}},
	})
	require.NoError(t, m.InitApp(app))

	ctx := scope.NewContext(context.Background(), app)
	t.Cleanup(func() { app.Teardown(nil) })

	s, err := m.Revision(ctx, "auth start", RevisionOptions{Empty: true, Branch: "auth"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "migrations", "auth"), filepath.Dir(s.Path))
}

func TestOperationsCache(t *testing.T) {
	f := newFixture(t, nil)

	op1, err := f.m.Op(f.ctx, "default")
	require.NoError(t, err)
	op2, err := f.m.Op(f.ctx, "default")
	require.NoError(t, err)
	require.Same(t, op1, op2)

	// Teardown invalidates the operations with the contexts they wrap.
	f.app.Teardown(nil)

	op3, err := f.m.Op(f.ctx, "default")
	require.NoError(t, err)
	require.NotSame(t, op1, op3)
}

func TestScopesAreIsolated(t *testing.T) {
	seq := 0
	m := New(Options{
		Logger:   quietLogger(),
		RunMkdir: true,
		RevID: func() string {
			seq++
			return fmt.Sprintf("r%02d", seq)
		},
	})

	newApp := func(name string) context.Context {
		root := t.TempDir()
		db, err := sql.Open("sqlite3", "file:"+filepath.Join(root, "app.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		app := scope.New(scope.AppParams{
			Name:    name,
			Root:    root,
			Engines: map[string]*toolkit.Engine{"default": {DB: db, Dialect: "sqlite3"}},
		})
		require.NoError(t, m.InitApp(app))
		t.Cleanup(func() { app.Teardown(nil) })

		return scope.NewContext(context.Background(), app)
	}

	ctx1 := newApp("one")
	ctx2 := newApp("two")

	cfg1, err := m.Config(ctx1)
	require.NoError(t, err)
	cfg2, err := m.Config(ctx2)
	require.NoError(t, err)
	require.NotSame(t, cfg1, cfg2)

	_, err = m.Revision(ctx1, "only in one", RevisionOptions{Empty: true})
	require.NoError(t, err)

	heads1, err := m.Heads(ctx1, false)
	require.NoError(t, err)
	require.Len(t, heads1, 1)

	heads2, err := m.Heads(ctx2, false)
	require.NoError(t, err)
	require.Empty(t, heads2)
}

func TestCompareServerDefaultSetting(t *testing.T) {
	meta := map[string]*toolkit.Metadata{"default": {Tables: []toolkit.Table{{
		Name:    "users",
		Columns: []toolkit.Column{{Name: "id", Type: "INTEGER", Default: "1"}},
	}}}}

	build := func(t *testing.T, flag bool) (*Migrate, context.Context) {
		root := t.TempDir()
		db, err := sql.Open("sqlite3", "file:"+filepath.Join(root, "app.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		_, err = db.Exec("CREATE TABLE users (id INTEGER NOT NULL DEFAULT 0)")
		require.NoError(t, err)

		m := New(Options{Logger: quietLogger(), RunMkdir: true})
		app := scope.New(scope.AppParams{
			Name:      "test",
			Root:      root,
			Settings:  scope.Settings{Context: map[string]any{"compare_server_default": flag}},
			Engines:   map[string]*toolkit.Engine{"default": {DB: db, Dialect: "sqlite3"}},
			Metadatas: meta,
		})
		require.NoError(t, m.InitApp(app))
		t.Cleanup(func() { app.Teardown(nil) })

		return m, scope.NewContext(context.Background(), app)
	}

	t.Run("disabled ignores default changes", func(t *testing.T) {
		m, ctx := build(t, false)

		ops, err := m.CompareMetadata(ctx)
		require.NoError(t, err)
		require.Empty(t, ops)
	})

	t.Run("enabled reports default changes", func(t *testing.T) {
		m, ctx := build(t, true)

		ops, err := m.CompareMetadata(ctx)
		require.NoError(t, err)
		require.Len(t, ops, 1)
	})
}

func TestNoEnginesConfigured(t *testing.T) {
	m := New(Options{Logger: quietLogger()})
	app := scope.New(scope.AppParams{Name: "empty", Root: t.TempDir()})
	require.NoError(t, m.InitApp(app))

	_, err := m.Current(scope.NewContext(context.Background(), app))
	require.Error(t, err)
	require.True(t, IsConfigurationError(err))
}

func TestMetadataWithoutEngine(t *testing.T) {
	root := t.TempDir()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(root, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := New(Options{Logger: quietLogger()})
	app := scope.New(scope.AppParams{
		Name:      "mismatch",
		Root:      root,
		Engines:   map[string]*toolkit.Engine{"default": {DB: db, Dialect: "sqlite3"}},
		Metadatas: map[string]*toolkit.Metadata{"other": {}},
	})
	require.NoError(t, m.InitApp(app))

	_, err = m.Config(scope.NewContext(context.Background(), app))
	require.Error(t, err)
	require.True(t, IsConfigurationError(err))
}
