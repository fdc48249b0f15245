// Package migrate is the lifecycle core: it binds the migration toolkit
// to application scopes, caching one set of toolkit objects per scope
// and exposing the revision workflow operations against the scope
// carried on the calling context.
//
// Example:
//
//	m := migrate.New(migrate.Options{})
//	app := scope.New(scope.AppParams{
//		Name:    "billing",
//		Root:    "/srv/billing",
//		Engines: map[string]*toolkit.Engine{"default": eng},
//	})
//	if err := m.InitApp(app); err != nil {
//		return err
//	}
//
//	ctx := scope.NewContext(context.Background(), app)
//	if err := m.Upgrade(ctx, migrate.Target{}); err != nil {
//		return err
//	}
package migrate

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"weak"

	"github.com/sirupsen/logrus"

	runtimeenv "github.com/revisor-dev/revisor/pkg/runtime"
	"github.com/revisor-dev/revisor/pkg/scope"
	"github.com/revisor-dev/revisor/pkg/script"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

type (
	// Options configures a Migrate instance.
	Options struct {
		// Logger receives teardown close failures and progress messages.
		// Defaults to the logrus standard logger.
		Logger logrus.FieldLogger

		// RevID generates revision ids. Defaults to a UTC timestamp with
		// a monotonic fallback for same-second collisions.
		RevID func() string

		// RunMkdir creates the migration directory layout during
		// InitApp.
		RunMkdir bool
	}

	// Migrate associates toolkit object caches with application scopes.
	// One instance serves any number of scopes; the association is weak,
	// so a collected scope releases its cache without explicit
	// deregistration.
	Migrate struct {
		opts Options
		log  logrus.FieldLogger

		mu     sync.Mutex
		caches map[weak.Pointer[scope.App]]*cache

		revMu     sync.Mutex
		lastRevID string
	}
)

// New returns a Migrate instance. Apps must be registered with InitApp
// before any operation is called against their scope.
func New(opts Options) *Migrate {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Migrate{
		opts:   opts,
		log:    log,
		caches: map[weak.Pointer[scope.App]]*cache{},
	}
}

// InitApp registers app: settings defaults are applied, a fresh cache
// is associated with the scope, and a teardown callback is installed
// that discards the cache's transient objects. With RunMkdir set the
// migration directory layout is created as well.
func (m *Migrate) InitApp(app *scope.App) error {
	st := app.Settings()
	if st.ScriptLocation == "" {
		st.ScriptLocation = "migrations"
	}
	if st.Context == nil {
		st.Context = map[string]any{}
	}
	if _, ok := st.Context["compare_server_default"]; !ok {
		st.Context["compare_server_default"] = true
	}

	c := m.register(app)
	app.OnTeardown(func(error) { c.clear(m.log) })

	if m.opts.RunMkdir {
		if err := m.Mkdir(scope.NewContext(context.Background(), app)); err != nil {
			return err
		}
	}

	return nil
}

// register creates (or returns) the cache for app. The registry key is
// a weak pointer, and a cleanup removes the entry once the scope is
// collected.
func (m *Migrate) register(app *scope.App) *cache {
	ptr := weak.Make(app)

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches[ptr]; ok {
		return c
	}

	c := &cache{}
	m.caches[ptr] = c

	runtime.AddCleanup(app, func(p weak.Pointer[scope.App]) {
		m.mu.Lock()
		delete(m.caches, p)
		m.mu.Unlock()
	}, ptr)

	return c
}

// cacheFor returns the cache of the scope on ctx. The scope must have
// been registered with InitApp.
func (m *Migrate) cacheFor(ctx context.Context) (*scope.App, *cache, error) {
	app, err := scope.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	c, ok := m.caches[weak.Make(app)]
	m.mu.Unlock()

	if !ok {
		return nil, nil, newConfigurationError("app %q is not registered; call InitApp first", app.Name())
	}

	return app, c, nil
}

// Config returns the scope's toolkit config, building it on first use.
func (m *Migrate) Config(ctx context.Context) (*toolkit.Config, error) {
	app, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return m.configLocked(app, c)
}

func (m *Migrate) configLocked(app *scope.App, c *cache) (*toolkit.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	engines, _, err := m.targetsLocked(app, c)
	if err != nil {
		return nil, err
	}

	st := app.Settings()
	cfg := toolkit.NewConfig()
	cfg.SetMainOption("script_location", absPath(app.Root(), st.ScriptLocation))
	cfg.SetTemplates(templates)

	var locations []string
	for _, vl := range st.VersionLocations {
		locations = append(locations, absPath(app.Root(), vl.Path))
	}
	if len(locations) > 0 {
		cfg.SetMainOption("version_locations", strings.Join(locations, ","))
	}

	for k, v := range st.Extra {
		cfg.SetMainOption(k, v)
	}

	if len(engines) > 1 {
		names := make([]string, 0, len(engines))
		for name := range engines {
			names = append(names, name)
		}
		sort.Strings(names)
		cfg.SetMainOption("databases", strings.Join(names, ","))
	}

	if st.RevisionEnvironment {
		cfg.SetMainOption("revision_environment", "true")
	}

	c.cfg = cfg
	return cfg, nil
}

// ScriptDirectory returns the scope's script directory, loading the
// revision files on first use.
func (m *Migrate) ScriptDirectory(ctx context.Context) (toolkit.ScriptDirectory, error) {
	app, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return m.scriptsLocked(app, c)
}

func (m *Migrate) scriptsLocked(app *scope.App, c *cache) (toolkit.ScriptDirectory, error) {
	if c.scripts != nil {
		return c.scripts, nil
	}

	cfg, err := m.configLocked(app, c)
	if err != nil {
		return nil, err
	}

	scripts, err := script.New(cfg)
	if err != nil {
		return nil, err
	}

	c.scripts = scripts
	return scripts, nil
}

// Environment returns the scope's environment context, building it on
// first use.
func (m *Migrate) Environment(ctx context.Context) (toolkit.EnvironmentContext, error) {
	app, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return m.envLocked(app, c)
}

func (m *Migrate) envLocked(app *scope.App, c *cache) (toolkit.EnvironmentContext, error) {
	if c.env != nil {
		return c.env, nil
	}

	cfg, err := m.configLocked(app, c)
	if err != nil {
		return nil, err
	}

	scripts, err := m.scriptsLocked(app, c)
	if err != nil {
		return nil, err
	}

	c.env = runtimeenv.New(cfg, scripts)
	return c.env, nil
}

// targetsLocked validates and caches the scope's engine and metadata
// maps. Every metadata name must have a matching engine.
func (m *Migrate) targetsLocked(app *scope.App, c *cache) (map[string]*toolkit.Engine, map[string]*toolkit.Metadata, error) {
	if c.engines != nil {
		return c.engines, c.metadatas, nil
	}

	engines := app.Engines()
	if len(engines) == 0 {
		return nil, nil, newConfigurationError("no database engines configured for app %q", app.Name())
	}

	metadatas := app.Metadatas()
	for name := range metadatas {
		if _, ok := engines[name]; !ok {
			return nil, nil, newConfigurationError("metadata configured for %q but no engine with that name exists", name)
		}
	}

	c.engines = engines
	c.metadatas = metadatas
	return engines, metadatas, nil
}

// MigrationContexts returns one migration context per configured
// engine, creating and caching them on first use. The contexts are
// transient: the scope teardown closes them.
func (m *Migrate) MigrationContexts(ctx context.Context) (map[string]toolkit.MigrationContext, error) {
	app, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return m.contextsLocked(ctx, app, c)
}

func (m *Migrate) contextsLocked(ctx context.Context, app *scope.App, c *cache) (map[string]toolkit.MigrationContext, error) {
	if c.contexts != nil {
		return c.contexts, nil
	}

	engines, metadatas, err := m.targetsLocked(app, c)
	if err != nil {
		return nil, err
	}

	env, err := m.envLocked(app, c)
	if err != nil {
		return nil, err
	}

	multi := len(engines) > 1
	contexts := map[string]toolkit.MigrationContext{}

	for _, name := range sortedNames(engines) {
		eng := engines[name]

		conn, err := eng.DB.Conn(ctx)
		if err != nil {
			closeContexts(contexts, m.log)
			return nil, newTransactionError(name, err)
		}

		opts := toolkit.ConfigureOptions{
			Conn:           conn,
			Dialect:        eng.Dialect,
			TargetMetadata: metadatas[name],
			Extra:          app.Settings().Context,
		}
		if multi {
			opts.UpgradeToken = name + "_upgrades"
			opts.DowngradeToken = name + "_downgrades"
		}

		mc, err := env.Configure(ctx, opts)
		if err != nil {
			_ = conn.Close()
			closeContexts(contexts, m.log)
			return nil, err
		}

		contexts[name] = mc
	}

	c.contexts = contexts
	return contexts, nil
}

// MigrationContext returns the migration context for the named engine,
// or the sole configured engine when name is empty.
func (m *Migrate) MigrationContext(ctx context.Context, name string) (toolkit.MigrationContext, error) {
	contexts, err := m.MigrationContexts(ctx)
	if err != nil {
		return nil, err
	}

	if name == "" {
		if len(contexts) > 1 {
			return nil, newConfigurationError("multiple databases are configured; name one")
		}
		for _, mc := range contexts {
			return mc, nil
		}
	}

	mc, ok := contexts[name]
	if !ok {
		return nil, newConfigurationError("no engine named %q is configured", name)
	}

	return mc, nil
}

// Op returns the operations handle for the named engine, creating and
// caching it alongside the migration context.
func (m *Migrate) Op(ctx context.Context, name string) (*toolkit.Operations, error) {
	_, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	mc, err := m.MigrationContext(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ops == nil {
		c.ops = map[string]*toolkit.Operations{}
	}

	if op, ok := c.ops[name]; ok {
		return op, nil
	}

	op := toolkit.NewOperations(mc)
	c.ops[name] = op
	return op, nil
}

// revID produces the next revision id.
func (m *Migrate) revID() string {
	if m.opts.RevID != nil {
		return m.opts.RevID()
	}

	m.revMu.Lock()
	defer m.revMu.Unlock()

	id := time.Now().UTC().Format("20060102150405")
	if id <= m.lastRevID {
		if n, err := strconv.ParseUint(m.lastRevID, 10, 64); err == nil {
			id = strconv.FormatUint(n+1, 10)
		}
	}

	m.lastRevID = id
	return id
}

func absPath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(root, path)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func closeContexts(contexts map[string]toolkit.MigrationContext, log logrus.FieldLogger) {
	for name, mc := range contexts {
		if err := mc.Close(); err != nil {
			log.WithError(err).WithField("database", name).Warn("failed to close migration context")
		}
	}
}

func newTransactionError(database string, err error) error {
	return &TransactionError{Database: database, Err: err}
}
