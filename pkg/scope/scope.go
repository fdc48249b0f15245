// Package scope models the bounded-lifetime application context that
// keys revisor's object cache. A scope is created by the host (one per
// application instance, or per request for hosts that rebuild state per
// request), carried through call chains on a context.Context, and torn
// down exactly once when the host finishes with it.
package scope

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

type (
	// VersionLocation is one extra revision storage path, optionally
	// bound to a branch name so revisions created on that branch land
	// in their own directory.
	VersionLocation struct {
		Branch string
		Path   string
	}

	// Settings holds the per-scope migration configuration. Zero values
	// get defaults applied during Migrate.InitApp: ScriptLocation
	// defaults to "migrations" and Context gains
	// compare_server_default=true when unset.
	Settings struct {
		// ScriptLocation is the script storage root, absolute or
		// relative to the app root.
		ScriptLocation string

		// VersionLocations are extra revision storage paths.
		VersionLocations []VersionLocation

		// Context holds extra options merged into every environment
		// configure call.
		Context map[string]any

		// RevisionEnvironment forces the generation environment to run
		// even for empty revisions.
		RevisionEnvironment bool

		// Extra options copied verbatim into the toolkit config's main
		// options.
		Extra map[string]string
	}

	// OrmExtension is the hook a collaborating ORM integration
	// implements so engines and metadata do not have to be configured
	// twice.
	OrmExtension interface {
		Engines() map[string]*toolkit.Engine
		Metadatas() map[string]*toolkit.Metadata
	}

	// App is one scope: an identity with a root path, settings, engine
	// and metadata sources, and teardown callbacks that run when the
	// scope ends.
	App struct {
		name     string
		root     string
		settings Settings

		engines   map[string]*toolkit.Engine
		metadatas map[string]*toolkit.Metadata
		orm       OrmExtension

		mu       sync.Mutex
		teardown []func(error)
	}

	// AppParams configures New.
	AppParams struct {
		// Name identifies the app in logs.
		Name string

		// Root is the directory relative paths resolve against.
		Root string

		// Settings is the migration configuration for this scope.
		Settings Settings

		// Engines and Metadatas configure databases explicitly. Leave
		// nil when an OrmExtension supplies them.
		Engines   map[string]*toolkit.Engine
		Metadatas map[string]*toolkit.Metadata

		// Orm optionally supplies engines/metadata when the explicit
		// maps are empty.
		Orm OrmExtension
	}
)

// New creates an App scope. The app is inert until registered with a
// Migrate instance via InitApp.
func New(p AppParams) *App {
	return &App{
		name:      p.Name,
		root:      p.Root,
		settings:  p.Settings,
		engines:   p.Engines,
		metadatas: p.Metadatas,
		orm:       p.Orm,
	}
}

// Name returns the app's display name.
func (a *App) Name() string { return a.name }

// Root returns the directory relative paths resolve against.
func (a *App) Root() string { return a.root }

// Settings returns a pointer to the app's settings so initialization
// can apply defaults in place. Settings are read-mostly after init;
// scope execution is sequential by model, so no locking is done here.
func (a *App) Settings() *Settings { return &a.settings }

// Engines returns the explicitly configured engines, falling back to
// the ORM extension when none were given.
func (a *App) Engines() map[string]*toolkit.Engine {
	if len(a.engines) > 0 {
		return a.engines
	}

	if a.orm != nil {
		return a.orm.Engines()
	}

	return nil
}

// Metadatas returns the explicitly configured metadata, falling back to
// the ORM extension when none were given.
func (a *App) Metadatas() map[string]*toolkit.Metadata {
	if len(a.metadatas) > 0 {
		return a.metadatas
	}

	if a.orm != nil {
		return a.orm.Metadatas()
	}

	return nil
}

// OnTeardown registers fn to run when the scope ends. Callbacks run in
// reverse registration order and receive the error (possibly nil) the
// scope ended with.
func (a *App) OnTeardown(fn func(error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teardown = append(a.teardown, fn)
}

// Teardown ends one lifecycle of the scope, running every registered
// callback in reverse order with err. The scope may be used again
// afterwards (transient resources are rebuilt on demand); callbacks
// stay registered.
func (a *App) Teardown(err error) {
	a.mu.Lock()
	fns := make([]func(error), len(a.teardown))
	copy(fns, a.teardown)
	a.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i](err)
	}
}

type ctxKey struct{}

// NewContext returns a context carrying app as the active scope.
func NewContext(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, app)
}

// FromContext returns the active scope, or an error when the context
// does not carry one.
func FromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(ctxKey{}).(*App)
	if !ok || app == nil {
		return nil, errors.New("no active scope: wrap the context with scope.NewContext first")
	}

	return app, nil
}
