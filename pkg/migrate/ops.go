package migrate

import (
	"context"
	"sort"
	"strings"

	"github.com/revisor-dev/revisor/pkg/autogen"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// RevisionOptions tunes Revision.
type RevisionOptions struct {
	// Empty skips autogeneration and writes a revision with blank SQL
	// sections.
	Empty bool

	// Branch places the revision on the named branch, bootstrapping the
	// branch when no revision carries its label yet.
	Branch string

	// Parent overrides the parent reference ("head" by default).
	Parent string

	// Splice allows branching from a non-head parent.
	Splice bool

	// Labels are extra branch labels for the new revision.
	Labels []string

	// Path overrides the directory the revision file is written to.
	Path string

	// DependsOn lists revisions required before this one outside the
	// parent chain.
	DependsOn []string
}

// Current returns the revisions currently applied across every
// configured database. Databases with nothing applied contribute
// nothing; the result is empty when no revision is applied anywhere.
func (m *Migrate) Current(ctx context.Context) ([]*toolkit.Script, error) {
	contexts, err := m.MigrationContexts(ctx)
	if err != nil {
		return nil, err
	}

	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var ids []string
	for _, name := range sortedNames(contexts) {
		heads, err := contexts[name].CurrentHeads(ctx)
		if err != nil {
			return nil, err
		}

		for _, id := range heads {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	sort.Strings(ids)
	if len(ids) == 0 {
		return []*toolkit.Script{}, nil
	}

	return scripts.GetRevisions(ids...)
}

// Heads returns the revisions at the tip of the history graph. With
// resolveDependencies set, a revision another revision depends on is
// not reported as a head.
func (m *Migrate) Heads(ctx context.Context, resolveDependencies bool) ([]*toolkit.Script, error) {
	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return nil, err
	}

	if resolveDependencies {
		return scripts.GetRevisions("heads")
	}

	ids := scripts.StrictHeads()
	if len(ids) == 0 {
		return []*toolkit.Script{}, nil
	}

	return scripts.GetRevisions(ids...)
}

// Branches returns the revisions where the history graph splits.
func (m *Migrate) Branches(ctx context.Context) ([]*toolkit.Script, error) {
	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return nil, err
	}

	all, err := scripts.WalkRevisions(nil, nil)
	if err != nil {
		return nil, err
	}

	var points []*toolkit.Script
	for _, s := range all {
		if s.Branchpoint {
			points = append(points, s)
		}
	}

	return points, nil
}

// Log returns the revisions between start (exclusive) and end
// (inclusive) in apply order. Zero targets default to the full history;
// either may be TargetCurrent.
func (m *Migrate) Log(ctx context.Context, start, end Target) ([]*toolkit.Script, error) {
	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return nil, err
	}

	lower, err := m.resolveTarget(ctx, start, []string{"base"}, true)
	if err != nil {
		return nil, err
	}

	upper, err := m.resolveTarget(ctx, end, []string{"heads"}, true)
	if err != nil {
		return nil, err
	}

	return scripts.WalkRevisions(lower, upper)
}

// Stamp records target as applied on every database without executing
// any migration SQL. The zero target stamps the graph heads.
func (m *Migrate) Stamp(ctx context.Context, target Target) error {
	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return err
	}

	refs, err := m.resolveTarget(ctx, target, []string{"heads"}, false)
	if err != nil {
		return err
	}

	return m.RunMigrations(ctx, func(applied []string, _ toolkit.MigrationContext) ([]toolkit.MigrationStep, error) {
		return scripts.StampRevs(refs, applied)
	})
}

// Upgrade runs the upgrade migrations from the applied revisions to
// target. The zero target upgrades to the graph heads.
func (m *Migrate) Upgrade(ctx context.Context, target Target) error {
	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return err
	}

	refs, err := m.resolveTarget(ctx, target, []string{"heads"}, false)
	if err != nil {
		return err
	}

	return m.RunMigrations(ctx, func(applied []string, _ toolkit.MigrationContext) ([]toolkit.MigrationStep, error) {
		return scripts.UpgradeRevs(refs, applied)
	})
}

// Downgrade runs the downgrade migrations from the applied revisions
// down to target. The zero target reverts one step; a positive relative
// offset is treated as the number of steps to revert.
func (m *Migrate) Downgrade(ctx context.Context, target Target) error {
	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return err
	}

	if target.isZero() {
		target = TargetRelative(-1)
	}
	if target.relative && target.rel > 0 {
		target.rel = -target.rel
	}

	refs, err := m.resolveTarget(ctx, target, nil, false)
	if err != nil {
		return err
	}

	if len(refs) != 1 {
		return newConfigurationError("downgrade needs exactly one target revision")
	}

	return m.RunMigrations(ctx, func(applied []string, _ toolkit.MigrationContext) ([]toolkit.MigrationStep, error) {
		return scripts.DowngradeRevs(refs[0], applied)
	})
}

// Revision writes a new revision file. Unless Empty is set the SQL
// sections are autogenerated by diffing each database against its
// target metadata.
func (m *Migrate) Revision(ctx context.Context, message string, opts RevisionOptions) (*toolkit.Script, error) {
	app, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := m.Config(ctx)
	if err != nil {
		return nil, err
	}

	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return nil, err
	}

	branch := opts.Branch
	if branch == "" {
		branch = "default"
	}

	parent := opts.Parent
	if parent == "" {
		parent = "head"
	}

	labels := append([]string(nil), opts.Labels...)
	path := opts.Path

	var parents []string
	if branch == "default" {
		parents = []string{parent}
	} else {
		// Only the bare symbols get branch-qualified; an explicit
		// revision id already names its branch.
		if parent == "head" || parent == "base" {
			parent = branch + "@" + parent
		}

		branchExists := true
		if _, err := scripts.GetRevisions(branch); err != nil {
			if !toolkit.IsResolutionError(err) {
				return nil, err
			}
			branchExists = false
		}

		if branchExists {
			resolved, err := scripts.GetRevisions(parent)
			if err != nil {
				return nil, err
			}
			for _, s := range resolved {
				parents = append(parents, s.Revision)
			}
		} else {
			// The branch does not exist yet: root the revision at base
			// and let it carry the branch label.
			labels = append([]string{branch}, labels...)
			parents = nil
		}

		if path == "" {
			for _, vl := range app.Settings().VersionLocations {
				if vl.Branch == branch {
					path = vl.Path
					break
				}
			}
		}
	}

	if path != "" {
		path = absPath(app.Root(), path)
	}

	req := toolkit.GenerateRequest{
		RevID:        m.revID(),
		Message:      message,
		Heads:        parents,
		Splice:       opts.Splice,
		BranchLabels: labels,
		VersionPath:  path,
		DependsOn:    opts.DependsOn,
		Config:       cfg,
	}

	if opts.Empty && !app.Settings().RevisionEnvironment {
		return scripts.GenerateRevision(req)
	}

	contexts, err := m.MigrationContexts(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	metadatas := c.metadatas
	c.mu.Unlock()

	rc := autogen.NewRevisionContext(scripts, compareOptions(contexts))
	for _, name := range sortedNames(contexts) {
		if opts.Empty {
			rc.RunNoAutogenerate(contexts[name])
			continue
		}

		if err := rc.RunAutogenerate(ctx, contexts[name], metadatas[name]); err != nil {
			return nil, err
		}
	}

	return rc.GenerateScripts(req)
}

// Merge writes a revision joining the given revisions (the graph heads
// by default) into a single parent chain. No database is touched.
func (m *Migrate) Merge(ctx context.Context, message string, revisions Target) (*toolkit.Script, error) {
	cfg, err := m.Config(ctx)
	if err != nil {
		return nil, err
	}

	scripts, err := m.ScriptDirectory(ctx)
	if err != nil {
		return nil, err
	}

	refs, err := m.resolveTarget(ctx, revisions, []string{"heads"}, true)
	if err != nil {
		return nil, err
	}

	resolved, err := scripts.GetRevisions(refs...)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resolved))
	for _, s := range resolved {
		ids = append(ids, s.Revision)
	}

	if message == "" {
		message = "merge " + strings.Join(ids, ", ")
	}

	return scripts.GenerateRevision(toolkit.GenerateRequest{
		RevID:   m.revID(),
		Message: message,
		Heads:   ids,
		Config:  cfg,
	})
}

// ProduceMigrations diffs every database against its target metadata
// and returns the combined plan without writing anything.
func (m *Migrate) ProduceMigrations(ctx context.Context) (*autogen.Plan, error) {
	_, c, err := m.cacheFor(ctx)
	if err != nil {
		return nil, err
	}

	contexts, err := m.MigrationContexts(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	metadatas := c.metadatas
	c.mu.Unlock()

	opts := compareOptions(contexts)
	plans := make([]*autogen.DatabasePlan, 0, len(contexts))

	for _, name := range sortedNames(contexts) {
		plan, err := autogen.ProduceMigrations(ctx, contexts[name], metadatas[name], opts)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return autogen.CombinePlans(plans...), nil
}

// CompareMetadata returns the flattened schema differences across every
// database.
func (m *Migrate) CompareMetadata(ctx context.Context) ([]autogen.Op, error) {
	plan, err := m.ProduceMigrations(ctx)
	if err != nil {
		return nil, err
	}

	return plan.Ops(), nil
}

// compareOptions reads the diff tuning out of the configured context
// options. Every context carries the same scope extras, so the first
// configured one is authoritative.
func compareOptions(contexts map[string]toolkit.MigrationContext) autogen.CompareOptions {
	opts := autogen.CompareOptions{}

	names := sortedNames(contexts)
	if len(names) == 0 {
		return opts
	}

	if v, ok := contexts[names[0]].Options().Extra["compare_server_default"].(bool); ok {
		opts.CompareServerDefault = v
	}

	return opts
}
