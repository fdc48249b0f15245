package autogen

import (
	"context"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// RevisionContext accumulates per-database plans while migration
// contexts run in autogenerate mode, then turns them into the SQL
// sections of a new revision file.
type RevisionContext struct {
	scripts toolkit.ScriptDirectory
	opts    CompareOptions
	plans   []*DatabasePlan
}

// NewRevisionContext returns a RevisionContext generating into scripts.
func NewRevisionContext(scripts toolkit.ScriptDirectory, opts CompareOptions) *RevisionContext {
	return &RevisionContext{scripts: scripts, opts: opts}
}

// RunAutogenerate diffs the database behind mc against meta and
// records the resulting plan. It executes no SQL.
func (r *RevisionContext) RunAutogenerate(ctx context.Context, mc toolkit.MigrationContext, meta *toolkit.Metadata) error {
	plan, err := ProduceMigrations(ctx, mc, meta, r.opts)
	if err != nil {
		return err
	}

	r.plans = append(r.plans, plan)
	return nil
}

// RunNoAutogenerate records an empty plan for the database behind mc,
// so the generated file still carries its section.
func (r *RevisionContext) RunNoAutogenerate(mc toolkit.MigrationContext) {
	r.plans = append(r.plans, &DatabasePlan{Name: sectionName(mc.Options().UpgradeToken)})
}

// Plan returns the combined plan recorded so far.
func (r *RevisionContext) Plan() *Plan {
	return CombinePlans(r.plans...)
}

// GenerateScripts renders the recorded plans into the request's
// upgrade and downgrade sections and writes the revision file.
func (r *RevisionContext) GenerateScripts(req toolkit.GenerateRequest) (*toolkit.Script, error) {
	plan := r.Plan()

	req.Up = map[string]string{}
	req.Down = map[string]string{}
	for _, db := range plan.Databases {
		req.Up[db.Name] = plan.UpgradeSQL(db.Name)
		req.Down[db.Name] = plan.DowngradeSQL(db.Name)
	}

	return r.scripts.GenerateRevision(req)
}
