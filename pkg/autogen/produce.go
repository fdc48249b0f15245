package autogen

import (
	"context"
	"sort"
	"strings"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

type (
	// DatabasePlan holds the operations detected for one logical
	// database.
	DatabasePlan struct {
		Name string
		Ops  []Op
	}

	// Plan is the combined autogeneration result across every
	// configured database.
	Plan struct {
		Databases []DatabasePlan
	}
)

// Empty reports whether no database has pending operations.
func (p *Plan) Empty() bool {
	for _, db := range p.Databases {
		if len(db.Ops) > 0 {
			return false
		}
	}

	return true
}

// Ops flattens the per-database operations in database order.
func (p *Plan) Ops() []Op {
	var ops []Op
	for _, db := range p.Databases {
		ops = append(ops, db.Ops...)
	}

	return ops
}

// UpgradeSQL renders the upgrade section for the named database.
func (p *Plan) UpgradeSQL(name string) string {
	return p.render(name, Op.UpgradeSQL, false)
}

// DowngradeSQL renders the downgrade section for the named database,
// reverting operations in reverse order.
func (p *Plan) DowngradeSQL(name string) string {
	return p.render(name, Op.DowngradeSQL, true)
}

func (p *Plan) render(name string, stmt func(Op) string, reverse bool) string {
	for _, db := range p.Databases {
		if db.Name != name {
			continue
		}

		lines := make([]string, 0, len(db.Ops))
		for _, op := range db.Ops {
			if s := stmt(op); s != "" {
				lines = append(lines, s)
			}
		}

		if reverse {
			for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
				lines[i], lines[j] = lines[j], lines[i]
			}
		}

		return strings.Join(lines, "\n")
	}

	return ""
}

// ProduceMigrations introspects through mc and diffs against meta,
// returning the plan for the database section mc runs.
func ProduceMigrations(ctx context.Context, mc toolkit.MigrationContext, meta *toolkit.Metadata, opts CompareOptions) (*DatabasePlan, error) {
	mcOpts := mc.Options()

	live, err := Introspect(ctx, mc, mcOpts.Dialect)
	if err != nil {
		return nil, err
	}

	target := meta
	if target == nil {
		target = mcOpts.TargetMetadata
	}
	if target == nil {
		target = &toolkit.Metadata{}
	}

	return &DatabasePlan{
		Name: sectionName(mcOpts.UpgradeToken),
		Ops:  Compare(live, target, opts),
	}, nil
}

// CombinePlans merges per-database plans into one Plan sorted by
// database name.
func CombinePlans(plans ...*DatabasePlan) *Plan {
	combined := &Plan{}
	for _, p := range plans {
		if p != nil {
			combined.Databases = append(combined.Databases, *p)
		}
	}

	sort.Slice(combined.Databases, func(i, j int) bool {
		return combined.Databases[i].Name < combined.Databases[j].Name
	})

	return combined
}

// sectionName recovers the logical database name from an upgrade
// token.
func sectionName(upgradeToken string) string {
	if name, ok := strings.CutSuffix(upgradeToken, "_upgrades"); ok && name != "" {
		return name
	}

	return "default"
}
