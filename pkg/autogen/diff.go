package autogen

import (
	"fmt"
	"strings"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

type (
	// OpKind names one schema change detected by Compare.
	OpKind int

	// Op is a single schema change with enough detail to render both
	// its upgrade and downgrade statements.
	Op struct {
		Kind   OpKind
		Table  toolkit.Table
		Column toolkit.Column
		// Prior holds the live column shape for alter operations so the
		// downgrade can restore it.
		Prior toolkit.Column
	}

	// CompareOptions tunes the diff.
	CompareOptions struct {
		// CompareServerDefault includes column default changes in the
		// diff when set.
		CompareServerDefault bool
	}
)

const (
	OpAddTable OpKind = iota
	OpDropTable
	OpAddColumn
	OpDropColumn
	OpAlterColumnDefault
)

// Compare diffs the live schema against the declared target and
// returns the operations needed to move live toward target. Tables and
// columns are matched by name.
func Compare(live, target *toolkit.Metadata, opts CompareOptions) []Op {
	var ops []Op

	for _, want := range target.Tables {
		have := live.Table(want.Name)
		if have == nil {
			ops = append(ops, Op{Kind: OpAddTable, Table: want})
			continue
		}

		for _, col := range want.Columns {
			prior := have.Column(col.Name)
			if prior == nil {
				ops = append(ops, Op{Kind: OpAddColumn, Table: want, Column: col})
				continue
			}

			if opts.CompareServerDefault && prior.Default != col.Default {
				ops = append(ops, Op{Kind: OpAlterColumnDefault, Table: want, Column: col, Prior: *prior})
			}
		}

		for _, col := range have.Columns {
			if want.Column(col.Name) == nil {
				ops = append(ops, Op{Kind: OpDropColumn, Table: *have, Column: col})
			}
		}
	}

	for _, have := range live.Tables {
		if target.Table(have.Name) == nil {
			ops = append(ops, Op{Kind: OpDropTable, Table: have})
		}
	}

	return ops
}

// UpgradeSQL renders the statement applying the change.
func (o Op) UpgradeSQL() string {
	switch o.Kind {
	case OpAddTable:
		return createTableSQL(o.Table)
	case OpDropTable:
		return fmt.Sprintf("DROP TABLE %s;", o.Table.Name)
	case OpAddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", o.Table.Name, columnSQL(o.Column))
	case OpDropColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", o.Table.Name, o.Column.Name)
	case OpAlterColumnDefault:
		return alterDefaultSQL(o.Table.Name, o.Column.Name, o.Column.Default)
	}

	return ""
}

// DowngradeSQL renders the statement reverting the change.
func (o Op) DowngradeSQL() string {
	switch o.Kind {
	case OpAddTable:
		return fmt.Sprintf("DROP TABLE %s;", o.Table.Name)
	case OpDropTable:
		return createTableSQL(o.Table)
	case OpAddColumn:
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", o.Table.Name, o.Column.Name)
	case OpDropColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", o.Table.Name, columnSQL(o.Column))
	case OpAlterColumnDefault:
		return alterDefaultSQL(o.Table.Name, o.Column.Name, o.Prior.Default)
	}

	return ""
}

func createTableSQL(t toolkit.Table) string {
	cols := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		cols = append(cols, "\t"+columnSQL(col))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", t.Name, strings.Join(cols, ",\n"))
}

func columnSQL(c toolkit.Column) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)

	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}

	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}

	return b.String()
}

func alterDefaultSQL(table, column, dflt string) string {
	if dflt == "" {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, column)
	}

	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, column, dflt)
}
