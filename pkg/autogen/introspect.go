// Package autogen drives revision autogeneration: it introspects the
// live schema through a migration context's connection, diffs it
// against the declared target metadata, and renders the resulting
// operations into upgrade/downgrade SQL for new revision files.
package autogen

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/runtime"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// queryer is the subset of toolkit.MigrationContext introspection
// needs.
type queryer interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Introspect reads the live table/column shape through q. The version
// bookkeeping table is excluded. Supported dialects: sqlite3,
// postgres, clickhouse.
func Introspect(ctx context.Context, q queryer, dialect string) (*toolkit.Metadata, error) {
	switch dialect {
	case "sqlite3", "sqlite":
		return introspectSQLite(ctx, q)
	case "postgres", "clickhouse":
		return introspectInformationSchema(ctx, q, dialect)
	default:
		return nil, errors.Errorf("unsupported dialect for introspection: %q", dialect)
	}
}

func introspectSQLite(ctx context.Context, q queryer) (*toolkit.Metadata, error) {
	rows, err := q.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan table name")
		}

		if name != runtime.VersionTable {
			names = append(names, name)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tables")
	}

	meta := &toolkit.Metadata{}
	for _, name := range names {
		table, err := sqliteTable(ctx, q, name)
		if err != nil {
			return nil, err
		}
		meta.Tables = append(meta.Tables, *table)
	}

	return meta, nil
}

func sqliteTable(ctx context.Context, q queryer, name string) (*toolkit.Table, error) {
	rows, err := q.Query(ctx, `SELECT name, type, "notnull", dflt_value FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of %s", name)
	}
	defer rows.Close()

	table := &toolkit.Table{Name: name}
	for rows.Next() {
		var (
			col     toolkit.Column
			notNull int
			dflt    sql.NullString
		)

		if err := rows.Scan(&col.Name, &col.Type, &notNull, &dflt); err != nil {
			return nil, errors.Wrapf(err, "failed to scan column of %s", name)
		}

		col.Nullable = notNull == 0
		col.Default = dflt.String
		table.Columns = append(table.Columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to iterate columns of %s", name)
	}

	return table, nil
}

func introspectInformationSchema(ctx context.Context, q queryer, dialect string) (*toolkit.Metadata, error) {
	query := `SELECT table_name, column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		ORDER BY table_name, ordinal_position`

	if dialect == "clickhouse" {
		query = `SELECT table, name, type, 1, default_expression
			FROM system.columns
			WHERE database = currentDatabase()
			ORDER BY table, position`
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read information schema")
	}
	defer rows.Close()

	meta := &toolkit.Metadata{}
	var current *toolkit.Table

	for rows.Next() {
		var (
			table, column, typ string
			nullable           any
			dflt               sql.NullString
		)

		if err := rows.Scan(&table, &column, &typ, &nullable, &dflt); err != nil {
			return nil, errors.Wrap(err, "failed to scan column row")
		}

		if table == runtime.VersionTable {
			continue
		}

		if current == nil || current.Name != table {
			meta.Tables = append(meta.Tables, toolkit.Table{Name: table})
			current = &meta.Tables[len(meta.Tables)-1]
		}

		current.Columns = append(current.Columns, toolkit.Column{
			Name:     column,
			Type:     typ,
			Nullable: isNullable(nullable),
			Default:  dflt.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate column rows")
	}

	return meta, nil
}

func isNullable(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "yes")
	case bool:
		return t
	case int64:
		return t != 0
	default:
		return true
	}
}
