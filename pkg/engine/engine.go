// Package engine opens database handles for the supported drivers and
// tags them with the dialect the rest of the system keys on.
package engine

import (
	"database/sql"

	"github.com/pkg/errors"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// Open opens an engine for the named driver. Supported drivers:
// sqlite3, postgres (via pgx), clickhouse.
//
// Example:
//
//	eng, err := engine.Open("sqlite3", "file:app.db")
//	if err != nil {
//		return err
//	}
//	defer eng.DB.Close()
func Open(driver, dsn string) (*toolkit.Engine, error) {
	name, dialect, err := normalize(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect)
	}

	return &toolkit.Engine{DB: db, Dialect: dialect}, nil
}

// normalize maps a configured driver name to the registered sql driver
// and its dialect.
func normalize(driver string) (name, dialect string, err error) {
	switch driver {
	case "sqlite3", "sqlite":
		return "sqlite3", "sqlite3", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", "postgres", nil
	case "clickhouse":
		return "clickhouse", "clickhouse", nil
	default:
		return "", "", errors.Errorf("unsupported database driver: %q", driver)
	}
}
