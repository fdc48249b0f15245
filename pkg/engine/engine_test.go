package engine_test

import (
	"path/filepath"
	"testing"

	. "github.com/revisor-dev/revisor/pkg/engine"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tests := map[string]string{
		"sqlite3":    "sqlite3",
		"sqlite":     "sqlite3",
		"postgres":   "postgres",
		"postgresql": "postgres",
		"pgx":        "postgres",
		"clickhouse": "clickhouse",
	}

	for driver, dialect := range tests {
		t.Run(driver, func(t *testing.T) {
			eng, err := Open(driver, "test-dsn")
			require.NoError(t, err)
			defer func() { _ = eng.DB.Close() }()

			require.Equal(t, dialect, eng.Dialect)
			require.NotNil(t, eng.DB)
		})
	}

	t.Run("unsupported driver", func(t *testing.T) {
		eng, err := Open("oracle", "test-dsn")
		require.Error(t, err)
		require.Nil(t, eng)
		require.Contains(t, err.Error(), "unsupported database driver")
	})
}

func TestOpenConnects(t *testing.T) {
	eng, err := Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	defer func() { _ = eng.DB.Close() }()

	require.NoError(t, eng.DB.Ping())
}
