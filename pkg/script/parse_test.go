package script_test

import (
	"strings"
	"testing"

	. "github.com/revisor-dev/revisor/pkg/script"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	t.Run("full header", func(t *testing.T) {
		content := `-- revisor:revision c333
-- revisor:parents a111, b222
-- revisor:labels auth
-- revisor:depends d444
-- revisor:message merge auth into main

-- revisor:upgrade
CREATE TABLE sessions (id INTEGER PRIMARY KEY);

-- revisor:downgrade
DROP TABLE sessions;
`

		s, err := ParseScript("c333_merge.sql", strings.NewReader(content))
		require.NoError(t, err)
		require.Equal(t, "c333", s.Revision)
		require.Equal(t, []string{"a111", "b222"}, s.DownRevisions)
		require.Equal(t, []string{"auth"}, s.BranchLabels)
		require.Equal(t, []string{"d444"}, s.DependsOn)
		require.Equal(t, "merge auth into main", s.Message)
		require.Equal(t, "CREATE TABLE sessions (id INTEGER PRIMARY KEY);", s.Up[DefaultDatabase])
		require.Equal(t, "DROP TABLE sessions;", s.Down[DefaultDatabase])
	})

	t.Run("named sections", func(t *testing.T) {
		content := `-- revisor:revision m100
-- revisor:message split storage

-- revisor:upgrade main
CREATE TABLE a (id INTEGER);

-- revisor:downgrade main
DROP TABLE a;

-- revisor:upgrade audit
CREATE TABLE b (id INTEGER);

-- revisor:downgrade audit
DROP TABLE b;
`

		s, err := ParseScript("m100.sql", strings.NewReader(content))
		require.NoError(t, err)
		require.Equal(t, "CREATE TABLE a (id INTEGER);", s.Up["main"])
		require.Equal(t, "DROP TABLE b;", s.Down["audit"])
		require.Empty(t, s.Up[DefaultDatabase])
	})

	t.Run("empty sections", func(t *testing.T) {
		content := `-- revisor:revision e500
-- revisor:message placeholder

-- revisor:upgrade

-- revisor:downgrade
`

		s, err := ParseScript("e500.sql", strings.NewReader(content))
		require.NoError(t, err)
		require.Equal(t, "", s.Up[DefaultDatabase])
		require.Equal(t, "", s.Down[DefaultDatabase])
	})

	t.Run("errors", func(t *testing.T) {
		cases := map[string]string{
			"missing revision":   "-- revisor:message no id\n",
			"duplicate revision": "-- revisor:revision a1\n-- revisor:revision a2\n",
			"unknown directive":  "-- revisor:revision a1\n-- revisor:bogus value\n",
		}

		for name, content := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParseScript(name+".sql", strings.NewReader(content))
				require.Error(t, err)
			})
		}
	})
}
