package script_test

import (
	"testing"

	"github.com/revisor-dev/revisor/pkg/toolkit"
	"github.com/stretchr/testify/require"
)

func stepIDs(steps []toolkit.MigrationStep) []string {
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.Revision.Revision)
	}

	return ids
}

func TestUpgradeRevs(t *testing.T) {
	d := branchedHistory(t)

	t.Run("from base to heads", func(t *testing.T) {
		steps, err := d.UpgradeRevs([]string{"heads"}, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"r01", "r02", "b01", "r03"}, stepIDs(steps))

		for _, s := range steps {
			require.Equal(t, toolkit.StepUpgrade, s.Op)
			require.Equal(t, []string{s.Revision.Revision}, s.InsertVersions)
			require.Equal(t, s.Revision.DownRevisions, s.DeleteVersions)
		}
	})

	t.Run("partial upgrade skips applied ancestors", func(t *testing.T) {
		steps, err := d.UpgradeRevs([]string{"r03"}, []string{"r02"})
		require.NoError(t, err)
		require.Equal(t, []string{"r03"}, stepIDs(steps))
	})

	t.Run("already at target yields no steps", func(t *testing.T) {
		steps, err := d.UpgradeRevs([]string{"r03"}, []string{"r03"})
		require.NoError(t, err)
		require.Empty(t, steps)
	})

	t.Run("relative from base", func(t *testing.T) {
		steps, err := d.UpgradeRevs([]string{"+2"}, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"r01", "r02"}, stepIDs(steps))
	})

	t.Run("relative is ambiguous at a branch point", func(t *testing.T) {
		_, err := d.UpgradeRevs([]string{"+1"}, []string{"r02"})
		require.Error(t, err)
		require.True(t, toolkit.IsResolutionError(err))
	})
}

func TestDowngradeRevs(t *testing.T) {
	d := branchedHistory(t)

	t.Run("to base reverts everything", func(t *testing.T) {
		steps, err := d.DowngradeRevs("base", []string{"b01", "r03"})
		require.NoError(t, err)
		require.Equal(t, []string{"r03", "b01", "r02", "r01"}, stepIDs(steps))

		for _, s := range steps {
			require.Equal(t, toolkit.StepDowngrade, s.Op)
			require.Equal(t, []string{s.Revision.Revision}, s.DeleteVersions)
		}
	})

	t.Run("reverting one branch keeps the shared trunk", func(t *testing.T) {
		steps, err := d.DowngradeRevs("r02", []string{"b01", "r03"})
		require.NoError(t, err)
		require.Equal(t, []string{"r03", "b01"}, stepIDs(steps))

		// r02 stays covered by the other head while it is applied, so
		// only the last revert reinstates it.
		require.Empty(t, steps[0].InsertVersions)
		require.Equal(t, []string{"r02"}, steps[1].InsertVersions)
	})

	t.Run("relative one step", func(t *testing.T) {
		steps, err := d.DowngradeRevs("-1", []string{"r03"})
		require.NoError(t, err)
		require.Equal(t, []string{"r03"}, stepIDs(steps))
		require.Equal(t, []string{"r02"}, steps[0].InsertVersions)
	})

	t.Run("relative is ambiguous with multiple heads", func(t *testing.T) {
		_, err := d.DowngradeRevs("-1", []string{"b01", "r03"})
		require.Error(t, err)
		require.True(t, toolkit.IsResolutionError(err))
	})
}

func TestStampRevs(t *testing.T) {
	d := branchedHistory(t)

	steps, err := d.StampRevs([]string{"r03"}, []string{"r01"})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, toolkit.StepStamp, steps[0].Op)
	require.Equal(t, []string{"r01"}, steps[0].DeleteVersions)
	require.Equal(t, []string{"r03"}, steps[0].InsertVersions)
}
