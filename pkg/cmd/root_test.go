package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/revisor-dev/revisor/pkg/migrate"
)

func TestParseTarget(t *testing.T) {
	tests := map[string]migrate.Target{
		"":          {},
		"current":   migrate.TargetCurrent(),
		"+2":        migrate.TargetRelative(2),
		"-1":        migrate.TargetRelative(-1),
		"heads":     migrate.TargetRefs("heads"),
		"abc123":    migrate.TargetRefs("abc123"),
		"auth@head": migrate.TargetRefs("auth@head"),
	}

	for in, want := range tests {
		t.Run("input "+in, func(t *testing.T) {
			require.Equal(t, want, parseTarget(in))
		})
	}
}
