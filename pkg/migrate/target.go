package migrate

import (
	"context"
	"fmt"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// Target names the revision(s) an operation moves to or reports on. The
// zero value means the operation's natural default ("heads" for
// upgrades and stamps, one step back for downgrades).
type Target struct {
	refs     []string
	rel      int
	relative bool
	current  bool
}

// TargetRefs targets symbolic references or revision ids.
func TargetRefs(refs ...string) Target {
	return Target{refs: refs}
}

// TargetRelative targets a relative offset from the current position.
// Positive offsets move forward, negative ones back; Downgrade treats a
// positive offset as the number of steps to revert.
func TargetRelative(n int) Target {
	return Target{rel: n, relative: true}
}

// TargetCurrent targets the revisions currently applied to the scope's
// databases.
func TargetCurrent() Target {
	return Target{current: true}
}

// TargetScript targets one already-loaded revision.
func TargetScript(s *toolkit.Script) Target {
	return Target{refs: []string{s.Revision}}
}

func (t Target) isZero() bool {
	return len(t.refs) == 0 && !t.relative && !t.current
}

// resolve flattens the target to reference strings. Relative targets
// render as "%+d"; the current sentinel expands to the applied heads
// when handleCurrent is set and is rejected otherwise.
func (m *Migrate) resolveTarget(ctx context.Context, t Target, def []string, handleCurrent bool) ([]string, error) {
	switch {
	case t.isZero():
		return def, nil
	case t.relative:
		return []string{fmt.Sprintf("%+d", t.rel)}, nil
	case t.current:
		if !handleCurrent {
			return nil, newConfigurationError("a current-revision target is not valid here")
		}

		scripts, err := m.Current(ctx)
		if err != nil {
			return nil, err
		}

		refs := make([]string, 0, len(scripts))
		for _, s := range scripts {
			refs = append(refs, s.Revision)
		}
		return refs, nil
	default:
		return t.refs, nil
	}
}
