package script

import (
	"regexp"
	"strconv"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

var (
	relUpPattern   = regexp.MustCompile(`^\+\d+$`)
	relDownPattern = regexp.MustCompile(`^-\d+$`)
)

// UpgradeRevs plans the steps to move from the applied revisions up to
// the targets. A single "+N" target walks N unambiguous steps forward
// from the current position.
func (d *Directory) UpgradeRevs(targets []string, applied []string) ([]toolkit.MigrationStep, error) {
	if len(targets) == 1 && relUpPattern.MatchString(targets[0]) {
		n, _ := strconv.Atoi(targets[0][1:])
		return d.relativeUpgrade(n, applied)
	}

	targetIDs, err := d.resolveAll(targets, "heads")
	if err != nil {
		return nil, err
	}

	todo := d.revs.ancestors(targetIDs, true)
	for id := range d.revs.ancestors(applied, true) {
		delete(todo, id)
	}

	var steps []toolkit.MigrationStep
	for _, id := range d.revs.topoSort(todo) {
		s := d.revs.byID[id]
		steps = append(steps, toolkit.MigrationStep{
			Op:             toolkit.StepUpgrade,
			Revision:       s,
			DeleteVersions: append([]string(nil), s.DownRevisions...),
			InsertVersions: []string{s.Revision},
		})
	}

	return steps, nil
}

// relativeUpgrade walks n unambiguous child steps forward from the
// single current head (or from base when nothing is applied).
func (d *Directory) relativeUpgrade(n int, applied []string) ([]toolkit.MigrationStep, error) {
	if len(applied) > 1 {
		return nil, toolkit.NewResolutionError("+"+strconv.Itoa(n), "relative upgrade is ambiguous with multiple heads applied")
	}

	current := ""
	if len(applied) == 1 {
		current = applied[0]
	}

	var steps []toolkit.MigrationStep
	for i := 0; i < n; i++ {
		var next []string
		if current == "" {
			// From base: the candidates are root revisions.
			for _, id := range d.revs.order {
				if len(d.revs.byID[id].DownRevisions) == 0 {
					next = append(next, id)
				}
			}
		} else {
			next = d.revs.children[current]
		}

		if len(next) == 0 {
			break
		}
		if len(next) > 1 {
			return nil, toolkit.NewResolutionError("+"+strconv.Itoa(n), "relative upgrade is ambiguous at a branch point")
		}

		s := d.revs.byID[next[0]]
		steps = append(steps, toolkit.MigrationStep{
			Op:             toolkit.StepUpgrade,
			Revision:       s,
			DeleteVersions: append([]string(nil), s.DownRevisions...),
			InsertVersions: []string{s.Revision},
		})
		current = s.Revision
	}

	return steps, nil
}

// DowngradeRevs plans the steps to move from the applied revisions down
// to target: a revision reference, "base" for a full revert, or a
// relative "-N" offset.
func (d *Directory) DowngradeRevs(target string, applied []string) ([]toolkit.MigrationStep, error) {
	var revert map[string]bool

	if relDownPattern.MatchString(target) {
		n, _ := strconv.Atoi(target[1:])
		return d.relativeDowngrade(n, applied)
	}

	targetIDs, err := d.revs.resolveRef(target)
	if err != nil {
		return nil, err
	}

	revert = d.revs.ancestors(applied, false)
	for id := range d.revs.ancestors(targetIDs, false) {
		delete(revert, id)
	}

	return d.downgradeSteps(revert, applied), nil
}

// relativeDowngrade reverts the topmost n revisions below the single
// current head.
func (d *Directory) relativeDowngrade(n int, applied []string) ([]toolkit.MigrationStep, error) {
	if len(applied) > 1 {
		return nil, toolkit.NewResolutionError("-"+strconv.Itoa(n), "relative downgrade is ambiguous with multiple heads applied")
	}

	revert := map[string]bool{}
	if len(applied) == 1 {
		current := applied[0]
		for i := 0; i < n && current != ""; i++ {
			s, ok := d.revs.byID[current]
			if !ok {
				return nil, toolkit.NewResolutionError(current, "applied revision not present in script directory")
			}

			revert[current] = true
			if len(s.DownRevisions) > 1 {
				return nil, toolkit.NewResolutionError("-"+strconv.Itoa(n), "relative downgrade is ambiguous below a merge revision")
			}

			current = ""
			if len(s.DownRevisions) == 1 {
				current = s.DownRevisions[0]
			}
		}
	}

	return d.downgradeSteps(revert, applied), nil
}

// downgradeSteps orders the revert set and computes the version-table
// delta of each step by simulating the evolving head set.
func (d *Directory) downgradeSteps(revert map[string]bool, applied []string) []toolkit.MigrationStep {
	ordered := d.revs.topoSort(revert)

	heads := map[string]bool{}
	for _, id := range applied {
		heads[id] = true
	}

	var steps []toolkit.MigrationStep
	for i := len(ordered) - 1; i >= 0; i-- {
		s := d.revs.byID[ordered[i]]
		delete(heads, s.Revision)

		// A parent becomes a head again unless it already is one or is
		// an ancestor of a revision that is still applied.
		var inserts []string
		for _, parent := range s.DownRevisions {
			if heads[parent] {
				continue
			}

			covered := false
			for h := range heads {
				if d.revs.isAncestor(parent, h) {
					covered = true
					break
				}
			}

			if !covered {
				heads[parent] = true
				inserts = append(inserts, parent)
			}
		}

		steps = append(steps, toolkit.MigrationStep{
			Op:             toolkit.StepDowngrade,
			Revision:       s,
			DeleteVersions: []string{s.Revision},
			InsertVersions: inserts,
		})
	}

	return steps
}

// StampRevs plans a version-table rewrite from applied to targets
// without executing any SQL.
func (d *Directory) StampRevs(targets []string, applied []string) ([]toolkit.MigrationStep, error) {
	targetIDs, err := d.resolveAll(targets, "heads")
	if err != nil {
		return nil, err
	}

	return []toolkit.MigrationStep{{
		Op:             toolkit.StepStamp,
		DeleteVersions: append([]string(nil), applied...),
		InsertVersions: targetIDs,
	}}, nil
}
