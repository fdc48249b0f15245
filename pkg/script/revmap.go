package script

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// revMap is the in-memory revision graph: revisions by id, child
// adjacency over down-revision and dependency edges, and branch label
// ownership.
type revMap struct {
	byID        map[string]*toolkit.Script
	order       []string // ids sorted ascending, used for deterministic walks
	children    map[string][]string
	depChildren map[string][]string
	labels      map[string]string // label -> owning revision id
}

func newRevMap(scripts []*toolkit.Script) (*revMap, error) {
	m := &revMap{
		byID:        map[string]*toolkit.Script{},
		children:    map[string][]string{},
		depChildren: map[string][]string{},
		labels:      map[string]string{},
	}

	for _, s := range scripts {
		if _, ok := m.byID[s.Revision]; ok {
			return nil, errors.Errorf("duplicate revision id %s", s.Revision)
		}

		m.byID[s.Revision] = s
		m.order = append(m.order, s.Revision)
	}

	sort.Strings(m.order)

	for _, id := range m.order {
		s := m.byID[id]

		for _, parent := range s.DownRevisions {
			if _, ok := m.byID[parent]; !ok {
				return nil, errors.Errorf("revision %s references unknown parent %s", id, parent)
			}
			m.children[parent] = append(m.children[parent], id)
		}

		for _, dep := range s.DependsOn {
			if _, ok := m.byID[dep]; !ok {
				return nil, errors.Errorf("revision %s depends on unknown revision %s", id, dep)
			}
			m.depChildren[dep] = append(m.depChildren[dep], id)
		}

		for _, label := range s.BranchLabels {
			if other, ok := m.labels[label]; ok {
				return nil, errors.Errorf("branch label %q used by both %s and %s", label, other, id)
			}
			m.labels[label] = id
		}
	}

	for id, s := range m.byID {
		s.Branchpoint = len(m.children[id]) > 1
	}

	return m, nil
}

// strictHeads returns ids with no child over down-revision edges.
func (m *revMap) strictHeads() []string {
	var heads []string
	for _, id := range m.order {
		if len(m.children[id]) == 0 {
			heads = append(heads, id)
		}
	}

	return heads
}

// resolvedHeads treats dependency edges as down-revision edges, so a
// revision another revision depends on is not a head.
func (m *revMap) resolvedHeads() []string {
	var heads []string
	for _, id := range m.order {
		if len(m.children[id]) == 0 && len(m.depChildren[id]) == 0 {
			heads = append(heads, id)
		}
	}

	return heads
}

// ancestors returns the transitive parent closure of ids, including the
// ids themselves. Dependency edges are followed when withDeps is set.
func (m *revMap) ancestors(ids []string, withDeps bool) map[string]bool {
	seen := map[string]bool{}
	stack := append([]string(nil), ids...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[id] {
			continue
		}
		seen[id] = true

		if s, ok := m.byID[id]; ok {
			stack = append(stack, s.DownRevisions...)
			if withDeps {
				stack = append(stack, s.DependsOn...)
			}
		}
	}

	return seen
}

// isAncestor reports whether a is an ancestor of b (or equal to it).
func (m *revMap) isAncestor(a, b string) bool {
	return m.ancestors([]string{b}, false)[a]
}

// branchMembers returns the ids belonging to the named branch: the
// revision carrying the label plus all of its descendants.
func (m *revMap) branchMembers(label string) ([]string, error) {
	owner, ok := m.labels[label]
	if !ok {
		return nil, toolkit.NewResolutionError(label, "no such branch label")
	}

	var members []string
	for _, id := range m.order {
		if m.isAncestor(owner, id) {
			members = append(members, id)
		}
	}

	return members, nil
}

// resolveRef resolves one symbolic reference to zero or more revision
// ids. "base" resolves to none; "heads" to every resolved head; "head"
// to the single head (an error when several exist); "label@head" and
// "label@base" scope those within a branch; otherwise the reference is
// a branch label, an exact revision id, or a unique id prefix.
func (m *revMap) resolveRef(ref string) ([]string, error) {
	switch ref {
	case "", "base":
		return nil, nil
	case "heads":
		return m.resolvedHeads(), nil
	case "head":
		heads := m.resolvedHeads()
		if len(heads) > 1 {
			return nil, toolkit.NewResolutionError(ref, "multiple heads are present; use \"heads\" or a branch-qualified reference")
		}
		return heads, nil
	}

	if label, sym, ok := strings.Cut(ref, "@"); ok {
		owner, exists := m.labels[label]
		if !exists {
			return nil, toolkit.NewResolutionError(ref, "no such branch label")
		}

		switch sym {
		case "head":
			var heads []string
			for _, id := range m.resolvedHeads() {
				if m.isAncestor(owner, id) {
					heads = append(heads, id)
				}
			}
			return heads, nil
		case "base":
			return nil, nil
		default:
			return nil, toolkit.NewResolutionError(ref, "unknown branch qualifier")
		}
	}

	if owner, ok := m.labels[ref]; ok {
		return []string{owner}, nil
	}

	if _, ok := m.byID[ref]; ok {
		return []string{ref}, nil
	}

	// Unique prefix match.
	var matches []string
	for _, id := range m.order {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 1:
		return matches, nil
	case 0:
		return nil, toolkit.NewResolutionError(ref, "no such revision")
	default:
		return nil, toolkit.NewResolutionError(ref, "ambiguous revision prefix")
	}
}

// topoSort orders the given id set so every revision appears after its
// parents and dependencies, with ties broken by ascending id.
func (m *revMap) topoSort(set map[string]bool) []string {
	indeg := map[string]int{}
	for id := range set {
		s := m.byID[id]

		for _, p := range s.DownRevisions {
			if set[p] {
				indeg[id]++
			}
		}
		for _, d := range s.DependsOn {
			if set[d] {
				indeg[id]++
			}
		}
	}

	var ready []string
	for id := range set {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var out []string
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)

		next := append(append([]string(nil), m.children[id]...), m.depChildren[id]...)
		sort.Strings(next)

		for _, c := range next {
			if !set[c] {
				continue
			}
			indeg[c]--
			if indeg[c] == 0 {
				ready = append(ready, c)
				sort.Strings(ready)
			}
		}
	}

	return out
}
