package script

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// Directory implements toolkit.ScriptDirectory over the script storage
// root and any configured version locations.
//
// Example:
//
//	cfg := toolkit.NewConfig()
//	cfg.SetMainOption("script_location", "/srv/app/migrations")
//	dir, err := script.New(cfg)
//	if err != nil {
//		return err
//	}
//	heads, _ := dir.GetRevisions("heads")
type Directory struct {
	cfg       *toolkit.Config
	dir       string
	locations []string
	revs      *revMap
}

// New builds a Directory from the config's script_location and
// version_locations options and loads every revision file found.
// Locations that do not exist yet are treated as empty.
func New(cfg *toolkit.Config) (*Directory, error) {
	dir := cfg.MainOption("script_location")
	if dir == "" {
		return nil, errors.New("script_location is not configured")
	}

	locations := []string{dir}
	for _, loc := range strings.Split(cfg.MainOption("version_locations"), ",") {
		if loc = strings.TrimSpace(loc); loc != "" && loc != dir {
			locations = append(locations, loc)
		}
	}

	d := &Directory{cfg: cfg, dir: dir, locations: locations}
	if err := d.Reload(); err != nil {
		return nil, err
	}

	return d, nil
}

// Reload re-reads every revision file. Called automatically after a
// revision is generated.
func (d *Directory) Reload() error {
	var scripts []*toolkit.Script

	for _, loc := range d.locations {
		entries, err := os.ReadDir(loc)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "failed to read version location: %s", loc)
		}

		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
				continue
			}

			path := filepath.Join(loc, entry.Name())
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "failed to open revision file: %s", path)
			}

			s, err := ParseScript(path, f)
			_ = f.Close()
			if err != nil {
				return err
			}

			scripts = append(scripts, s)
		}
	}

	revs, err := newRevMap(scripts)
	if err != nil {
		return err
	}

	d.revs = revs
	return nil
}

// Dir returns the script storage root.
func (d *Directory) Dir() string { return d.dir }

// VersionLocations returns every revision storage path, the script
// root first.
func (d *Directory) VersionLocations() []string {
	return append([]string(nil), d.locations...)
}

// GetRevision resolves ref to exactly one revision.
func (d *Directory) GetRevision(ref string) (*toolkit.Script, error) {
	ids, err := d.revs.resolveRef(ref)
	if err != nil {
		return nil, err
	}

	if len(ids) != 1 {
		return nil, toolkit.NewResolutionError(ref, "expected exactly one revision")
	}

	return d.revs.byID[ids[0]], nil
}

// GetRevisions resolves each reference and flattens the results,
// preserving resolution order and dropping duplicates.
func (d *Directory) GetRevisions(refs ...string) ([]*toolkit.Script, error) {
	seen := map[string]bool{}
	var out []*toolkit.Script

	for _, ref := range refs {
		ids, err := d.revs.resolveRef(ref)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, d.revs.byID[id])
			}
		}
	}

	return out, nil
}

// StrictHeads returns the ids of revisions with no child revision,
// ignoring dependency edges.
func (d *Directory) StrictHeads() []string {
	return d.revs.strictHeads()
}

// BranchRevisions returns every revision belonging to the named branch.
func (d *Directory) BranchRevisions(branch string) ([]*toolkit.Script, error) {
	ids, err := d.revs.branchMembers(branch)
	if err != nil {
		return nil, err
	}

	out := make([]*toolkit.Script, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.revs.byID[id])
	}

	return out, nil
}

// WalkRevisions returns the revisions between lower (exclusive) and
// upper (inclusive) in apply order. Empty or "base" bounds extend the
// walk to the corresponding end of the graph.
func (d *Directory) WalkRevisions(lower, upper []string) ([]*toolkit.Script, error) {
	upperIDs, err := d.resolveAll(upper, "heads")
	if err != nil {
		return nil, err
	}

	lowerIDs, err := d.resolveAll(lower, "base")
	if err != nil {
		return nil, err
	}

	include := d.revs.ancestors(upperIDs, false)
	for id := range d.revs.ancestors(lowerIDs, false) {
		delete(include, id)
	}

	ordered := d.revs.topoSort(include)
	out := make([]*toolkit.Script, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, d.revs.byID[id])
	}

	return out, nil
}

// resolveAll resolves a list of references, substituting def when the
// list is empty.
func (d *Directory) resolveAll(refs []string, def string) ([]string, error) {
	if len(refs) == 0 {
		refs = []string{def}
	}

	var ids []string
	for _, ref := range refs {
		resolved, err := d.revs.resolveRef(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, resolved...)
	}

	return ids, nil
}
