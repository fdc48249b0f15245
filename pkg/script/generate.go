package script

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// TemplateName is the script template file installed in the script root.
const TemplateName = "script.sql.tmpl"

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

type (
	templateData struct {
		Revision   string
		Parents    []string
		Labels     []string
		DependsOn  []string
		Message    string
		CreateDate time.Time
		Databases  []databaseSection
	}

	databaseSection struct {
		Name string
		Up   string
		Down string
	}
)

// GenerateRevision resolves the request's parent references, renders
// the script template and writes the new revision file into the
// requested version path (the script root by default).
func (d *Directory) GenerateRevision(req toolkit.GenerateRequest) (*toolkit.Script, error) {
	parents, err := d.resolveParents(req.Heads, req.Splice)
	if err != nil {
		return nil, err
	}

	depends, err := d.resolveAll(req.DependsOn, "base")
	if err != nil {
		return nil, err
	}

	// Reject requests the graph would refuse to load before anything is
	// written, so a failed call cannot leave a broken file behind.
	if _, ok := d.revs.byID[req.RevID]; ok {
		return nil, errors.Errorf("revision id %s already exists", req.RevID)
	}

	for _, label := range req.BranchLabels {
		if other, ok := d.revs.labels[label]; ok {
			return nil, errors.Errorf("branch label %q is already used by %s", label, other)
		}
	}

	data := templateData{
		Revision:   req.RevID,
		Parents:    parents,
		Labels:     req.BranchLabels,
		DependsOn:  depends,
		Message:    req.Message,
		CreateDate: time.Now().UTC(),
		Databases:  d.sections(req),
	}

	tmplPath := filepath.Join(d.dir, TemplateName)
	tmpl, err := template.New(TemplateName).Funcs(sprig.TxtFuncMap()).ParseFiles(tmplPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load script template: %s", tmplPath)
	}

	dest := req.VersionPath
	if dest == "" {
		dest = d.dir
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create version path: %s", dest)
	}

	path := filepath.Join(dest, req.RevID+"_"+slug(req.Message)+".sql")
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create revision file: %s", path)
	}

	if err := tmpl.Execute(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, errors.Wrapf(err, "failed to render revision file: %s", path)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, errors.Wrapf(err, "failed to write revision file: %s", path)
	}

	if err := d.Reload(); err != nil {
		// The file made the directory unloadable; take it back out and
		// restore the previous graph.
		_ = os.Remove(path)
		_ = d.Reload()
		return nil, err
	}

	return d.GetRevision(req.RevID)
}

// resolveParents resolves parent references to concrete ids and
// enforces that each parent is a head unless splicing was requested.
func (d *Directory) resolveParents(refs []string, splice bool) ([]string, error) {
	var parents []string

	for _, ref := range refs {
		ids, err := d.revs.resolveRef(ref)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			if !splice && len(d.revs.children[id]) > 0 {
				return nil, errors.Errorf("revision %s is not a head; use splice to branch from it", id)
			}
			parents = append(parents, id)
		}
	}

	return parents, nil
}

// sections builds the per-database section list: pre-populated SQL when
// the request carries autogenerated content, otherwise one empty pair
// per configured database name.
func (d *Directory) sections(req toolkit.GenerateRequest) []databaseSection {
	names := map[string]bool{}
	for name := range req.Up {
		names[name] = true
	}
	for name := range req.Down {
		names[name] = true
	}

	if len(names) == 0 {
		if req.Config != nil {
			for _, name := range strings.Split(req.Config.MainOption("databases"), ",") {
				if name = strings.TrimSpace(name); name != "" {
					names[name] = true
				}
			}
		}

		if len(names) == 0 {
			names[DefaultDatabase] = true
		}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	sections := make([]databaseSection, 0, len(ordered))
	for _, name := range ordered {
		sections = append(sections, databaseSection{
			Name: name,
			Up:   req.Up[name],
			Down: req.Down[name],
		})
	}

	return sections
}

// slug converts a revision message into the filename fragment.
func slug(message string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(message), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "revision"
	}

	if len(s) > 40 {
		s = s[:40]
	}

	return strings.Trim(s, "_")
}
