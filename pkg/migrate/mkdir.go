package migrate

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/revisor-dev/revisor/pkg/script"
)

//go:embed templates
var templatesRoot embed.FS

// templates holds the script template variants, one directory per
// variant ("generic", "multidb").
var templates = func() fs.FS {
	sub, err := fs.Sub(templatesRoot, "templates")
	if err != nil {
		panic(err)
	}

	return sub
}()

// Mkdir creates the scope's migration directory layout: the script
// root with the template variant matching the database count, plus
// every configured version location. Existing files are never
// overwritten, so Mkdir is safe to run on every startup.
func (m *Migrate) Mkdir(ctx context.Context) error {
	app, c, err := m.cacheFor(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	cfg, err := m.configLocked(app, c)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	engines := c.engines
	c.mu.Unlock()

	variant := "generic"
	if len(engines) > 1 {
		variant = "multidb"
	}

	tmplFS := cfg.Templates()
	if tmplFS == nil {
		return newDirectoryError(variant, "no template filesystem is configured")
	}

	data, err := fs.ReadFile(tmplFS, path.Join(variant, script.TemplateName))
	if err != nil {
		return newDirectoryError(variant, "template variant is not available")
	}

	root := cfg.MainOption("script_location")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return newDirectoryError(root, "cannot create script root: %v", err)
	}

	dest := filepath.Join(root, script.TemplateName)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return newDirectoryError(dest, "cannot install script template: %v", err)
		}
	} else if err != nil {
		return newDirectoryError(dest, "cannot inspect script template: %v", err)
	}

	for _, loc := range strings.Split(cfg.MainOption("version_locations"), ",") {
		if loc = strings.TrimSpace(loc); loc == "" {
			continue
		}

		if err := os.MkdirAll(loc, 0o755); err != nil {
			return newDirectoryError(loc, "cannot create version location: %v", err)
		}
	}

	return nil
}
