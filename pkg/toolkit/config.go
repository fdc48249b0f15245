package toolkit

import (
	"io/fs"
	"sort"
)

type (
	// Config carries the resolved settings a script directory and runtime
	// environment are built from. It is a flat bag of main options plus a
	// filesystem holding the revision script template variants.
	//
	// Recognized main options:
	//   - script_location: absolute path of the script storage root
	//   - version_locations: comma-joined list of additional revision
	//     storage paths (the script root is always included)
	//   - databases: comma-joined logical database names, set only when
	//     more than one database is configured
	//   - revision_environment: "true" to run the generation environment
	//     even for empty revisions
	//
	// Example:
	//
	//	c := toolkit.NewConfig()
	//	c.SetMainOption("script_location", "/srv/app/migrations")
	//	loc := c.MainOption("script_location")
	Config struct {
		opts      map[string]string
		templates fs.FS
	}
)

// NewConfig returns an empty Config.
func NewConfig() *Config {
	return &Config{opts: map[string]string{}}
}

// SetMainOption sets a top-level option value.
func (c *Config) SetMainOption(key, value string) {
	c.opts[key] = value
}

// MainOption returns the value for key, or "" if unset.
func (c *Config) MainOption(key string) string {
	return c.opts[key]
}

// MainOptions returns the option keys in sorted order. Used by
// implementations that need to enumerate extra options.
func (c *Config) MainOptions() []string {
	keys := make([]string, 0, len(c.opts))
	for k := range c.opts {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

// SetTemplates sets the filesystem containing the revision script
// template variants. Each variant is a directory (e.g. "generic",
// "multidb") holding a script.sql.tmpl file.
func (c *Config) SetTemplates(tmpl fs.FS) {
	c.templates = tmpl
}

// Templates returns the template filesystem, or nil if none was set.
func (c *Config) Templates() fs.FS {
	return c.templates
}
