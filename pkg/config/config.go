// Package config loads the revisor.yaml project file and turns it into
// a ready application scope: opened engines, loaded target metadata and
// migration settings.
package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/revisor-dev/revisor/pkg/engine"
	"github.com/revisor-dev/revisor/pkg/scope"
	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// FileName is the project configuration file looked up in the project
// directory.
const FileName = "revisor.yaml"

type (
	// VersionLocation is one extra revision storage path. In YAML it is
	// either a plain string (the path) or a mapping with branch and
	// path keys.
	VersionLocation struct {
		Branch string `yaml:"branch"`
		Path   string `yaml:"path"`
	}

	// Database configures one engine and its optional target metadata
	// file.
	Database struct {
		// Driver selects the database driver (sqlite3, postgres,
		// clickhouse).
		Driver string `yaml:"driver"`

		// DSN is the connection string passed to the driver.
		DSN string `yaml:"dsn"`

		// Metadata is the path of a YAML file declaring the schema shape
		// migrations are generated toward. Optional.
		Metadata string `yaml:"metadata"`
	}

	// Config is the parsed revisor.yaml.
	Config struct {
		// ScriptLocation is the script storage root, relative to the
		// project directory unless absolute.
		ScriptLocation string `yaml:"script_location"`

		// VersionLocations are extra revision storage paths.
		VersionLocations []VersionLocation `yaml:"version_locations"`

		// Databases maps logical database names to their connection
		// settings. A single database is conventionally named "default".
		Databases map[string]Database `yaml:"databases"`

		// Context holds extra options passed to every environment
		// configure call, e.g. compare_server_default.
		Context map[string]any `yaml:"context"`

		// RevisionEnvironment forces the generation environment to run
		// even for empty revisions.
		RevisionEnvironment bool `yaml:"revision_environment"`

		// Extra options copied verbatim into the toolkit config.
		Extra map[string]string `yaml:"extra"`
	}
)

// UnmarshalYAML accepts either a plain path string or a branch/path
// mapping.
func (v *VersionLocation) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&v.Path)
	}

	type plain VersionLocation
	return node.Decode((*plain)(v))
}

// LoadConfig parses a project configuration from r.
//
// Example:
//
//	yamlData := `
//	script_location: migrations
//	databases:
//	  default:
//	    driver: sqlite3
//	    dsn: file:app.db
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal project config")
	}

	if cfg.ScriptLocation == "" {
		cfg.ScriptLocation = "migrations"
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the given path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// LoadMetadata parses a target metadata declaration from r.
func LoadMetadata(r io.Reader) (*toolkit.Metadata, error) {
	var meta toolkit.Metadata
	if err := yaml.NewDecoder(r).Decode(&meta); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata")
	}

	return &meta, nil
}

// LoadMetadataFile loads a target metadata declaration from the given
// path.
func LoadMetadataFile(path string) (*toolkit.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadMetadata(f)
}

// Settings converts the file settings into scope settings.
func (c *Config) Settings() scope.Settings {
	locations := make([]scope.VersionLocation, 0, len(c.VersionLocations))
	for _, vl := range c.VersionLocations {
		locations = append(locations, scope.VersionLocation{Branch: vl.Branch, Path: vl.Path})
	}

	return scope.Settings{
		ScriptLocation:      c.ScriptLocation,
		VersionLocations:    locations,
		Context:             c.Context,
		RevisionEnvironment: c.RevisionEnvironment,
		Extra:               c.Extra,
	}
}

// App builds an application scope from the configuration: engines are
// opened and metadata files loaded, with relative paths resolved
// against root. The returned closer releases every opened engine.
func (c *Config) App(name, root string) (*scope.App, func() error, error) {
	if len(c.Databases) == 0 {
		return nil, nil, errors.New("no databases configured in " + FileName)
	}

	engines := map[string]*toolkit.Engine{}
	metadatas := map[string]*toolkit.Metadata{}

	closer := func() error {
		var first error
		for _, eng := range engines {
			if err := eng.DB.Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for dbName, db := range c.Databases {
		eng, err := engine.Open(db.Driver, db.DSN)
		if err != nil {
			_ = closer()
			return nil, nil, errors.Wrapf(err, "failed to open database %q", dbName)
		}
		engines[dbName] = eng

		if db.Metadata == "" {
			continue
		}

		path := db.Metadata
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}

		meta, err := LoadMetadataFile(path)
		if err != nil {
			_ = closer()
			return nil, nil, errors.Wrapf(err, "failed to load metadata for %q", dbName)
		}
		metadatas[dbName] = meta
	}

	app := scope.New(scope.AppParams{
		Name:      name,
		Root:      root,
		Settings:  c.Settings(),
		Engines:   engines,
		Metadatas: metadatas,
	})

	return app, closer, nil
}
