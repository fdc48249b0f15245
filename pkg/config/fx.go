package config

import (
	"os"

	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// Loads the configuration from revisor.yaml when it exists. Returns
	// nil otherwise so commands that do not need a project (help,
	// version) still work.
	func() (*Config, error) {
		if _, err := os.Stat(FileName); os.IsNotExist(err) {
			return nil, nil
		}

		return LoadConfigFile(FileName)
	},
))
