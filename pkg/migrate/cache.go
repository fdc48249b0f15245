package migrate

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// cache holds the per-scope objects. The durable half (config, script
// directory, environment, engines, metadata) lives as long as the scope
// itself; the transient half (migration contexts and their operation
// handles) holds open connections and is discarded on every teardown.
type cache struct {
	mu sync.Mutex

	// durable
	cfg       *toolkit.Config
	scripts   toolkit.ScriptDirectory
	env       toolkit.EnvironmentContext
	engines   map[string]*toolkit.Engine
	metadatas map[string]*toolkit.Metadata

	// transient
	contexts map[string]toolkit.MigrationContext
	ops      map[string]*toolkit.Operations
}

// clear closes and drops the transient objects. Close failures are
// logged and never propagated so a teardown cannot mask the error the
// scope ended with.
func (c *cache) clear(log logrus.FieldLogger) {
	c.mu.Lock()
	contexts := c.contexts
	c.contexts = nil
	c.ops = nil
	c.mu.Unlock()

	for name, mc := range contexts {
		if err := mc.Close(); err != nil {
			log.WithError(err).WithField("database", name).Warn("failed to close migration context")
		}
	}
}
