package toolkit

import (
	"context"

	"github.com/pkg/errors"
)

// Operations is the thin schema-mutation handle over a migration
// context. Generated revision files and ad-hoc maintenance code execute
// their statements through it so everything runs inside the context's
// transaction scope.
type Operations struct {
	mc MigrationContext
}

// NewOperations wraps the given migration context.
func NewOperations(mc MigrationContext) *Operations {
	return &Operations{mc: mc}
}

// Context returns the underlying migration context.
func (o *Operations) Context() MigrationContext {
	return o.mc
}

// Exec runs one SQL statement inside the context's transaction scope.
func (o *Operations) Exec(ctx context.Context, query string, args ...any) error {
	if err := o.mc.Exec(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to execute: %s", query)
	}

	return nil
}
