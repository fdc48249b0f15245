package migrate

import (
	"context"

	"github.com/revisor-dev/revisor/pkg/toolkit"
)

// RunMigrations executes the steps planned by fn against every
// configured database inside per-database transactions. All
// transactions are opened before any step runs; every one commits, or
// on the first failure every one rolls back and a TransactionError
// names the database that failed.
func (m *Migrate) RunMigrations(ctx context.Context, fn toolkit.StepFunc) error {
	contexts, err := m.MigrationContexts(ctx)
	if err != nil {
		return err
	}

	names := sortedNames(contexts)
	multi := len(contexts) > 1

	txs := make([]toolkit.Transaction, 0, len(names))
	rollback := func() {
		for _, tx := range txs {
			_ = tx.Rollback()
		}
	}

	for _, name := range names {
		tx, err := contexts[name].BeginTransaction(ctx)
		if err != nil {
			rollback()
			return newTransactionError(name, err)
		}
		txs = append(txs, tx)
	}

	for _, name := range names {
		mc := contexts[name]
		mc.SetStepFunc(fn)

		extra := map[string]any{}
		if multi {
			extra["engine_name"] = name
		}

		if err := mc.RunMigrations(ctx, extra); err != nil {
			rollback()
			return newTransactionError(name, err)
		}
	}

	for i, name := range names {
		if err := txs[i].Commit(); err != nil {
			// Roll back what has not committed yet; the committed
			// databases cannot be unwound.
			for _, tx := range txs[i+1:] {
				_ = tx.Rollback()
			}
			return newTransactionError(name, err)
		}
	}

	return nil
}
