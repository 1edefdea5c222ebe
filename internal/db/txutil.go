package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AfterCommit collects callbacks that must run only once the enclosing
// transaction has actually committed -- SQS sends, object-store uploads,
// and GX calls are never allowed to fire for a row that rolled back (spec
// §5 "post-commit scheduling", §9 "after-commit scheduling" design note).
// This is the runtime transaction-synchronization-hook option the design
// note names as an alternative to a polled outbox table.
type AfterCommit struct {
	fns []func()
}

// Defer registers fn to run after a successful commit. Callbacks run in
// registration order, synchronously, on the caller's goroutine.
func (a *AfterCommit) Defer(fn func()) {
	a.fns = append(a.fns, fn)
}

func (a *AfterCommit) run() {
	for _, fn := range a.fns {
		fn()
	}
}

// InTx runs fn inside a transaction. On success the transaction commits
// and any callbacks registered on the AfterCommit fire; on error, or if fn
// returns an error, the transaction rolls back and no callback runs.
func InTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx, ac *AfterCommit) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	ac := &AfterCommit{}
	if err := fn(ctx, tx, ac); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	ac.run()
	return nil
}
