// Package engine implements the seven closed inventory operations
// (Production, Cut Roll, Split Bundle, Combine Spares, Dispatch, Return,
// Scrap), the derivation rules that keep aggregate stock and batch
// quantities consistent, and the revert engine that undoes them exactly.
//
// Every operation runs inside one *sql.Tx at serializable (or
// repeatable-read, per §5) isolation: read the rows it needs under
// FOR UPDATE / FOR UPDATE NOWAIT, mutate, write its InventoryTransaction
// log row(s) (one per item for Dispatch and Return; Scrap is recorded in
// its own scrap tables instead), commit. The teacher's handler layer called
// straight into *sql.DB methods per-request; here every public method
// owns its own transaction boundary the same way, generalized from
// single-table writes to the multi-table flows §4 describes.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/queue"
	"github.com/pinggolf/inventory-engine/internal/retry"
)

// Engine is the single entry point for all inventory operations.
type Engine struct {
	sqlDB   *sql.DB
	queries *db.Queries
	nats    *queue.Manager
	limiter *retry.Limiter
	cfg     Config
}

// Config carries the engine-tunable settings §4.5/§5 call out explicitly.
type Config struct {
	ReservationTimeoutSeconds int
	SequenceRetryMax          int
}

func New(sqlDB *sql.DB, queries *db.Queries, nats *queue.Manager, cfg Config) *Engine {
	return &Engine{
		sqlDB:   sqlDB,
		queries: queries,
		nats:    nats,
		limiter: retry.NewLimiter(20, 5),
		cfg:     cfg,
	}
}

// withTx runs fn inside a serializable transaction and commits it when fn
// returns nil. It publishes nothing itself; callers publish their event
// only after withTx returns without error (§6.3: events fire only for
// durable state changes).
func (e *Engine) withTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := e.sqlDB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// publish best-effort notifies NATS subscribers after commit. A publish
// failure never unwinds a committed operation — the log is the source of
// truth, NATS is an at-least-once side channel for collaborators (§6.3).
func (e *Engine) publish(subject string, payload []byte) {
	if e.nats == nil {
		return
	}
	_ = e.nats.Publish(subject, payload)
}

func newID() uuid.UUID { return uuid.New() }
