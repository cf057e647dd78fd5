package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// Query operations (§6.1) are read-only projections over the same tables
// the seven operations write. They run outside any transaction, against
// the pool directly, since a stale read is an accepted tradeoff for a
// reporting surface (§5: "outside a transaction it is advisory").

// StockFilter narrows ListAvailableStock (§6.1). A nil field matches
// everything.
type StockFilter struct {
	StockType *string
	BatchID   *uuid.UUID
}

// ListAvailableStock returns every non-deleted, IN_STOCK row, optionally
// narrowed by stock type and/or batch.
func (e *Engine) ListAvailableStock(ctx context.Context, filter StockFilter) ([]db.AvailableStockRow, error) {
	return e.queries.ListAvailableStock(ctx, e.sqlDB, filter.StockType, filter.BatchID)
}

// GetBatchHistory returns every transaction touching a batch, newest
// first, per §5's (created_at DESC, id DESC) ordering guarantee.
func (e *Engine) GetBatchHistory(ctx context.Context, batchID uuid.UUID) ([]db.TransactionRow, error) {
	return e.queries.GetBatchHistory(ctx, e.sqlDB, batchID)
}

// PieceKind distinguishes which per-piece table GetPieceAuditTrail reads
// from, since HdpeCutPiece and SprinklerSparePiece have no shared id
// space.
type PieceKind string

const (
	PieceKindCutRoll PieceKind = "CUT_ROLL"
	PieceKindSpare   PieceKind = "SPARE"
)

// PieceAuditTrail is the lineage of a single piece or spare group:
// the transaction that created it, the one that removed/dispatched it
// (if any), and its current status.
type PieceAuditTrail struct {
	PieceID        uuid.UUID
	CreatedByTxnID uuid.UUID
	DeletedByTxnID uuid.NullUUID
	DispatchID     uuid.NullUUID
	Status         string
	CreatedAt      sql.NullTime
}

// GetPieceAuditTrail returns the audit trail for a single piece or spare
// group, per kind (§6.1).
func (e *Engine) GetPieceAuditTrail(ctx context.Context, pieceID uuid.UUID, kind PieceKind) (*PieceAuditTrail, error) {
	var (
		row *db.PieceAuditEvent
		err error
	)
	switch kind {
	case PieceKindCutRoll:
		row, err = e.queries.GetCutPieceAuditTrail(ctx, e.sqlDB, pieceID)
	case PieceKindSpare:
		row, err = e.queries.GetSparePieceAuditTrail(ctx, e.sqlDB, pieceID)
	default:
		return nil, inventory.New(inventory.KindNotFound, "unknown piece kind %q", kind)
	}
	if err != nil {
		return nil, inventory.Wrap(inventory.KindNotFound, err, "piece %s not found", pieceID)
	}
	return &PieceAuditTrail{
		PieceID:        pieceID,
		CreatedByTxnID: row.CreatedByTransactionID,
		DeletedByTxnID: row.DeletedByTransactionID,
		DispatchID:     row.DispatchID,
		Status:         row.Status,
		CreatedAt:      row.CreatedAt,
	}, nil
}

// TimelineFilter narrows GetTransactionTimeline to a date range (§6.1).
// Either bound may be zero to leave that side open.
type TimelineFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// GetTransactionTimeline returns the reverse-chronological feed of
// inventory_transactions and scraps (§6.1), handle-encoded per §6.3.
func (e *Engine) GetTransactionTimeline(ctx context.Context, filter TimelineFilter) ([]db.TimelineEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	from := sql.NullTime{Time: filter.From, Valid: !filter.From.IsZero()}
	to := sql.NullTime{Time: filter.To, Valid: !filter.To.IsZero()}
	return e.queries.GetTransactionTimeline(ctx, e.sqlDB, from, to, limit)
}
