package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
)

// recomputeStockQuantity implements Rule A (§4.8): the aggregate quantity
// of a CUT_ROLL or SPARE stock row is always the count derived from its
// live piece rows, never tracked independently. FULL_ROLL and BUNDLE
// quantities are written directly by the operation that owns them and
// are not re-derived here.
func recomputeStockQuantity(ctx context.Context, tx *sql.Tx, q *db.Queries, stock db.StockRow) (int, error) {
	switch stock.StockType {
	case "CUT_ROLL":
		pieces, err := q.LockCutPiecesForStock(ctx, tx, stock.ID)
		if err != nil {
			return 0, fmt.Errorf("derive cut_roll quantity: %w", err)
		}
		return len(pieces), nil
	case "SPARE":
		// §4.1 Rule A: SPARE quantity is the count of IN_STOCK groups, not
		// the sum of piece_count across them — a group with piece_count=5
		// still counts as one spare "row" in stock. Callers needing the
		// physical piece total sum piece_count themselves (Rule B does).
		rows, err := q.LockSpareRowsForStock(ctx, tx, stock.ID, 0)
		if err != nil {
			return 0, fmt.Errorf("derive spare quantity: %w", err)
		}
		count := 0
		for _, r := range rows {
			if r.Status == "IN_STOCK" {
				count++
			}
		}
		return count, nil
	default:
		return stock.Quantity, nil
	}
}

// applyStockDelta updates a stock row's quantity (optimistically
// versioned) and cascades a full recompute of its batch's
// current_quantity (Rule B, §4.8). Callers pass the new quantity and
// status directly; FULL_ROLL/BUNDLE operations compute it themselves,
// CUT_ROLL/SPARE operations should call recomputeStockQuantity first.
func applyStockDelta(ctx context.Context, tx *sql.Tx, q *db.Queries, stock db.StockRow, newQuantity int, newStatus string) error {
	ok, err := q.SetStockQuantity(ctx, tx, stock.ID, newQuantity, newStatus, stock.Version)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("stock %s version conflict", stock.ID)
	}
	if err := q.RecomputeBatchQuantity(ctx, tx, stock.BatchID); err != nil {
		return err
	}
	return nil
}

// deriveAndApply recomputes a CUT_ROLL/SPARE stock's quantity from its
// pieces, flips status to SOLD_OUT when it hits zero, and cascades to
// the owning batch — the single seam every piece-level mutation (cut,
// combine, dispatch, return, scrap, revert) must pass through to keep
// Rule A/Rule B from drifting.
func deriveAndApply(ctx context.Context, tx *sql.Tx, q *db.Queries, stockID uuid.UUID) error {
	// LockStockAny, not LockStock: this seam is shared by forward operations
	// (stock still IN_STOCK) and the Revert Engine, which must be able to
	// restore a stock row a prior operation already soft-deleted to zero
	// (§9: revert must tolerate operating on soft-deleted entities).
	stock, err := q.LockStockAny(ctx, tx, stockID, db.LockForUpdate)
	if err != nil {
		return err
	}
	qty, err := recomputeStockQuantity(ctx, tx, q, *stock)
	if err != nil {
		return err
	}
	status := "IN_STOCK"
	if qty == 0 {
		status = "SOLD_OUT"
	}
	return applyStockDelta(ctx, tx, q, *stock, qty, status)
}
