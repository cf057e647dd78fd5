package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pinggolf/inventory-engine/internal/db"
)

// SweepExpiredReservations releases every spare-piece reservation older
// than the configured timeout (§4.5 Phase I step 1, §5's R_timeout). Each
// CombineSpares call already does this inline for the groups it names
// (lockSingleSparePiece), so this standalone entry point exists for a
// maintenance path that isn't waiting on any particular group — grounded
// on Lincyaw-OpenERP's StockAllocationService lock-expiry sweep.
func (e *Engine) SweepExpiredReservations(ctx context.Context) (int64, error) {
	var released int64
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := sweepAllExpiredReservations(ctx, tx, e.cfg.ReservationTimeoutSeconds)
		if err != nil {
			return err
		}
		released = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

func sweepAllExpiredReservations(ctx context.Context, tx *sql.Tx, reservationTimeoutSeconds int) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces
		SET reserved_by_transaction = NULL, reserved_at = NULL
		WHERE reserved_at IS NOT NULL AND reserved_at < NOW() - ($1 || ' seconds')::interval`,
		reservationTimeoutSeconds)
	if err != nil {
		return 0, fmt.Errorf("sweep expired reservations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetStockSummary returns in-stock totals grouped by stock_type and
// variant (§2 Query Surface "simple counts").
func (e *Engine) GetStockSummary(ctx context.Context) ([]db.StockSummaryRow, error) {
	return e.queries.GetStockSummary(ctx, e.sqlDB)
}
