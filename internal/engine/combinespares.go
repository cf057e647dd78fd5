package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/inventory"
	"github.com/pinggolf/inventory-engine/internal/queue"
)

type CombineSparesRequest struct {
	SparePieceGroupIDs []uuid.UUID
	BundleSize         int
	NumberOfBundles    int
	CreatedBy          uuid.UUID
}

type CombineSparesResult struct {
	TransactionID uuid.UUID
	BundleStockID uuid.UUID
}

// CombineSpares implements §4.5's two-phase reservation-then-combine
// protocol inside one serializable transaction: reservation exists so a
// caller can safely poll piece groups across several API round-trips in
// the general case, but here both phases run back-to-back since the
// whole operation is one call.
func (e *Engine) CombineSpares(ctx context.Context, in CombineSparesRequest) (*CombineSparesResult, error) {
	if len(in.SparePieceGroupIDs) == 0 || in.BundleSize <= 0 || in.NumberOfBundles <= 0 {
		return nil, inventory.New(inventory.KindInvalidSplit, "combine spares requires group ids, bundle_size > 0, number_of_bundles > 0")
	}

	var result *CombineSparesResult
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		needed := in.BundleSize * in.NumberOfBundles

		var stockID uuid.UUID
		groups := make(map[uuid.UUID]db.SparePieceRow)
		for _, groupID := range in.SparePieceGroupIDs {
			row, err := lockSingleSparePiece(ctx, tx, groupID, e.cfg.ReservationTimeoutSeconds)
			if err != nil {
				return inventory.Wrap(inventory.KindPiecesLocked, err, "spare piece group %s locked by another transaction", groupID)
			}
			if row.Status != "IN_STOCK" {
				return inventory.New(inventory.KindInsufficientPieces, "spare piece group %s is not IN_STOCK", groupID)
			}
			if stockID == uuid.Nil {
				stockID = row.StockID
			} else if row.StockID != stockID {
				return inventory.New(inventory.KindInvalidSplit, "all spare piece groups must belong to the same SPARE stock")
			}
			groups[groupID] = row
		}

		total := 0
		for _, row := range groups {
			total += row.PieceCount
		}
		if total < needed {
			return inventory.New(inventory.KindInsufficientPieces, "spare piece groups total %d pieces, need %d", total, needed)
		}

		txnID := newID()
		for groupID, row := range groups {
			ok, err := e.queries.ReserveSparePiece(ctx, tx, groupID, txnID, row.Version)
			if err != nil {
				return err
			}
			if !ok {
				return inventory.New(inventory.KindConcurrent, "spare piece group %s changed concurrently", groupID)
			}
		}

		sourceStock, err := e.queries.LockStock(ctx, tx, stockID, db.LockForUpdate)
		if err != nil {
			return err
		}

		var pieceLength sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT piece_length FROM inventory_stock WHERE id = $1`, stockID).Scan(&pieceLength); err != nil {
			return err
		}

		bundleStock, err := e.queries.FindOpenStock(ctx, tx, sourceStock.BatchID, string(inventory.StockBundle), pieceLength)
		if err != nil {
			return err
		}
		var bundleStockID uuid.UUID
		if bundleStock != nil {
			bundleStockID = bundleStock.ID
			if _, err := tx.ExecContext(ctx,
				`UPDATE inventory_stock SET quantity = quantity + $2, version = version + 1, updated_at = NOW() WHERE id = $1 AND version = $3`,
				bundleStockID, in.NumberOfBundles, bundleStock.Version); err != nil {
				return fmt.Errorf("increment bundle stock: %w", err)
			}
		} else {
			bundleStockID = newID()
			if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
				ID: bundleStockID, BatchID: sourceStock.BatchID, ProductVariantID: sourceStock.ProductVariantID,
				StockType: string(inventory.StockBundle), Quantity: in.NumberOfBundles,
				PiecesPerBundle: sql.NullInt64{Int64: int64(in.BundleSize), Valid: true},
				PieceLength:     pieceLength,
			}); err != nil {
				return err
			}
		}

		for groupID, row := range groups {
			// piece_count is left at its pre-combine value (scrap.go does the
			// same for SCRAPPED groups) so Revert COMBINE_SPARES can restore
			// the exact group size without a second source of truth.
			if err := e.queries.SetSparePieceStatus(ctx, tx, groupID, row.PieceCount, "SOLD_OUT", uuid.NullUUID{}); err != nil {
				return err
			}
			if err := e.queries.SoftDeleteSparePiece(ctx, tx, groupID, txnID); err != nil {
				return err
			}
		}

		remainder := total - needed
		if remainder > 0 {
			if err := e.queries.CreateSparePiece(ctx, tx, db.CreateSparePieceParams{
				ID: newID(), StockID: stockID, PieceCount: remainder, PieceLength: pieceLength,
				CreatedByTransactionID: txnID, OriginalStockID: stockID,
			}); err != nil {
				return err
			}
		}

		if err := deriveAndApply(ctx, tx, e.queries, stockID); err != nil {
			return err
		}

		if err := e.queries.CreateTransaction(ctx, tx, db.CreateTransactionParams{
			ID: txnID, TransactionType: string(inventory.TxnCombineSpares),
			FromStockID: uuid.NullUUID{UUID: stockID, Valid: true},
			ToStockID:   uuid.NullUUID{UUID: bundleStockID, Valid: true},
			ToQuantity:  sql.NullInt64{Int64: int64(in.NumberOfBundles), Valid: true},
			BatchID:     uuid.NullUUID{UUID: sourceStock.BatchID, Valid: true},
			CreatedBy:   in.CreatedBy,
		}); err != nil {
			return err
		}

		result = &CombineSparesResult{TransactionID: txnID, BundleStockID: bundleStockID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject(string(inventory.TxnCombineSpares)), []byte(result.TransactionID.String()))
	return result, nil
}

// lockSingleSparePiece reads one spare piece group FOR UPDATE NOWAIT,
// first releasing its reservation if stale (§4.5 Phase I step 1).
func lockSingleSparePiece(ctx context.Context, tx *sql.Tx, id uuid.UUID, reservationTimeoutSeconds int) (db.SparePieceRow, error) {
	if _, err := tx.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces
		SET reserved_by_transaction = NULL, reserved_at = NULL
		WHERE id = $1 AND reserved_at IS NOT NULL AND reserved_at < NOW() - ($2 || ' seconds')::interval`,
		id, reservationTimeoutSeconds); err != nil {
		return db.SparePieceRow{}, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, stock_id, piece_count, status, reserved_by_transaction, reserved_at,
		       created_by_transaction_id, original_stock_id, version
		FROM sprinkler_spare_pieces
		WHERE id = $1 AND deleted_at IS NULL FOR UPDATE NOWAIT`, id)
	var s db.SparePieceRow
	if err := row.Scan(&s.ID, &s.StockID, &s.PieceCount, &s.Status, &s.ReservedByTransaction,
		&s.ReservedAt, &s.CreatedByTransactionID, &s.OriginalStockID, &s.Version); err != nil {
		return db.SparePieceRow{}, err
	}
	if s.ReservedByTransaction.Valid {
		return db.SparePieceRow{}, fmt.Errorf("spare piece %s already reserved", id)
	}
	return s, nil
}
