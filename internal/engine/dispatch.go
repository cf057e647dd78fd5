package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/inventory"
	"github.com/pinggolf/inventory-engine/internal/queue"
	"github.com/shopspring/decimal"
)

// DispatchItemInput is one line of a CreateDispatch call (§4.6).
type DispatchItemInput struct {
	ItemType         inventory.DispatchItemType
	StockID          uuid.UUID
	ProductVariantID uuid.UUID
	Quantity         int
	LengthMeters     decimal.Decimal
	CutPieceID       uuid.UUID
	SparePieceIDs    []uuid.UUID // may repeat a group id to request N pieces from it
	BundleSize       int
	PiecesPerBundle  int
	Notes            string
}

type CreateDispatchInput struct {
	CustomerID    uuid.UUID
	BillToID      uuid.NullUUID
	TransportID   uuid.NullUUID
	VehicleID     uuid.NullUUID
	InvoiceNumber string
	Notes         string
	DispatchDate  sql.NullTime
	DispatchTZ    string
	Items         []DispatchItemInput
	CreatedBy     uuid.UUID
}

type CreateDispatchResult struct {
	DispatchID     uuid.UUID
	DispatchNumber string
}

// CreateDispatch implements §4.6's two-phase pre-validate/execute flow.
// Phase I walks every item read-only (well, under lock, but without
// mutating) so a failure at item 3 never leaves items 1-2 partially
// applied — the whole point of running both phases in one transaction.
func (e *Engine) CreateDispatch(ctx context.Context, in CreateDispatchInput) (*CreateDispatchResult, error) {
	if len(in.Items) == 0 {
		return nil, inventory.New(inventory.KindInvalidDispatch, "dispatch requires at least one item")
	}

	var result *CreateDispatchResult
	err := retryOnConcurrent(ctx, e.limiter, "dispatch-sequence", 5, func() error {
		return e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			// Phase I: pre-validate every item.
			for idx, item := range in.Items {
				if err := validateDispatchItem(ctx, tx, e.queries, item); err != nil {
					return inventory.AtItem(inventory.KindInvalidDispatch, idx, "%s", err.Error())
				}
			}

			year := inventory.CurrentYear()
			last, err := e.queries.LastDispatchNumberForYear(ctx, tx, inventory.DispatchPrefix, year)
			if err != nil {
				return err
			}
			dispatchNumber := inventory.NextDispatchNumber(year, last)

			dispatchID := newID()
			if err := e.queries.CreateDispatch(ctx, tx, db.CreateDispatchParams{
				ID: dispatchID, DispatchNumber: dispatchNumber, CustomerID: in.CustomerID,
				BillToID: in.BillToID, TransportID: in.TransportID, VehicleID: in.VehicleID,
				InvoiceNumber: nullString(in.InvoiceNumber), Notes: nullString(in.Notes),
				DispatchDate: in.DispatchDate, DispatchTZ: in.DispatchTZ, CreatedBy: in.CreatedBy,
			}); err != nil {
				// Unique violation on dispatch_number under concurrent writers
				// surfaces here; caller retries (§4.6 step 1).
				return inventory.Wrap(inventory.KindConcurrent, err, "dispatch_number %s collided", dispatchNumber)
			}

			affectedBatches := map[uuid.UUID]struct{}{}
			for idx, item := range in.Items {
				batchID, err := e.executeDispatchItem(ctx, tx, dispatchID, item, in.CreatedBy)
				if err != nil {
					return inventory.AtItem(inventory.KindInvalidDispatch, idx, "%s", err.Error())
				}
				affectedBatches[batchID] = struct{}{}
			}

			for batchID := range affectedBatches {
				if err := e.queries.RecomputeBatchQuantity(ctx, tx, batchID); err != nil {
					return err
				}
				if err := sweepEmptyBatch(ctx, tx, batchID); err != nil {
					return err
				}
			}

			result = &CreateDispatchResult{DispatchID: dispatchID, DispatchNumber: dispatchNumber}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject(string(inventory.TxnDispatch)), []byte(result.DispatchNumber))
	return result, nil
}

func validateDispatchItem(ctx context.Context, tx *sql.Tx, q *db.Queries, item DispatchItemInput) error {
	stock, err := q.LockStock(ctx, tx, item.StockID, db.LockForUpdateNoWait)
	if err != nil {
		return fmt.Errorf("stock %s not available: %w", item.StockID, err)
	}
	if stock.Status != "IN_STOCK" {
		return fmt.Errorf("stock %s is not IN_STOCK", item.StockID)
	}

	switch item.ItemType {
	case inventory.ItemFullRoll, inventory.ItemBundle:
		if stock.Quantity < item.Quantity {
			return fmt.Errorf("stock %s has %d available, requested %d", item.StockID, stock.Quantity, item.Quantity)
		}
	case inventory.ItemCutPiece:
		var status string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM hdpe_cut_pieces WHERE id = $1 FOR UPDATE NOWAIT`, item.CutPieceID).Scan(&status); err != nil {
			return fmt.Errorf("cut piece %s not found: %w", item.CutPieceID, err)
		}
		if status != "IN_STOCK" {
			return fmt.Errorf("cut piece %s is not IN_STOCK", item.CutPieceID)
		}
	case inventory.ItemCutRoll:
		var available int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM hdpe_cut_pieces WHERE stock_id = $1 AND status = 'IN_STOCK' AND deleted_at IS NULL`,
			item.StockID).Scan(&available); err != nil {
			return err
		}
		if available < item.Quantity {
			return fmt.Errorf("stock %s has %d IN_STOCK pieces, requested %d", item.StockID, available, item.Quantity)
		}
	case inventory.ItemSparePieces:
		requestedPerGroup := countByID(item.SparePieceIDs)
		for groupID, requested := range requestedPerGroup {
			var status string
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT status, piece_count FROM sprinkler_spare_pieces WHERE id = $1 FOR UPDATE NOWAIT`,
				groupID).Scan(&status, &count); err != nil {
				return fmt.Errorf("spare piece group %s not found: %w", groupID, err)
			}
			if status != "IN_STOCK" {
				return fmt.Errorf("spare piece group %s is not IN_STOCK", groupID)
			}
			if count < requested {
				return fmt.Errorf("spare piece group %s has %d pieces, requested %d", groupID, count, requested)
			}
		}
	}
	return nil
}

// executeDispatchItem performs the Phase II mutation for one item and
// returns the batch id it affected.
func (e *Engine) executeDispatchItem(ctx context.Context, tx *sql.Tx, dispatchID uuid.UUID, item DispatchItemInput, createdBy uuid.UUID) (uuid.UUID, error) {
	q := e.queries
	stock, err := q.LockStock(ctx, tx, item.StockID, db.LockForUpdate)
	if err != nil {
		return uuid.Nil, err
	}

	dispatchItemID := newID()
	txnID := newID()

	switch item.ItemType {
	case inventory.ItemFullRoll, inventory.ItemBundle:
		newQty := stock.Quantity - item.Quantity
		status := "IN_STOCK"
		if newQty == 0 {
			status = "SOLD_OUT"
		}
		if err := applyStockDelta(ctx, tx, q, *stock, newQty, status); err != nil {
			return uuid.Nil, err
		}

	case inventory.ItemCutPiece:
		if err := q.SetCutPieceStatus(ctx, tx, item.CutPieceID, "DISPATCHED", uuid.NullUUID{UUID: dispatchID, Valid: true}); err != nil {
			return uuid.Nil, err
		}
		if err := deriveAndApply(ctx, tx, q, item.StockID); err != nil {
			return uuid.Nil, err
		}

	case inventory.ItemCutRoll:
		rows, err := tx.QueryContext(ctx, `
			SELECT id FROM hdpe_cut_pieces
			WHERE stock_id = $1 AND status = 'IN_STOCK' AND deleted_at IS NULL
			ORDER BY created_at LIMIT $2`, item.StockID, item.Quantity)
		if err != nil {
			return uuid.Nil, err
		}
		var ids []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return uuid.Nil, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if len(ids) < item.Quantity {
			return uuid.Nil, fmt.Errorf("only %d IN_STOCK pieces available for stock %s", len(ids), item.StockID)
		}
		for _, id := range ids {
			if err := q.SetCutPieceStatus(ctx, tx, id, "DISPATCHED", uuid.NullUUID{UUID: dispatchID, Valid: true}); err != nil {
				return uuid.Nil, err
			}
		}
		if err := deriveAndApply(ctx, tx, q, item.StockID); err != nil {
			return uuid.Nil, err
		}

	case inventory.ItemSparePieces:
		for groupID, requested := range countByID(item.SparePieceIDs) {
			var count int
			var createdByTxn, originalStock uuid.UUID
			if err := tx.QueryRowContext(ctx,
				`SELECT piece_count, created_by_transaction_id, original_stock_id FROM sprinkler_spare_pieces WHERE id = $1 FOR UPDATE`,
				groupID).Scan(&count, &createdByTxn, &originalStock); err != nil {
				return uuid.Nil, err
			}
			if requested == count {
				if err := q.SetSparePieceStatus(ctx, tx, groupID, count, "DISPATCHED", uuid.NullUUID{UUID: dispatchID, Valid: true}); err != nil {
					return uuid.Nil, err
				}
			} else {
				if err := q.SetSparePieceStatus(ctx, tx, groupID, count-requested, "IN_STOCK", uuid.NullUUID{}); err != nil {
					return uuid.Nil, err
				}
				for i := 0; i < requested; i++ {
					if _, err := tx.ExecContext(ctx, `
						INSERT INTO sprinkler_spare_pieces (
							id, stock_id, piece_count, piece_length, status, dispatch_id,
							created_by_transaction_id, original_stock_id, version, created_at, updated_at)
						SELECT $1, stock_id, 1, piece_length, 'DISPATCHED', $2, $3, $4, 1, NOW(), NOW()
						FROM sprinkler_spare_pieces WHERE id = $5`,
						newID(), dispatchID, createdByTxn, originalStock, groupID); err != nil {
						return uuid.Nil, err
					}
				}
			}
		}
		if err := deriveAndApply(ctx, tx, q, item.StockID); err != nil {
			return uuid.Nil, err
		}
	}

	var sparePieceIDsForItem []uuid.UUID
	if item.ItemType == inventory.ItemSparePieces {
		sparePieceIDsForItem = item.SparePieceIDs
	}
	if err := q.CreateDispatchItem(ctx, tx, db.CreateDispatchItemParams{
		ID: dispatchItemID, DispatchID: dispatchID, StockID: item.StockID, ProductVariantID: item.ProductVariantID,
		ItemType: string(item.ItemType), Quantity: item.Quantity, LengthMeters: decimalToSQL(item.LengthMeters),
		CutPieceID: uuid.NullUUID{UUID: item.CutPieceID, Valid: item.CutPieceID != uuid.Nil},
		SparePieceIDs: sparePieceIDsForItem,
		BundleSize:    sql.NullInt64{Int64: int64(item.BundleSize), Valid: item.BundleSize > 0},
		PiecesPerBundle: sql.NullInt64{Int64: int64(item.PiecesPerBundle), Valid: item.PiecesPerBundle > 0},
		Notes: nullString(item.Notes),
	}); err != nil {
		return uuid.Nil, err
	}

	if err := q.CreateTransaction(ctx, tx, db.CreateTransactionParams{
		ID: txnID, TransactionType: string(inventory.TxnDispatch),
		FromStockID: uuid.NullUUID{UUID: item.StockID, Valid: true},
		FromQuantity: sql.NullInt64{Int64: int64(item.Quantity), Valid: true},
		BatchID: uuid.NullUUID{UUID: stock.BatchID, Valid: true},
		DispatchID: uuid.NullUUID{UUID: dispatchID, Valid: true},
		DispatchItemID: uuid.NullUUID{UUID: dispatchItemID, Valid: true},
		CreatedBy: createdBy,
	}); err != nil {
		return uuid.Nil, err
	}

	return stock.BatchID, nil
}

func countByID(ids []uuid.UUID) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		out[id]++
	}
	return out
}

// sweepEmptyBatch soft-deletes a batch whose computed quantity is zero
// and which owns no live stock (§4.6 step 7).
func sweepEmptyBatch(ctx context.Context, tx *sql.Tx, batchID uuid.UUID) error {
	var currentQty int
	var liveStock int
	if err := tx.QueryRowContext(ctx, `SELECT current_quantity FROM batches WHERE id = $1`, batchID).Scan(&currentQty); err != nil {
		return err
	}
	if currentQty != 0 {
		return nil
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_stock WHERE batch_id = $1 AND deleted_at IS NULL AND status = 'IN_STOCK'`,
		batchID).Scan(&liveStock); err != nil {
		return err
	}
	if liveStock > 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `UPDATE batches SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, batchID)
	return err
}
