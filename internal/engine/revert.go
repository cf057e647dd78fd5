package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/inventory"
	"github.com/pinggolf/inventory-engine/internal/queue"
)

// RevertResult reports what a revert procedure undid, for the caller to
// surface back to a client (§6.1: {ok, details}).
type RevertResult struct {
	OK      bool
	Details string
}

// RevertTransaction is the single entry point §6.1/§6.3 describe: it
// decodes a `{kind}_{uuid}` handle and dispatches to the matching revert
// procedure. kind "txn" and "inv" both resolve against inventory_transactions
// (the timeline emits "inv_" for that table; "txn" is accepted as a synonym
// so a handle copied from an API response or a log line both resolve).
func (e *Engine) RevertTransaction(ctx context.Context, handle string, revertedBy uuid.UUID) (*RevertResult, error) {
	kind, id, err := parseHandle(handle)
	if err != nil {
		return nil, inventory.Wrap(inventory.KindNotFound, err, "malformed transaction handle %q", handle)
	}

	switch kind {
	case "dispatch":
		if err := e.RevertDispatch(ctx, id, revertedBy); err != nil {
			return nil, err
		}
		return &RevertResult{OK: true, Details: "dispatch reverted"}, nil
	case "return":
		if err := e.RevertReturn(ctx, id, revertedBy); err != nil {
			return nil, err
		}
		return &RevertResult{OK: true, Details: "return reverted"}, nil
	case "scrap":
		if err := e.RevertScrap(ctx, id, revertedBy); err != nil {
			return nil, err
		}
		return &RevertResult{OK: true, Details: "scrap cancelled"}, nil
	case "txn", "inv":
		txn, err := e.queries.GetTransaction(ctx, e.sqlDB, id)
		if err != nil {
			return nil, inventory.Wrap(inventory.KindNotFound, err, "transaction %s not found", id)
		}
		switch inventory.TransactionType(txn.TransactionType) {
		case inventory.TxnCutRoll:
			err = e.RevertCutRoll(ctx, id, revertedBy)
		case inventory.TxnSplitBundle:
			err = e.RevertSplitBundle(ctx, id, revertedBy)
		case inventory.TxnCombineSpares:
			err = e.RevertCombineSpares(ctx, id, revertedBy)
		default:
			// PRODUCTION has no revert procedure (§4.9); RETURN/SCRAP/DISPATCH
			// transaction rows are reached through their own handle kind, not
			// through the generic inventory_transactions row.
			return nil, inventory.New(inventory.KindCannotRevert, "transaction type %s has no revert procedure", txn.TransactionType)
		}
		if err != nil {
			return nil, err
		}
		return &RevertResult{OK: true, Details: fmt.Sprintf("%s reverted", txn.TransactionType)}, nil
	default:
		return nil, inventory.New(inventory.KindNotFound, "unrecognized transaction handle kind %q", kind)
	}
}

func parseHandle(handle string) (kind string, id uuid.UUID, err error) {
	idx := strings.IndexByte(handle, '_')
	if idx < 0 {
		return "", uuid.Nil, fmt.Errorf("handle %q has no kind prefix", handle)
	}
	id, err = uuid.Parse(handle[idx+1:])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("handle %q has an invalid uuid: %w", handle, err)
	}
	return handle[:idx], id, nil
}

// clearBatchDeletedAt undoes sweepEmptyBatch's soft-delete once a revert
// puts quantity back above zero (§4.9: "For every batch touched, clear
// deleted_at if set").
func clearBatchDeletedAt(ctx context.Context, tx *sql.Tx, batchID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE batches SET deleted_at = NULL WHERE id = $1`, batchID)
	return err
}

// createdNearTxn approximates "this stock row was created by this
// transaction" when no direct foreign key exists between InventoryStock
// and the transaction that minted it (§4.9: "detected by creation-time
// proximity ≈ txn.created_at within 1 s").
func createdNearTxn(ctx context.Context, tx *sql.Tx, stockID uuid.UUID, txnCreatedAt sql.NullTime) (bool, error) {
	if !txnCreatedAt.Valid {
		return false, nil
	}
	var createdAt time.Time
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM inventory_stock WHERE id = $1`, stockID).Scan(&createdAt); err != nil {
		return false, err
	}
	delta := createdAt.Sub(txnCreatedAt.Time)
	if delta < 0 {
		delta = -delta
	}
	return delta <= time.Second, nil
}

// ---- Revert CUT_ROLL --------------------------------------------------

// RevertCutRoll implements §4.9's Revert CUT_ROLL. A re-cut (RecutPieceID
// present on the original CutRoll call) restores the subsumed piece
// instead of incrementing a FULL_ROLL, mirroring the asymmetry CutRoll
// itself has between its two source shapes.
func (e *Engine) RevertCutRoll(ctx context.Context, txnID, revertedBy uuid.UUID) error {
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txn, err := loadRevertibleTxn(ctx, tx, e.queries, txnID, inventory.TxnCutRoll)
		if err != nil {
			return err
		}

		pieces, err := e.queries.ListCutPiecesByCreatorTxn(ctx, tx, txnID)
		if err != nil {
			return err
		}
		for _, p := range pieces {
			if p.Status == "DISPATCHED" {
				return inventory.New(inventory.KindCannotRevert, "cut piece %s from this transaction has already been dispatched", p.ID)
			}
		}
		for _, p := range pieces {
			if p.Status != "IN_STOCK" {
				continue
			}
			if err := e.queries.SetCutPieceStatus(ctx, tx, p.ID, "SOLD_OUT", uuid.NullUUID{}); err != nil {
				return err
			}
			if err := e.queries.SoftDeleteCutPiece(ctx, tx, p.ID, txnID); err != nil {
				return err
			}
		}

		if txn.FromPieceID.Valid {
			subsumed, err := e.queries.GetCutPiece(ctx, tx, txn.FromPieceID.UUID)
			if err != nil {
				return inventory.Wrap(inventory.KindNotFound, err, "subsumed piece %s not found", txn.FromPieceID.UUID)
			}
			if subsumed.Status != "DISPATCHED" {
				return inventory.New(inventory.KindCannotRevert, "subsumed piece %s was not in its post-recut state", subsumed.ID)
			}
			if err := e.queries.SetCutPieceStatus(ctx, tx, subsumed.ID, "IN_STOCK", uuid.NullUUID{}); err != nil {
				return err
			}
		} else if txn.FromStockID.Valid {
			source, err := e.queries.LockStockAny(ctx, tx, txn.FromStockID.UUID, db.LockForUpdate)
			if err != nil {
				return inventory.Wrap(inventory.KindNotFound, err, "source stock %s not found", txn.FromStockID.UUID)
			}
			if err := applyStockDelta(ctx, tx, e.queries, *source, source.Quantity+1, "IN_STOCK"); err != nil {
				return err
			}
			if err := clearBatchDeletedAt(ctx, tx, source.BatchID); err != nil {
				return err
			}
		}

		if txn.ToStockID.Valid {
			if err := deriveAndApply(ctx, tx, e.queries, txn.ToStockID.UUID); err != nil {
				return err
			}
		}

		return e.queries.MarkTransactionReverted(ctx, tx, txnID, revertedBy)
	})
	if err != nil {
		return err
	}
	e.publishRevert(string(inventory.TxnCutRoll), []byte(txnID.String()))
	return nil
}

// ---- Revert SPLIT_BUNDLE -----------------------------------------------

func (e *Engine) RevertSplitBundle(ctx context.Context, txnID, revertedBy uuid.UUID) error {
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txn, err := loadRevertibleTxn(ctx, tx, e.queries, txnID, inventory.TxnSplitBundle)
		if err != nil {
			return err
		}

		groups, err := e.queries.ListSparePiecesByCreatorTxn(ctx, tx, txnID)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if g.Status != "IN_STOCK" {
				return inventory.New(inventory.KindCannotRevert, "spare piece group %s from this split has already moved", g.ID)
			}
		}
		for _, g := range groups {
			if err := e.queries.SetSparePieceStatus(ctx, tx, g.ID, g.PieceCount, "SOLD_OUT", uuid.NullUUID{}); err != nil {
				return err
			}
			if err := e.queries.SoftDeleteSparePiece(ctx, tx, g.ID, txnID); err != nil {
				return err
			}
		}

		source, err := e.queries.LockStockAny(ctx, tx, txn.FromStockID.UUID, db.LockForUpdate)
		if err != nil {
			return inventory.Wrap(inventory.KindNotFound, err, "source bundle stock %s not found", txn.FromStockID.UUID)
		}
		if err := applyStockDelta(ctx, tx, e.queries, *source, source.Quantity+1, "IN_STOCK"); err != nil {
			return err
		}
		if err := clearBatchDeletedAt(ctx, tx, source.BatchID); err != nil {
			return err
		}

		if txn.ToStockID.Valid {
			if err := deriveAndApply(ctx, tx, e.queries, txn.ToStockID.UUID); err != nil {
				return err
			}
			dest, err := e.queries.LockStockAny(ctx, tx, txn.ToStockID.UUID, db.LockForUpdate)
			if err != nil {
				return err
			}
			if dest.Quantity == 0 {
				near, err := createdNearTxn(ctx, tx, dest.ID, txn.CreatedAt)
				if err != nil {
					return err
				}
				if near {
					if err := e.queries.SoftDeleteStock(ctx, tx, dest.ID); err != nil {
						return err
					}
				}
			}
		}

		return e.queries.MarkTransactionReverted(ctx, tx, txnID, revertedBy)
	})
	if err != nil {
		return err
	}
	e.publishRevert(string(inventory.TxnSplitBundle), []byte(txnID.String()))
	return nil
}

// ---- Revert COMBINE_SPARES ----------------------------------------------

func (e *Engine) RevertCombineSpares(ctx context.Context, txnID, revertedBy uuid.UUID) error {
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txn, err := loadRevertibleTxn(ctx, tx, e.queries, txnID, inventory.TxnCombineSpares)
		if err != nil {
			return err
		}

		consumed, err := e.queries.ListSparePiecesByDeleterTxn(ctx, tx, txnID)
		if err != nil {
			return err
		}
		for _, g := range consumed {
			if err := e.queries.SetSparePieceStatus(ctx, tx, g.ID, g.PieceCount, "IN_STOCK", uuid.NullUUID{}); err != nil {
				return err
			}
			if err := e.queries.RestoreSparePiece(ctx, tx, g.ID); err != nil {
				return err
			}
		}

		remainders, err := e.queries.ListSparePiecesByCreatorTxn(ctx, tx, txnID)
		if err != nil {
			return err
		}
		for _, g := range remainders {
			if g.Status != "IN_STOCK" {
				return inventory.New(inventory.KindCannotRevert, "remainder spare piece group %s has already moved", g.ID)
			}
			if err := e.queries.SetSparePieceStatus(ctx, tx, g.ID, g.PieceCount, "SOLD_OUT", uuid.NullUUID{}); err != nil {
				return err
			}
			if err := e.queries.SoftDeleteSparePiece(ctx, tx, g.ID, txnID); err != nil {
				return err
			}
		}

		if txn.FromStockID.Valid {
			if _, err := tx.ExecContext(ctx, `UPDATE inventory_stock SET deleted_at = NULL WHERE id = $1`, txn.FromStockID.UUID); err != nil {
				return err
			}
			if err := deriveAndApply(ctx, tx, e.queries, txn.FromStockID.UUID); err != nil {
				return err
			}
		}

		if txn.ToStockID.Valid {
			dest, err := e.queries.LockStockAny(ctx, tx, txn.ToStockID.UUID, db.LockForUpdate)
			if err != nil {
				return inventory.Wrap(inventory.KindNotFound, err, "destination bundle stock %s not found", txn.ToStockID.UUID)
			}
			bundles := int(txn.ToQuantity.Int64)
			near, err := createdNearTxn(ctx, tx, dest.ID, txn.CreatedAt)
			if err != nil {
				return err
			}
			if near && dest.Quantity == bundles {
				if err := e.queries.SoftDeleteStock(ctx, tx, dest.ID); err != nil {
					return err
				}
			} else {
				if dest.Quantity < bundles {
					return inventory.New(inventory.KindCannotRevert, "bundle stock %s has fewer bundles than this combine created", dest.ID)
				}
				newQty := dest.Quantity - bundles
				status := "IN_STOCK"
				if newQty == 0 {
					status = "SOLD_OUT"
				}
				if err := applyStockDelta(ctx, tx, e.queries, *dest, newQty, status); err != nil {
					return err
				}
			}
			if err := clearBatchDeletedAt(ctx, tx, dest.BatchID); err != nil {
				return err
			}
		}

		return e.queries.MarkTransactionReverted(ctx, tx, txnID, revertedBy)
	})
	if err != nil {
		return err
	}
	e.publishRevert(string(inventory.TxnCombineSpares), []byte(txnID.String()))
	return nil
}

// ---- Revert DISPATCH -----------------------------------------------------

func (e *Engine) RevertDispatch(ctx context.Context, dispatchID, revertedBy uuid.UUID) error {
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		dispatch, err := e.queries.GetDispatch(ctx, tx, dispatchID)
		if err != nil {
			return inventory.Wrap(inventory.KindNotFound, err, "dispatch %s not found", dispatchID)
		}
		if dispatch.Status == "REVERTED" {
			return inventory.New(inventory.KindAlreadyReverted, "dispatch %s already reverted", dispatchID)
		}

		items, err := e.queries.ListDispatchItems(ctx, tx, dispatchID)
		if err != nil {
			return err
		}

		affectedStocks := map[uuid.UUID]struct{}{}
		affectedBatches := map[uuid.UUID]struct{}{}

		for _, item := range items {
			switch inventory.DispatchItemType(item.ItemType) {
			case inventory.ItemFullRoll, inventory.ItemBundle:
				stock, err := e.queries.LockStockAny(ctx, tx, item.StockID, db.LockForUpdate)
				if err != nil {
					return inventory.Wrap(inventory.KindNotFound, err, "stock %s not found", item.StockID)
				}
				if err := applyStockDelta(ctx, tx, e.queries, *stock, stock.Quantity+item.Quantity, "IN_STOCK"); err != nil {
					return err
				}
				affectedBatches[stock.BatchID] = struct{}{}

			case inventory.ItemCutPiece, inventory.ItemCutRoll:
				pieces, err := e.queries.ListCutPiecesByDispatch(ctx, tx, dispatchID)
				if err != nil {
					return err
				}
				for _, p := range pieces {
					if p.StockID != item.StockID {
						continue
					}
					if p.Status != "DISPATCHED" {
						return inventory.New(inventory.KindCannotRevert, "cut piece %s is no longer in its dispatched state", p.ID)
					}
					if err := e.queries.SetCutPieceStatus(ctx, tx, p.ID, "IN_STOCK", uuid.NullUUID{}); err != nil {
						return err
					}
				}
				affectedStocks[item.StockID] = struct{}{}

			case inventory.ItemSparePieces:
				groups, err := e.queries.ListSparePiecesByDispatch(ctx, tx, dispatchID)
				if err != nil {
					return err
				}
				for _, g := range groups {
					if g.StockID != item.StockID {
						continue
					}
					if g.Status != "DISPATCHED" {
						return inventory.New(inventory.KindCannotRevert, "spare piece group %s is no longer in its dispatched state", g.ID)
					}
					if err := e.queries.SetSparePieceStatus(ctx, tx, g.ID, g.PieceCount, "IN_STOCK", uuid.NullUUID{}); err != nil {
						return err
					}
				}
				affectedStocks[item.StockID] = struct{}{}
			}
		}

		for stockID := range affectedStocks {
			if err := deriveAndApply(ctx, tx, e.queries, stockID); err != nil {
				return err
			}
			stock, err := e.queries.LockStock(ctx, tx, stockID, db.LockForUpdate)
			if err != nil {
				return err
			}
			affectedBatches[stock.BatchID] = struct{}{}
		}
		for batchID := range affectedBatches {
			if err := clearBatchDeletedAt(ctx, tx, batchID); err != nil {
				return err
			}
			if err := e.queries.RecomputeBatchQuantity(ctx, tx, batchID); err != nil {
				return err
			}
		}

		return e.queries.MarkDispatchReverted(ctx, tx, dispatchID, revertedBy)
	})
	if err != nil {
		return err
	}
	e.publishRevert(string(inventory.TxnDispatch), []byte(dispatchID.String()))
	return nil
}

// ---- Revert RETURN --------------------------------------------------------

// RevertReturn implements §4.9's Revert RETURN. CreateReturn mints one
// batch exclusively per return item (§4.7), so sweeping every stock row
// (and its pieces) owned by that batch finds everything the return
// created without a separate reverse index.
func (e *Engine) RevertReturn(ctx context.Context, returnID, revertedBy uuid.UUID) error {
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ret, err := e.queries.GetReturn(ctx, tx, returnID)
		if err != nil {
			return inventory.Wrap(inventory.KindNotFound, err, "return %s not found", returnID)
		}
		if ret.Status == "REVERTED" {
			return inventory.New(inventory.KindAlreadyReverted, "return %s already reverted", returnID)
		}

		items, err := e.queries.ListReturnItems(ctx, tx, returnID)
		if err != nil {
			return err
		}

		for _, item := range items {
			stockIDs, err := e.queries.ListStockIDsByBatch(ctx, tx, item.BatchID)
			if err != nil {
				return err
			}
			for _, stockID := range stockIDs {
				cutPieces, err := e.queries.ListCutPiecesByOriginalStock(ctx, tx, stockID)
				if err != nil {
					return err
				}
				for _, p := range cutPieces {
					if p.Status == "DISPATCHED" {
						return inventory.New(inventory.KindCannotRevert, "cut piece %s from this return has already been dispatched", p.ID)
					}
					if err := e.queries.SoftDeleteCutPiece(ctx, tx, p.ID, returnID); err != nil {
						return err
					}
				}
				spareGroups, err := e.queries.ListSparePiecesByOriginalStock(ctx, tx, stockID)
				if err != nil {
					return err
				}
				for _, g := range spareGroups {
					if g.Status == "DISPATCHED" {
						return inventory.New(inventory.KindCannotRevert, "spare piece group %s from this return has already been dispatched", g.ID)
					}
					if err := e.queries.SoftDeleteSparePiece(ctx, tx, g.ID, returnID); err != nil {
						return err
					}
				}
				if err := e.queries.SoftDeleteStock(ctx, tx, stockID); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE batches SET deleted_at = NOW() WHERE id = $1`, item.BatchID); err != nil {
				return err
			}
		}

		return e.queries.MarkReturnReverted(ctx, tx, returnID, revertedBy)
	})
	if err != nil {
		return err
	}
	e.publishRevert(string(inventory.TxnReturn), []byte(returnID.String()))
	return nil
}

// ---- Revert SCRAP ----------------------------------------------------------

func (e *Engine) RevertScrap(ctx context.Context, scrapID, revertedBy uuid.UUID) error {
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		scrap, err := e.queries.GetScrap(ctx, tx, scrapID)
		if err != nil {
			return inventory.Wrap(inventory.KindNotFound, err, "scrap %s not found", scrapID)
		}
		if scrap.Status == "CANCELLED" {
			return inventory.New(inventory.KindAlreadyReverted, "scrap %s already cancelled", scrapID)
		}

		items, err := e.queries.ListScrapItems(ctx, tx, scrapID)
		if err != nil {
			return err
		}

		for _, item := range items {
			switch item.ItemType {
			case string(inventory.StockFullRoll), string(inventory.StockBundle):
				stock, err := e.queries.LockStockAny(ctx, tx, item.StockID, db.LockForUpdate)
				if err != nil {
					return inventory.Wrap(inventory.KindNotFound, err, "stock %s not found", item.StockID)
				}
				if err := applyStockDelta(ctx, tx, e.queries, *stock, stock.Quantity+item.QuantityScrapped, "IN_STOCK"); err != nil {
					return err
				}
				if err := clearBatchDeletedAt(ctx, tx, stock.BatchID); err != nil {
					return err
				}

			case string(inventory.StockCutRoll):
				pieces, err := e.queries.ListScrapPieces(ctx, tx, item.ID)
				if err != nil {
					return err
				}
				for _, p := range pieces {
					if err := restoreScrappedCutPiece(ctx, tx, p.OriginalPieceID); err != nil {
						return err
					}
				}
				if err := deriveAndApply(ctx, tx, e.queries, item.StockID); err != nil {
					return err
				}

			case string(inventory.StockSpare):
				pieces, err := e.queries.ListScrapPieces(ctx, tx, item.ID)
				if err != nil {
					return err
				}
				for _, p := range pieces {
					row, err := lockSingleSparePiece(ctx, tx, p.OriginalPieceID, 0)
					if err != nil {
						return inventory.Wrap(inventory.KindCannotRevert, err, "spare piece group %s not available", p.OriginalPieceID)
					}
					if row.Status != "SCRAPPED" {
						return inventory.New(inventory.KindCannotRevert, "spare piece group %s is no longer scrapped", row.ID)
					}
					if err := e.queries.SetSparePieceStatus(ctx, tx, row.ID, row.PieceCount, "IN_STOCK", uuid.NullUUID{}); err != nil {
						return err
					}
				}
				if err := deriveAndApply(ctx, tx, e.queries, item.StockID); err != nil {
					return err
				}
			}
		}

		return e.queries.MarkScrapCancelled(ctx, tx, scrapID)
	})
	if err != nil {
		return err
	}
	e.publishRevert("SCRAP", []byte(scrapID.String()))
	return nil
}

// restoreScrappedCutPiece flips a single HdpeCutPiece back from SCRAPPED
// to IN_STOCK; there is no per-id setter shared with the dispatch/cut
// paths because scrapped pieces are never soft-deleted (scrap.go flips
// status only, matching lockAndScrapCutPiece).
func restoreScrappedCutPiece(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE hdpe_cut_pieces SET status = 'IN_STOCK', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'SCRAPPED'`, id)
	if err != nil {
		return fmt.Errorf("restore scrapped cut piece: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return inventory.New(inventory.KindCannotRevert, "cut piece %s is no longer scrapped", id)
	}
	return nil
}

// loadRevertibleTxn fetches a transaction, enforcing the type match,
// already-reverted, and not-found checks every revert procedure shares.
func loadRevertibleTxn(ctx context.Context, tx *sql.Tx, q *db.Queries, txnID uuid.UUID, want inventory.TransactionType) (*db.TransactionRow, error) {
	txn, err := q.GetTransaction(ctx, tx, txnID)
	if err != nil {
		return nil, inventory.Wrap(inventory.KindNotFound, err, "transaction %s not found", txnID)
	}
	if inventory.TransactionType(txn.TransactionType) != want {
		return nil, inventory.New(inventory.KindCannotRevert, "transaction %s is not a %s", txnID, want)
	}
	if txn.RevertedAt.Valid {
		return nil, inventory.New(inventory.KindAlreadyReverted, "transaction %s already reverted", txnID)
	}
	return txn, nil
}

// publishRevert notifies collaborators a transaction was undone (§6.3).
func (e *Engine) publishRevert(kind string, payload []byte) {
	e.publish(queue.RevertSubject(kind), payload)
}
