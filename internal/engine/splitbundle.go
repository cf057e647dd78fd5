package engine

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/inventory"
	"github.com/pinggolf/inventory-engine/internal/queue"
)

type SplitBundleRequest struct {
	SourceStockID uuid.UUID
	PiecesToSplit []int
	CreatedBy     uuid.UUID
}

type SplitBundleResult struct {
	TransactionID uuid.UUID
	SpareStockID  uuid.UUID
}

// SplitBundle implements §4.4. Exactly one SPLIT_BUNDLE transaction row is
// written — the source's original implementation wrote two (an early
// partial insert, then a full row at the end); here the single row is
// inserted once the destination SPARE stock is known, before the spare
// groups that reference it, and is not updated afterwards.
func (e *Engine) SplitBundle(ctx context.Context, in SplitBundleRequest) (*SplitBundleResult, error) {
	if len(in.PiecesToSplit) == 0 {
		return nil, inventory.New(inventory.KindInvalidSplit, "pieces_to_split must be non-empty")
	}
	for _, c := range in.PiecesToSplit {
		if c <= 0 {
			return nil, inventory.New(inventory.KindInvalidSplit, "each piece count must be > 0")
		}
	}

	var result *SplitBundleResult
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		source, err := e.queries.LockStock(ctx, tx, in.SourceStockID, db.LockForUpdate)
		if err != nil {
			return inventory.Wrap(inventory.KindNotFound, err, "source stock %s not found", in.SourceStockID)
		}
		if source.StockType != string(inventory.StockBundle) {
			return inventory.New(inventory.KindInvalidSplit, "source stock must be BUNDLE")
		}
		if source.Quantity < 1 {
			return inventory.New(inventory.KindInvalidSplit, "source bundle has no quantity")
		}

		var piecesPerBundle int
		var pieceLength sql.NullString
		if err := tx.QueryRowContext(ctx,
			`SELECT pieces_per_bundle, piece_length FROM inventory_stock WHERE id = $1`,
			source.ID).Scan(&piecesPerBundle, &pieceLength); err != nil {
			return err
		}

		requested := 0
		for _, c := range in.PiecesToSplit {
			requested += c
		}
		if requested > piecesPerBundle {
			return inventory.New(inventory.KindInvalidSplit, "sum of pieces_to_split %d exceeds pieces_per_bundle %d", requested, piecesPerBundle)
		}

		newQty := source.Quantity - 1
		status := "IN_STOCK"
		if newQty == 0 {
			status = "SOLD_OUT"
		}
		if err := applyStockDelta(ctx, tx, e.queries, *source, newQty, status); err != nil {
			return err
		}

		spareStock, err := e.queries.FindOpenStock(ctx, tx, source.BatchID, string(inventory.StockSpare), pieceLength)
		if err != nil {
			return err
		}
		spareStockID := uuid.Nil
		if spareStock != nil {
			spareStockID = spareStock.ID
		} else {
			spareStockID = newID()
			if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
				ID: spareStockID, BatchID: source.BatchID, ProductVariantID: source.ProductVariantID,
				StockType: string(inventory.StockSpare), Quantity: 0, PieceLength: pieceLength,
				ParentStockID: uuid.NullUUID{UUID: source.ID, Valid: true},
			}); err != nil {
				return err
			}
		}

		txnID := newID()
		if err := e.queries.CreateTransaction(ctx, tx, db.CreateTransactionParams{
			ID: txnID, TransactionType: string(inventory.TxnSplitBundle),
			FromStockID: uuid.NullUUID{UUID: source.ID, Valid: true},
			ToStockID:   uuid.NullUUID{UUID: spareStockID, Valid: true},
			BatchID:     uuid.NullUUID{UUID: source.BatchID, Valid: true},
			CreatedBy:   in.CreatedBy,
		}); err != nil {
			return err
		}

		for _, c := range in.PiecesToSplit {
			if err := e.queries.CreateSparePiece(ctx, tx, db.CreateSparePieceParams{
				ID: newID(), StockID: spareStockID, PieceCount: c, PieceLength: pieceLength,
				CreatedByTransactionID: txnID, OriginalStockID: spareStockID,
			}); err != nil {
				return err
			}
		}

		remainder := piecesPerBundle - requested
		if remainder > 0 {
			if err := e.queries.CreateSparePiece(ctx, tx, db.CreateSparePieceParams{
				ID: newID(), StockID: spareStockID, PieceCount: remainder, PieceLength: pieceLength,
				CreatedByTransactionID: txnID, OriginalStockID: spareStockID,
			}); err != nil {
				return err
			}
		}

		if err := deriveAndApply(ctx, tx, e.queries, spareStockID); err != nil {
			return err
		}

		result = &SplitBundleResult{TransactionID: txnID, SpareStockID: spareStockID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject(string(inventory.TxnSplitBundle)), []byte(result.TransactionID.String()))
	return result, nil
}
