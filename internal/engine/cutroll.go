package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/db"
	"github.com/pinggolf/inventory-engine/internal/inventory"
	"github.com/pinggolf/inventory-engine/internal/queue"
	"github.com/shopspring/decimal"
)

// CutRollRequest is named apart from production.go's CutRollInput (Shape B).
type CutRollRequest struct {
	SourceStockID uuid.UUID
	RecutPieceID  uuid.NullUUID // set when re-cutting an existing CUT_ROLL piece
	CutLengths    []decimal.Decimal
	CreatedBy     uuid.UUID
}

type CutRollResult struct {
	TransactionID uuid.UUID
	CutStockID    uuid.UUID
	PieceIDs      []uuid.UUID
}

// CutRoll implements §4.3.
func (e *Engine) CutRoll(ctx context.Context, in CutRollRequest) (*CutRollResult, error) {
	if len(in.CutLengths) == 0 {
		return nil, inventory.New(inventory.KindInvalidCut, "cut_lengths must be non-empty")
	}

	var result *CutRollResult
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		source, err := e.queries.LockStock(ctx, tx, in.SourceStockID, db.LockForUpdate)
		if err != nil {
			return inventory.Wrap(inventory.KindNotFound, err, "source stock %s not found", in.SourceStockID)
		}

		total := decimal.Zero
		for _, l := range in.CutLengths {
			total = total.Add(l)
		}

		var sourceLength decimal.Decimal
		switch source.StockType {
		case string(inventory.StockFullRoll):
			if source.Quantity < 1 {
				return inventory.New(inventory.KindInvalidCut, "source roll has no quantity")
			}
			var lenStr sql.NullString
			if err := tx.QueryRowContext(ctx, `SELECT length_per_unit FROM inventory_stock WHERE id = $1`, source.ID).Scan(&lenStr); err != nil {
				return fmt.Errorf("read source length: %w", err)
			}
			sourceLength, _ = decimal.NewFromString(lenStr.String)
		case string(inventory.StockCutRoll):
			if !in.RecutPieceID.Valid {
				return inventory.New(inventory.KindInvalidCut, "re-cutting a CUT_ROLL requires piece_id")
			}
			var lenStr string
			if err := tx.QueryRowContext(ctx, `SELECT length_meters FROM hdpe_cut_pieces WHERE id = $1 AND status = 'IN_STOCK' FOR UPDATE`, in.RecutPieceID.UUID).Scan(&lenStr); err != nil {
				return inventory.Wrap(inventory.KindInvalidCut, err, "source piece not available")
			}
			sourceLength, _ = decimal.NewFromString(lenStr)
		default:
			return inventory.New(inventory.KindInvalidCut, "source stock must be FULL_ROLL or CUT_ROLL")
		}

		if total.GreaterThan(sourceLength) {
			return inventory.New(inventory.KindInvalidCut, "sum of cut_lengths %s exceeds source length %s", total, sourceLength)
		}

		switch source.StockType {
		case string(inventory.StockFullRoll):
			newQty := source.Quantity - 1
			status := "IN_STOCK"
			if newQty == 0 {
				status = "SOLD_OUT"
			}
			if err := applyStockDelta(ctx, tx, e.queries, *source, newQty, status); err != nil {
				return err
			}
		case string(inventory.StockCutRoll):
			if err := e.queries.SetCutPieceStatus(ctx, tx, in.RecutPieceID.UUID, "DISPATCHED", uuid.NullUUID{}); err != nil {
				return err
			}
		}

		cutStock, err := e.queries.FindOpenStock(ctx, tx, source.BatchID, string(inventory.StockCutRoll), sql.NullString{})
		if err != nil {
			return err
		}
		cutStockID := uuid.Nil
		if cutStock != nil {
			cutStockID = cutStock.ID
		} else {
			cutStockID = newID()
			if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
				ID: cutStockID, BatchID: source.BatchID, ProductVariantID: source.ProductVariantID,
				StockType: string(inventory.StockCutRoll), Quantity: 0,
				ParentStockID: uuid.NullUUID{UUID: source.ID, Valid: true},
			}); err != nil {
				return err
			}
		}

		txnID := newID()
		if err := e.queries.CreateTransaction(ctx, tx, db.CreateTransactionParams{
			ID: txnID, TransactionType: string(inventory.TxnCutRoll),
			FromStockID: uuid.NullUUID{UUID: source.ID, Valid: true},
			FromPieceID: in.RecutPieceID,
			ToStockID:   uuid.NullUUID{UUID: cutStockID, Valid: true},
			BatchID:     uuid.NullUUID{UUID: source.BatchID, Valid: true},
			CreatedBy:   in.CreatedBy,
		}); err != nil {
			return err
		}

		pieceIDs := make([]uuid.UUID, 0, len(in.CutLengths)+1)
		details := make([]inventory.CutPieceDetail, 0, len(in.CutLengths)+1)
		for _, length := range in.CutLengths {
			pieceID := newID()
			if err := e.queries.CreateCutPiece(ctx, tx, db.CreateCutPieceParams{
				ID: pieceID, StockID: cutStockID, LengthMeters: length.String(),
				CreatedByTransactionID: txnID, OriginalStockID: cutStockID,
			}); err != nil {
				return err
			}
			pieceIDs = append(pieceIDs, pieceID)
			details = append(details, inventory.CutPieceDetail{Length: length, PieceID: pieceID})
		}

		remainder := sourceLength.Sub(total)
		if remainder.IsPositive() {
			pieceID := newID()
			if err := e.queries.CreateCutPiece(ctx, tx, db.CreateCutPieceParams{
				ID: pieceID, StockID: cutStockID, LengthMeters: remainder.String(),
				CreatedByTransactionID: txnID, OriginalStockID: cutStockID,
			}); err != nil {
				return err
			}
			pieceIDs = append(pieceIDs, pieceID)
			details = append(details, inventory.CutPieceDetail{Length: remainder, PieceID: pieceID})
		}

		detailsJSON, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal cut piece details: %w", err)
		}
		if err := e.queries.UpdateTransactionCutPieceDetails(ctx, tx, txnID, detailsJSON); err != nil {
			return err
		}

		if err := deriveAndApply(ctx, tx, e.queries, cutStockID); err != nil {
			return err
		}

		result = &CutRollResult{TransactionID: txnID, CutStockID: cutStockID, PieceIDs: pieceIDs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject(string(inventory.TxnCutRoll)), []byte(result.TransactionID.String()))
	return result, nil
}
