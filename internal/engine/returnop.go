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

// ReturnRollInput describes one returned roll's length (§4.7).
type ReturnRollInput struct {
	LengthMeters decimal.Decimal
}

// ReturnBundleInput describes one returned bundle group (§4.7).
type ReturnBundleInput struct {
	BundleSize   int
	PieceLength  decimal.Decimal
	Quantity     int
}

// ReturnItemInput is one line of a CreateReturn call.
type ReturnItemInput struct {
	ProductTypeID  uuid.UUID
	BrandID        uuid.UUID
	Parameters     map[string]string
	ItemType       inventory.StockType
	Quantity       int
	Rolls          []ReturnRollInput
	Bundles        []ReturnBundleInput
	PieceCount     int
	PieceLengthM   decimal.Decimal
	IsSprinkler    bool // selects SPARE_PIECES piece shape (group vs per-piece HDPE)
}

type CreateReturnInput struct {
	CustomerID uuid.UUID
	ReturnDate sql.NullTime
	Notes      string
	Items      []ReturnItemInput
	CreatedBy  uuid.UUID
}

type CreateReturnResult struct {
	ReturnID       uuid.UUID
	ReturnNumber   string
	TransactionIDs []uuid.UUID
}

// VariantResolver resolves a (product_type, brand, parameters) triple
// to a ProductVariant row, normalizing parameters per §4.7 step 2.
// The caller supplies it (httpapi passes findOrCreateVariant) since
// ProductVariant is an external entity the core only references.
type VariantResolver func(ctx context.Context, tx *sql.Tx, productTypeID, brandID uuid.UUID, parameters map[string]string) (uuid.UUID, error)

// CreateReturn implements §4.7. resolveVariant is injected so the engine
// never owns ProductVariant creation logic directly — see SPEC_FULL.md §2.
func (e *Engine) CreateReturn(ctx context.Context, in CreateReturnInput, resolveVariant VariantResolver) (*CreateReturnResult, error) {
	if len(in.Items) == 0 {
		return nil, inventory.New(inventory.KindInvalidReturn, "return requires at least one item")
	}

	var result *CreateReturnResult
	err := retryOnConcurrent(ctx, e.limiter, "return-sequence", 5, func() error {
		return e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			year := inventory.CurrentYear()
			last, err := e.queries.LastReturnNumberForYear(ctx, tx, inventory.ReturnPrefix, year)
			if err != nil {
				return err
			}
			returnNumber := inventory.NextReturnNumber(year, last)

			returnID := newID()
			if err := e.queries.CreateReturn(ctx, tx, db.CreateReturnParams{
				ID: returnID, ReturnNumber: returnNumber, CustomerID: in.CustomerID,
				ReturnDate: in.ReturnDate, Notes: nullString(in.Notes), CreatedBy: in.CreatedBy,
			}); err != nil {
				return inventory.Wrap(inventory.KindConcurrent, err, "return_number %s collided", returnNumber)
			}

			var txnIDs []uuid.UUID
			for idx, item := range in.Items {
				variantID, err := resolveVariant(ctx, tx, item.ProductTypeID, item.BrandID, item.Parameters)
				if err != nil {
					return inventory.AtItem(inventory.KindInvalidReturn, idx, "resolve variant: %s", err.Error())
				}

				batchID := newID()
				batchCode := inventory.ReturnBatchCode(returnNumber, idx+1)
				batchNo, err := e.queries.LastBatchNoForYear(ctx, tx, year)
				if err != nil {
					return err
				}
				if err := e.queries.CreateBatch(ctx, tx, db.CreateBatchParams{
					ID: batchID, BatchCode: batchCode, BatchNo: batchNo + 1 + idx,
					ProductVariantID: variantID, ProductionDate: in.ReturnDate,
					InitialQuantity: 1, CreatedBy: in.CreatedBy,
				}); err != nil {
					return err
				}

				txnID, totalQty, err := e.createReturnItemStock(ctx, tx, returnID, batchID, variantID, item, in.CreatedBy)
				if err != nil {
					return inventory.AtItem(inventory.KindInvalidReturn, idx, "%s", err.Error())
				}
				txnIDs = append(txnIDs, txnID)

				if _, err := tx.ExecContext(ctx,
					`UPDATE batches SET initial_quantity = $2, current_quantity = $2 WHERE id = $1`,
					batchID, totalQty); err != nil {
					return err
				}
			}

			result = &CreateReturnResult{ReturnID: returnID, ReturnNumber: returnNumber, TransactionIDs: txnIDs}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject(string(inventory.TxnReturn)), []byte(result.ReturnNumber))
	return result, nil
}

func (e *Engine) createReturnItemStock(ctx context.Context, tx *sql.Tx, returnID, batchID, variantID uuid.UUID, item ReturnItemInput, createdBy uuid.UUID) (uuid.UUID, int, error) {
	q := e.queries
	txnID := newID()
	returnItemID := newID()
	totalQty := 0
	var notesBreakdown string

	// return_items.quantity is filled in below once the shape-specific
	// stock has been created; the insert here just reserves the row so
	// return_rolls/return_bundles have a parent to reference.
	if err := q.CreateReturnItem(ctx, tx, db.CreateReturnItemParams{
		ID: returnItemID, ReturnID: returnID, ProductVariantID: variantID, BatchID: batchID,
		ItemType: string(item.ItemType), Quantity: totalQty,
		PieceCount:  sql.NullInt64{Int64: int64(item.PieceCount), Valid: item.PieceCount > 0},
		PieceLength: decimalToSQL(item.PieceLengthM),
	}); err != nil {
		return uuid.Nil, 0, err
	}

	switch item.ItemType {
	case inventory.StockFullRoll:
		byLength := map[string]int{}
		for _, roll := range item.Rolls {
			byLength[roll.LengthMeters.String()]++
		}
		total := 0
		for lenStr, count := range byLength {
			stockID := newID()
			if err := q.CreateStock(ctx, tx, db.CreateStockParams{
				ID: stockID, BatchID: batchID, ProductVariantID: variantID,
				StockType: string(inventory.StockFullRoll), Quantity: count,
				LengthPerUnit: sql.NullString{String: lenStr, Valid: true},
			}); err != nil {
				return uuid.Nil, 0, err
			}
			if err := q.CreateReturnRoll(ctx, tx, newID(), returnItemID, stockID, lenStr); err != nil {
				return uuid.Nil, 0, err
			}
			total += count
		}
		totalQty = total
		notesBreakdown = fmt.Sprintf("%dR", totalQty)

	case inventory.StockCutRoll:
		byLength := map[string][]decimal.Decimal{}
		for _, roll := range item.Rolls {
			k := roll.LengthMeters.String()
			byLength[k] = append(byLength[k], roll.LengthMeters)
		}
		total := 0
		for _, lengths := range byLength {
			stockID := newID()
			if err := q.CreateStock(ctx, tx, db.CreateStockParams{
				ID: stockID, BatchID: batchID, ProductVariantID: variantID,
				StockType: string(inventory.StockCutRoll), Quantity: 0,
			}); err != nil {
				return uuid.Nil, 0, err
			}
			for _, length := range lengths {
				if err := q.CreateCutPiece(ctx, tx, db.CreateCutPieceParams{
					ID: newID(), StockID: stockID, LengthMeters: length.String(),
					CreatedByTransactionID: txnID, OriginalStockID: stockID,
				}); err != nil {
					return uuid.Nil, 0, err
				}
			}
			if err := deriveAndApply(ctx, tx, q, stockID); err != nil {
				return uuid.Nil, 0, err
			}
			total += len(lengths)
		}
		totalQty = total
		notesBreakdown = fmt.Sprintf("%dC", totalQty)

	case inventory.StockBundle:
		total := 0
		for _, bundle := range item.Bundles {
			stockID := newID()
			if err := q.CreateStock(ctx, tx, db.CreateStockParams{
				ID: stockID, BatchID: batchID, ProductVariantID: variantID,
				StockType: string(inventory.StockBundle), Quantity: bundle.Quantity,
				PiecesPerBundle: sql.NullInt64{Int64: int64(bundle.BundleSize), Valid: true},
				PieceLength:     decimalToSQL(bundle.PieceLength),
			}); err != nil {
				return uuid.Nil, 0, err
			}
			if err := q.CreateReturnBundle(ctx, tx, newID(), returnItemID, stockID,
				bundle.BundleSize, bundle.PieceLength.String(), bundle.Quantity); err != nil {
				return uuid.Nil, 0, err
			}
			total += bundle.Quantity
		}
		totalQty = total
		notesBreakdown = fmt.Sprintf("%dB", totalQty)

	case inventory.StockSpare:
		stockID := newID()
		if err := q.CreateStock(ctx, tx, db.CreateStockParams{
			ID: stockID, BatchID: batchID, ProductVariantID: variantID,
			StockType: string(inventory.StockSpare), Quantity: 0,
			PieceLength: decimalToSQL(item.PieceLengthM),
		}); err != nil {
			return uuid.Nil, 0, err
		}
		if item.IsSprinkler {
			if err := q.CreateSparePiece(ctx, tx, db.CreateSparePieceParams{
				ID: newID(), StockID: stockID, PieceCount: item.PieceCount,
				PieceLength: decimalToSQL(item.PieceLengthM),
				CreatedByTransactionID: txnID, OriginalStockID: stockID,
			}); err != nil {
				return uuid.Nil, 0, err
			}
		} else {
			for i := 0; i < item.PieceCount; i++ {
				if err := q.CreateCutPiece(ctx, tx, db.CreateCutPieceParams{
					ID: newID(), StockID: stockID, LengthMeters: item.PieceLengthM.String(),
					CreatedByTransactionID: txnID, OriginalStockID: stockID,
				}); err != nil {
					return uuid.Nil, 0, err
				}
			}
		}
		if err := deriveAndApply(ctx, tx, q, stockID); err != nil {
			return uuid.Nil, 0, err
		}
		totalQty = item.PieceCount
		notesBreakdown = fmt.Sprintf("%dS", totalQty)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE return_items SET quantity = $2 WHERE id = $1`, returnItemID, totalQty); err != nil {
		return uuid.Nil, 0, err
	}

	if err := q.CreateTransaction(ctx, tx, db.CreateTransactionParams{
		ID: txnID, TransactionType: string(inventory.TxnReturn),
		ToQuantity: sql.NullInt64{Int64: int64(totalQty), Valid: true},
		BatchID:    uuid.NullUUID{UUID: batchID, Valid: true},
		Notes:      nullString(notesBreakdown),
		CreatedBy:  createdBy,
	}); err != nil {
		return uuid.Nil, 0, err
	}

	return txnID, totalQty, nil
}
