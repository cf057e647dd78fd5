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

// RollInput is Shape A: standard rolls (§4.2).
type RollInput struct {
	NumberOfRolls  int
	LengthPerRoll  decimal.Decimal
}

// CutRollInput is Shape B: pre-cut HDPE lengths produced directly (§4.2).
type CutRollInput struct {
	Lengths []decimal.Decimal
}

// BundleInput is Shape C: sprinkler bundles plus optional spare groups (§4.2).
type BundleInput struct {
	NumberOfBundles  int
	BundleSize       int
	PieceLengthM     decimal.Decimal
	SpareGroups      []int // piece_count per group
}

// ProduceBatchInput is the full request for §4.2 ProduceBatch.
type ProduceBatchInput struct {
	ProductTypeTag   string // "HDPE Pipe" | "Sprinkler Pipe"
	ProductTypeID    uuid.UUID
	BrandID          uuid.UUID
	ProductVariantID uuid.UUID
	Parameters       map[string]string
	ProductionDate   sql.NullTime
	BatchCode        string // optional, auto-generated if empty
	BatchNo          int    // optional, auto-assigned if zero
	WeightPerMeter   decimal.NullDecimal
	Notes            string
	AttachmentRef    string
	CreatedBy        uuid.UUID

	RollShape   *RollInput
	CutShape    *CutRollInput
	BundleShape *BundleInput
}

type ProduceBatchResult struct {
	BatchID   uuid.UUID
	BatchCode string
}

// ProduceBatch implements §4.2: exactly one of RollShape/CutShape/BundleShape
// must be set, matching the product category (HDPE takes Roll or Cut,
// Sprinkler takes Bundle).
func (e *Engine) ProduceBatch(ctx context.Context, in ProduceBatchInput) (*ProduceBatchResult, error) {
	shapes := 0
	if in.RollShape != nil {
		shapes++
	}
	if in.CutShape != nil {
		shapes++
	}
	if in.BundleShape != nil {
		shapes++
	}
	if shapes != 1 {
		return nil, inventory.New(inventory.KindInvalidProduction, "exactly one production shape must be supplied")
	}
	if (in.RollShape != nil || in.CutShape != nil) && in.ProductTypeTag != "HDPE Pipe" {
		return nil, inventory.New(inventory.KindInvalidProduction, "roll/cut shapes require an HDPE product type")
	}
	if in.BundleShape != nil && in.ProductTypeTag != "Sprinkler Pipe" {
		return nil, inventory.New(inventory.KindInvalidProduction, "bundle shape requires a Sprinkler product type")
	}

	var result *ProduceBatchResult
	err := e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		batchID := newID()
		year := inventory.CurrentYear()

		batchCode := in.BatchCode
		batchNo := in.BatchNo
		if batchNo == 0 {
			lastNo, err := e.queries.LastBatchNoForYear(ctx, tx, year)
			if err != nil {
				return err
			}
			batchNo = lastNo + 1
		}
		if batchCode == "" {
			batchCode = inventory.BatchCode(in.ProductTypeTag, in.BrandID.String(), in.Parameters, year, batchNo)
		}

		exists, err := e.queries.BatchExists(ctx, tx, batchCode, batchNo)
		if err != nil {
			return err
		}
		if exists {
			return inventory.New(inventory.KindDuplicateBatchCode, "batch_code %q or batch_no %d already exists", batchCode, batchNo)
		}

		txnID := newID()
		snapshot := inventory.ProductionSnapshot{}
		totalQuantity := 0
		var cutDetailsJSON json.RawMessage

		if err := e.queries.CreateBatch(ctx, tx, db.CreateBatchParams{
			ID: batchID, BatchCode: batchCode, BatchNo: batchNo,
			ProductVariantID: in.ProductVariantID, ProductionDate: in.ProductionDate,
			InitialQuantity: 1, // placeholder, corrected below once totalQuantity is known
			WeightPerMeter:  nullDecimalToSQL(in.WeightPerMeter),
			Notes:           nullString(in.Notes), AttachmentRef: nullString(in.AttachmentRef),
			CreatedBy: in.CreatedBy,
		}); err != nil {
			return err
		}

		switch {
		case in.RollShape != nil:
			stockID := newID()
			if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
				ID: stockID, BatchID: batchID, ProductVariantID: in.ProductVariantID,
				StockType: string(inventory.StockFullRoll), Quantity: in.RollShape.NumberOfRolls,
				LengthPerUnit: decimalToSQL(in.RollShape.LengthPerRoll),
			}); err != nil {
				return err
			}
			totalQuantity = in.RollShape.NumberOfRolls
			lpu := in.RollShape.LengthPerRoll
			snapshot.Stocks = append(snapshot.Stocks, inventory.ProductionSnapshotStock{
				StockType: inventory.StockFullRoll, Quantity: in.RollShape.NumberOfRolls, LengthPerUnit: &lpu,
			})

		case in.CutShape != nil:
			if len(in.CutShape.Lengths) == 0 {
				return inventory.New(inventory.KindInvalidProduction, "cut shape requires at least one length")
			}
			stockID := newID()
			if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
				ID: stockID, BatchID: batchID, ProductVariantID: in.ProductVariantID,
				StockType: string(inventory.StockCutRoll), Quantity: 0,
			}); err != nil {
				return err
			}
			details := make([]inventory.CutPieceDetail, 0, len(in.CutShape.Lengths))
			for _, length := range in.CutShape.Lengths {
				pieceID := newID()
				if err := e.queries.CreateCutPiece(ctx, tx, db.CreateCutPieceParams{
					ID: pieceID, StockID: stockID, LengthMeters: length.String(),
					CreatedByTransactionID: txnID, OriginalStockID: stockID,
				}); err != nil {
					return err
				}
				details = append(details, inventory.CutPieceDetail{Length: length, PieceID: pieceID})
			}
			if err := deriveAndApply(ctx, tx, e.queries, stockID); err != nil {
				return err
			}
			totalQuantity = len(in.CutShape.Lengths)
			cutDetailsJSON, _ = json.Marshal(details)
			snapshot.Stocks = append(snapshot.Stocks, inventory.ProductionSnapshotStock{
				StockType: inventory.StockCutRoll, Quantity: totalQuantity, PieceLengths: in.CutShape.Lengths,
			})

		case in.BundleShape != nil:
			bs := in.BundleShape
			bundleStockID := newID()
			pieceLen := decimalToSQL(bs.PieceLengthM)
			if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
				ID: bundleStockID, BatchID: batchID, ProductVariantID: in.ProductVariantID,
				StockType: string(inventory.StockBundle), Quantity: bs.NumberOfBundles,
				PiecesPerBundle: sql.NullInt64{Int64: int64(bs.BundleSize), Valid: true},
				PieceLength:     pieceLen,
			}); err != nil {
				return err
			}
			// §4.2/§8: the batch's native unit for sprinkler is pieces, not
			// bundles — initial_quantity/current_quantity must equal the
			// physical piece total (NumberOfBundles × BundleSize), matching
			// Rule B's BUNDLE contribution (s.quantity × pieces_per_bundle).
			totalQuantity = bs.NumberOfBundles * bs.BundleSize
			pl := bs.PieceLengthM
			bsz := bs.BundleSize
			snapshot.Stocks = append(snapshot.Stocks, inventory.ProductionSnapshotStock{
				StockType: inventory.StockBundle, Quantity: bs.NumberOfBundles, PiecesPerBundle: &bsz, PieceLength: &pl,
			})

			if len(bs.SpareGroups) > 0 {
				spareStockID := newID()
				if err := e.queries.CreateStock(ctx, tx, db.CreateStockParams{
					ID: spareStockID, BatchID: batchID, ProductVariantID: in.ProductVariantID,
					StockType: string(inventory.StockSpare), Quantity: 0, PieceLength: pieceLen,
				}); err != nil {
					return err
				}
				for _, count := range bs.SpareGroups {
					if err := e.queries.CreateSparePiece(ctx, tx, db.CreateSparePieceParams{
						ID: newID(), StockID: spareStockID, PieceCount: count, PieceLength: pieceLen,
						CreatedByTransactionID: txnID, OriginalStockID: spareStockID,
					}); err != nil {
						return err
					}
					totalQuantity += count
				}
				if err := deriveAndApply(ctx, tx, e.queries, spareStockID); err != nil {
					return err
				}
				snapshot.Stocks = append(snapshot.Stocks, inventory.ProductionSnapshotStock{
					StockType: inventory.StockSpare, SpareGroups: bs.SpareGroups,
				})
			}
		}

		if totalQuantity <= 0 {
			return inventory.New(inventory.KindInvalidProduction, "quantity must be > 0")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE batches SET initial_quantity = $2, current_quantity = $2 WHERE id = $1`,
			batchID, totalQuantity); err != nil {
			return fmt.Errorf("set batch quantities: %w", err)
		}

		snapshotJSON, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("marshal production snapshot: %w", err)
		}
		if err := e.queries.CreateTransaction(ctx, tx, db.CreateTransactionParams{
			ID: txnID, TransactionType: string(inventory.TxnProduction),
			BatchID: uuid.NullUUID{UUID: batchID, Valid: true},
			ToQuantity: sql.NullInt64{Int64: int64(totalQuantity), Valid: true},
			CutPieceDetails: cutDetailsJSON,
			Snapshot: snapshotJSON, Notes: nullString(in.Notes), CreatedBy: in.CreatedBy,
		}); err != nil {
			return err
		}

		result = &ProduceBatchResult{BatchID: batchID, BatchCode: batchCode}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject(string(inventory.TxnProduction)), []byte(result.BatchCode))
	return result, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func decimalToSQL(d decimal.Decimal) sql.NullString {
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDecimalToSQL(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}
