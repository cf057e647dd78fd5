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

type ScrapItemInput struct {
	StockID         uuid.UUID
	QuantityToScrap int
	PieceIDs        []uuid.UUID
	ItemType        inventory.StockType
	EstimatedValue  sql.NullString
}

type CreateScrapInput struct {
	Reason    string
	ScrapDate sql.NullTime
	Items     []ScrapItemInput
	CreatedBy uuid.UUID
}

type CreateScrapResult struct {
	ScrapID       uuid.UUID
	ScrapNumber   string
	TotalQuantity int
}

// scrapCategory maps a stock_type to the product category it belongs to,
// used for the single-category rule (§4.8, §9: currently partially
// enforced upstream — here it's a hard check).
func scrapCategory(t inventory.StockType) string {
	switch t {
	case inventory.StockFullRoll, inventory.StockCutRoll:
		return "HDPE"
	default:
		return "SPRINKLER"
	}
}

// CreateScrap implements §4.8. All items must share one stock_type and one
// product category; mixed sets fail with MixedScrapForbidden before any
// mutation.
func (e *Engine) CreateScrap(ctx context.Context, in CreateScrapInput) (*CreateScrapResult, error) {
	if in.Reason == "" {
		return nil, inventory.New(inventory.KindInvalidScrap, "reason is required")
	}
	if len(in.Items) == 0 {
		return nil, inventory.New(inventory.KindInvalidScrap, "scrap requires at least one item")
	}
	firstType := in.Items[0].ItemType
	firstCategory := scrapCategory(firstType)
	for idx, item := range in.Items {
		if item.ItemType != firstType {
			return nil, inventory.AtItem(inventory.KindMixedScrapForbidden, idx, "item_type %s does not match %s", item.ItemType, firstType)
		}
		if scrapCategory(item.ItemType) != firstCategory {
			return nil, inventory.AtItem(inventory.KindMixedScrapForbidden, idx, "category %s does not match %s", scrapCategory(item.ItemType), firstCategory)
		}
		if item.QuantityToScrap <= 0 {
			return nil, inventory.AtItem(inventory.KindInvalidScrap, idx, "quantity_to_scrap must be > 0")
		}
	}

	var result *CreateScrapResult
	err := retryOnConcurrent(ctx, e.limiter, "scrap-sequence", 5, func() error {
		return e.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			year := inventory.CurrentYear()
			last, err := e.queries.LastScrapNumberForYear(ctx, tx, inventory.ScrapPrefix, year)
			if err != nil {
				return err
			}
			scrapNumber := inventory.NextScrapNumber(year, last)

			total := 0
			for _, item := range in.Items {
				total += item.QuantityToScrap
			}

			scrapID := newID()
			if err := e.queries.CreateScrap(ctx, tx, db.CreateScrapParams{
				ID: scrapID, ScrapNumber: scrapNumber, ScrapDate: in.ScrapDate,
				Reason: in.Reason, TotalQuantity: total, CreatedBy: in.CreatedBy,
			}); err != nil {
				return inventory.Wrap(inventory.KindConcurrent, err, "scrap_number %s collided", scrapNumber)
			}

			for idx, item := range in.Items {
				if err := e.scrapOneItem(ctx, tx, scrapID, item); err != nil {
					return inventory.AtItem(inventory.KindInvalidScrap, idx, "%s", err.Error())
				}
			}

			result = &CreateScrapResult{ScrapID: scrapID, ScrapNumber: scrapNumber, TotalQuantity: total}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.publish(queue.TransactionSubject("SCRAP"), []byte(result.ScrapNumber))
	return result, nil
}

func (e *Engine) scrapOneItem(ctx context.Context, tx *sql.Tx, scrapID uuid.UUID, item ScrapItemInput) error {
	q := e.queries
	stock, err := q.LockStock(ctx, tx, item.StockID, db.LockForUpdate)
	if err != nil {
		return fmt.Errorf("stock %s not found: %w", item.StockID, err)
	}

	scrapItemID := newID()
	pieceKind := "HDPE"
	if scrapCategory(item.ItemType) == "SPRINKLER" {
		pieceKind = "SPRINKLER"
	}

	switch item.ItemType {
	case inventory.StockFullRoll, inventory.StockBundle:
		if item.QuantityToScrap > stock.Quantity {
			return fmt.Errorf("quantity_to_scrap %d exceeds stock quantity %d", item.QuantityToScrap, stock.Quantity)
		}
		newQty := stock.Quantity - item.QuantityToScrap
		status := "IN_STOCK"
		if newQty == 0 {
			status = "SOLD_OUT"
		}
		if err := q.CreateScrapItem(ctx, tx, db.CreateScrapItemParams{
			ID: scrapItemID, ScrapID: scrapID, StockID: stock.ID, ItemType: string(item.ItemType),
			QuantityScrapped: item.QuantityToScrap, OriginalQuantity: stock.Quantity, OriginalStatus: stock.Status,
			EstimatedValue: item.EstimatedValue,
		}); err != nil {
			return err
		}
		return applyStockDelta(ctx, tx, q, *stock, newQty, status)

	case inventory.StockCutRoll:
		if err := q.CreateScrapItem(ctx, tx, db.CreateScrapItemParams{
			ID: scrapItemID, ScrapID: scrapID, StockID: stock.ID, ItemType: string(item.ItemType),
			QuantityScrapped: item.QuantityToScrap, OriginalQuantity: stock.Quantity, OriginalStatus: stock.Status,
			EstimatedValue: item.EstimatedValue,
		}); err != nil {
			return err
		}
		for _, pieceID := range item.PieceIDs {
			if err := lockAndScrapCutPiece(ctx, tx, pieceID); err != nil {
				return err
			}
			if err := q.CreateScrapPiece(ctx, tx, newID(), scrapItemID, pieceID, pieceKind); err != nil {
				return err
			}
		}
		return deriveAndApply(ctx, tx, q, stock.ID)

	case inventory.StockSpare:
		if err := q.CreateScrapItem(ctx, tx, db.CreateScrapItemParams{
			ID: scrapItemID, ScrapID: scrapID, StockID: stock.ID, ItemType: string(item.ItemType),
			QuantityScrapped: item.QuantityToScrap, OriginalQuantity: stock.Quantity, OriginalStatus: stock.Status,
			EstimatedValue: item.EstimatedValue,
		}); err != nil {
			return err
		}
		for _, groupID := range item.PieceIDs {
			row, err := lockSingleSparePiece(ctx, tx, groupID, e.cfg.ReservationTimeoutSeconds)
			if err != nil {
				return fmt.Errorf("spare piece group %s locked: %w", groupID, err)
			}
			if row.Status != "IN_STOCK" {
				return fmt.Errorf("spare piece group %s is not IN_STOCK", groupID)
			}
			if err := q.SetSparePieceStatus(ctx, tx, groupID, row.PieceCount, "SCRAPPED", uuid.NullUUID{}); err != nil {
				return err
			}
			if err := q.CreateScrapPiece(ctx, tx, newID(), scrapItemID, groupID, pieceKind); err != nil {
				return err
			}
		}
		return deriveAndApply(ctx, tx, q, stock.ID)

	default:
		return fmt.Errorf("unsupported scrap item_type %s", item.ItemType)
	}
}

// lockAndScrapCutPiece locks a single hdpe_cut_pieces row FOR UPDATE NOWAIT
// and flips it to SCRAPPED; there is no per-id accessor on db.Queries since
// every other caller locks pieces by stock, not by piece id.
func lockAndScrapCutPiece(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var status string
	if err := tx.QueryRowContext(ctx,
		`SELECT status FROM hdpe_cut_pieces WHERE id = $1 AND deleted_at IS NULL FOR UPDATE NOWAIT`, id,
	).Scan(&status); err != nil {
		return fmt.Errorf("lock cut piece %s: %w", id, err)
	}
	if status != "IN_STOCK" {
		return fmt.Errorf("cut piece %s is not IN_STOCK", id)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE hdpe_cut_pieces SET status = 'SCRAPPED', version = version + 1, updated_at = NOW() WHERE id = $1`, id,
	); err != nil {
		return err
	}
	return nil
}
