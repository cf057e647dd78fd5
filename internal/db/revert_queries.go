package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// This file groups the read/write helpers the Revert Engine and Query
// Surface need that don't belong to any single entity's CRUD block above —
// lookups by creator/deleter transaction, dispatch/return/scrap detail
// reads, and the read-only projections of §6.1.

// ---- Revert support: piece lineage lookups --------------------------------

// ListCutPiecesByCreatorTxn returns every HdpeCutPiece created by txnID,
// regardless of current status, locked FOR UPDATE so Revert CUT_ROLL (§4.9)
// can inspect and mutate them atomically.
func (q *Queries) ListCutPiecesByCreatorTxn(ctx context.Context, ex execer, txnID uuid.UUID) ([]CutPieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, stock_id, length_meters, status, created_by_transaction_id, original_stock_id, version
		FROM hdpe_cut_pieces WHERE created_by_transaction_id = $1 FOR UPDATE`, txnID)
	if err != nil {
		return nil, fmt.Errorf("list cut pieces by creator txn: %w", err)
	}
	defer rows.Close()
	var out []CutPieceRow
	for rows.Next() {
		var c CutPieceRow
		if err := rows.Scan(&c.ID, &c.StockID, &c.LengthMeters, &c.Status,
			&c.CreatedByTransactionID, &c.OriginalStockID, &c.Version); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCutPiecesByDispatch returns HdpeCutPieces carrying dispatch_id,
// locked FOR UPDATE, for Revert DISPATCH (§4.9).
func (q *Queries) ListCutPiecesByDispatch(ctx context.Context, ex execer, dispatchID uuid.UUID) ([]CutPieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, stock_id, length_meters, status, created_by_transaction_id, original_stock_id, version
		FROM hdpe_cut_pieces WHERE dispatch_id = $1 FOR UPDATE`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("list cut pieces by dispatch: %w", err)
	}
	defer rows.Close()
	var out []CutPieceRow
	for rows.Next() {
		var c CutPieceRow
		if err := rows.Scan(&c.ID, &c.StockID, &c.LengthMeters, &c.Status,
			&c.CreatedByTransactionID, &c.OriginalStockID, &c.Version); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCutPiece locks and returns a single HdpeCutPiece row by id, used when
// Revert CUT_ROLL needs to restore the single subsumed piece of a re-cut
// (§4.3 step 2, §4.9).
func (q *Queries) GetCutPiece(ctx context.Context, ex execer, id uuid.UUID) (*CutPieceRow, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, stock_id, length_meters, status, created_by_transaction_id, original_stock_id, version
		FROM hdpe_cut_pieces WHERE id = $1 FOR UPDATE`, id)
	var c CutPieceRow
	if err := row.Scan(&c.ID, &c.StockID, &c.LengthMeters, &c.Status,
		&c.CreatedByTransactionID, &c.OriginalStockID, &c.Version); err != nil {
		return nil, fmt.Errorf("get cut piece: %w", err)
	}
	return &c, nil
}

// ListSparePiecesByCreatorTxn returns every SprinklerSparePiece group
// created by txnID, locked FOR UPDATE (Revert SPLIT_BUNDLE / COMBINE_SPARES,
// §4.9).
func (q *Queries) ListSparePiecesByCreatorTxn(ctx context.Context, ex execer, txnID uuid.UUID) ([]SparePieceRow, error) {
	return q.listSparePiecesWhere(ctx, ex, "created_by_transaction_id = $1", txnID)
}

// ListSparePiecesByDeleterTxn returns groups this txn soft-deleted (marked
// SOLD_OUT by Combine Spares, §4.5 step 2), for Revert COMBINE_SPARES.
func (q *Queries) ListSparePiecesByDeleterTxn(ctx context.Context, ex execer, txnID uuid.UUID) ([]SparePieceRow, error) {
	return q.listSparePiecesWhere(ctx, ex, "deleted_by_transaction_id = $1", txnID)
}

// ListSparePiecesByDispatch returns groups/singletons carrying dispatch_id,
// for Revert DISPATCH (§4.9).
func (q *Queries) ListSparePiecesByDispatch(ctx context.Context, ex execer, dispatchID uuid.UUID) ([]SparePieceRow, error) {
	return q.listSparePiecesWhere(ctx, ex, "dispatch_id = $1", dispatchID)
}

func (q *Queries) listSparePiecesWhere(ctx context.Context, ex execer, predicate string, arg uuid.UUID) ([]SparePieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, stock_id, piece_count, status, reserved_by_transaction, reserved_at,
		       created_by_transaction_id, original_stock_id, version
		FROM sprinkler_spare_pieces WHERE `+predicate+` FOR UPDATE`, arg)
	if err != nil {
		return nil, fmt.Errorf("list spare pieces: %w", err)
	}
	defer rows.Close()
	var out []SparePieceRow
	for rows.Next() {
		var s SparePieceRow
		if err := rows.Scan(&s.ID, &s.StockID, &s.PieceCount, &s.Status, &s.ReservedByTransaction,
			&s.ReservedAt, &s.CreatedByTransactionID, &s.OriginalStockID, &s.Version); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- Revert support: dispatch / return / scrap -----------------------------

type DispatchRow struct {
	ID         uuid.UUID
	Status     string
	CreatedBy  uuid.UUID
	RevertedAt sql.NullTime
}

func (q *Queries) GetDispatch(ctx context.Context, ex execer, id uuid.UUID) (*DispatchRow, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, status, created_by, reverted_at FROM dispatches WHERE id = $1 FOR UPDATE`, id)
	var d DispatchRow
	if err := row.Scan(&d.ID, &d.Status, &d.CreatedBy, &d.RevertedAt); err != nil {
		return nil, fmt.Errorf("get dispatch: %w", err)
	}
	return &d, nil
}

type ReturnRow struct {
	ID         uuid.UUID
	Status     string
	CreatedBy  uuid.UUID
	RevertedAt sql.NullTime
}

func (q *Queries) GetReturn(ctx context.Context, ex execer, id uuid.UUID) (*ReturnRow, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, status, created_by, reverted_at FROM returns WHERE id = $1 FOR UPDATE`, id)
	var r ReturnRow
	if err := row.Scan(&r.ID, &r.Status, &r.CreatedBy, &r.RevertedAt); err != nil {
		return nil, fmt.Errorf("get return: %w", err)
	}
	return &r, nil
}

type ReturnItemRow struct {
	ID       uuid.UUID
	ReturnID uuid.UUID
	BatchID  uuid.UUID
	ItemType string
}

func (q *Queries) ListReturnItems(ctx context.Context, ex execer, returnID uuid.UUID) ([]ReturnItemRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, return_id, batch_id, item_type FROM return_items WHERE return_id = $1`, returnID)
	if err != nil {
		return nil, fmt.Errorf("list return items: %w", err)
	}
	defer rows.Close()
	var out []ReturnItemRow
	for rows.Next() {
		var r ReturnItemRow
		if err := rows.Scan(&r.ID, &r.ReturnID, &r.BatchID, &r.ItemType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) listUUIDColumn(ctx context.Context, ex execer, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	rows, err := ex.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list uuid column: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListCutPiecesByOriginalStock returns every piece (any status) whose
// original_stock_id is stockID, used by Revert RETURN to find pieces a
// SPARE_PIECES/CUT_ROLL return item created when no creator-transaction
// filter is precise enough on its own.
func (q *Queries) ListCutPiecesByOriginalStock(ctx context.Context, ex execer, stockID uuid.UUID) ([]CutPieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, stock_id, length_meters, status, created_by_transaction_id, original_stock_id, version
		FROM hdpe_cut_pieces WHERE original_stock_id = $1 FOR UPDATE`, stockID)
	if err != nil {
		return nil, fmt.Errorf("list cut pieces by original stock: %w", err)
	}
	defer rows.Close()
	var out []CutPieceRow
	for rows.Next() {
		var c CutPieceRow
		if err := rows.Scan(&c.ID, &c.StockID, &c.LengthMeters, &c.Status,
			&c.CreatedByTransactionID, &c.OriginalStockID, &c.Version); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) ListSparePiecesByOriginalStock(ctx context.Context, ex execer, stockID uuid.UUID) ([]SparePieceRow, error) {
	return q.listSparePiecesWhere(ctx, ex, "original_stock_id = $1", stockID)
}

// ListStockIDsByBatch returns every non-deleted stock row belonging to a
// batch, used by Revert RETURN: a return always mints a batch exclusively
// for the items it creates, so sweeping by batch ownership finds every
// stock row the return touched without needing a reverse index from
// return_rolls/return_bundles for CUT_ROLL/SPARE item types.
func (q *Queries) ListStockIDsByBatch(ctx context.Context, ex execer, batchID uuid.UUID) ([]uuid.UUID, error) {
	return q.listUUIDColumn(ctx, ex, `SELECT id FROM inventory_stock WHERE batch_id = $1 AND deleted_at IS NULL FOR UPDATE`, batchID)
}

type ScrapRow struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) GetScrap(ctx context.Context, ex execer, id uuid.UUID) (*ScrapRow, error) {
	row := ex.QueryRowContext(ctx, `SELECT id, status FROM scraps WHERE id = $1 FOR UPDATE`, id)
	var s ScrapRow
	if err := row.Scan(&s.ID, &s.Status); err != nil {
		return nil, fmt.Errorf("get scrap: %w", err)
	}
	return &s, nil
}

type ScrapItemRow struct {
	ID               uuid.UUID
	ScrapID          uuid.UUID
	StockID          uuid.UUID
	ItemType         string
	QuantityScrapped int
	OriginalQuantity int
	OriginalStatus   string
}

func (q *Queries) ListScrapItems(ctx context.Context, ex execer, scrapID uuid.UUID) ([]ScrapItemRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, scrap_id, stock_id, item_type, quantity_scrapped, original_quantity, original_status
		FROM scrap_items WHERE scrap_id = $1`, scrapID)
	if err != nil {
		return nil, fmt.Errorf("list scrap items: %w", err)
	}
	defer rows.Close()
	var out []ScrapItemRow
	for rows.Next() {
		var s ScrapItemRow
		if err := rows.Scan(&s.ID, &s.ScrapID, &s.StockID, &s.ItemType, &s.QuantityScrapped,
			&s.OriginalQuantity, &s.OriginalStatus); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type ScrapPieceRow struct {
	ID              uuid.UUID
	ScrapItemID     uuid.UUID
	OriginalPieceID uuid.UUID
	PieceKind       string
}

func (q *Queries) ListScrapPieces(ctx context.Context, ex execer, scrapItemID uuid.UUID) ([]ScrapPieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, scrap_item_id, original_piece_id, piece_kind FROM scrap_pieces WHERE scrap_item_id = $1`, scrapItemID)
	if err != nil {
		return nil, fmt.Errorf("list scrap pieces: %w", err)
	}
	defer rows.Close()
	var out []ScrapPieceRow
	for rows.Next() {
		var s ScrapPieceRow
		if err := rows.Scan(&s.ID, &s.ScrapItemID, &s.OriginalPieceID, &s.PieceKind); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- Query Surface (§6.1, read-only) ---------------------------------------

type AvailableStockRow struct {
	ID               uuid.UUID
	BatchID          uuid.UUID
	BatchCode        string
	ProductVariantID uuid.UUID
	StockType        string
	Quantity         int
	Status           string
}

// ListAvailableStock is the read-only stock-on-hand projection (§6.1). A
// nil stockType lists every kind; a nil batchID lists every batch.
func (q *Queries) ListAvailableStock(ctx context.Context, ex execer, stockType *string, batchID *uuid.UUID) ([]AvailableStockRow, error) {
	query := `
		SELECT s.id, s.batch_id, b.batch_code, s.product_variant_id, s.stock_type, s.quantity, s.status
		FROM inventory_stock s JOIN batches b ON b.id = s.batch_id
		WHERE s.deleted_at IS NULL AND s.status = 'IN_STOCK'`
	args := []any{}
	if stockType != nil {
		args = append(args, *stockType)
		query += fmt.Sprintf(" AND s.stock_type = $%d", len(args))
	}
	if batchID != nil {
		args = append(args, *batchID)
		query += fmt.Sprintf(" AND s.batch_id = $%d", len(args))
	}
	query += " ORDER BY b.batch_code, s.stock_type"

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list available stock: %w", err)
	}
	defer rows.Close()
	var out []AvailableStockRow
	for rows.Next() {
		var a AvailableStockRow
		if err := rows.Scan(&a.ID, &a.BatchID, &a.BatchCode, &a.ProductVariantID, &a.StockType, &a.Quantity, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StockSummaryRow is one (stock_type, product_variant) group total for
// GetStockSummary (§2 Query Surface "simple counts").
type StockSummaryRow struct {
	StockType        string
	ProductVariantID uuid.UUID
	TotalQuantity    int
	RowCount         int
}

// GetStockSummary aggregates in-stock quantity by stock_type and variant —
// the "simple counts" query §1 explicitly carves out of the reporting
// Non-goal.
func (q *Queries) GetStockSummary(ctx context.Context, ex execer) ([]StockSummaryRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT stock_type, product_variant_id, SUM(quantity), COUNT(*)
		FROM inventory_stock
		WHERE deleted_at IS NULL AND status = 'IN_STOCK'
		GROUP BY stock_type, product_variant_id
		ORDER BY stock_type, product_variant_id`)
	if err != nil {
		return nil, fmt.Errorf("get stock summary: %w", err)
	}
	defer rows.Close()
	var out []StockSummaryRow
	for rows.Next() {
		var s StockSummaryRow
		if err := rows.Scan(&s.StockType, &s.ProductVariantID, &s.TotalQuantity, &s.RowCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetBatchHistory returns every transaction touching a batch, newest first
// (§6.1, §5: ordered by (created_at DESC, id DESC)).
func (q *Queries) GetBatchHistory(ctx context.Context, ex execer, batchID uuid.UUID) ([]TransactionRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, transaction_type, from_stock_id, from_quantity, from_piece_id, to_stock_id, to_quantity,
		       batch_id, dispatch_id, cut_piece_details, snapshot, notes, created_by, created_at, reverted_at, reverted_by
		FROM inventory_transactions WHERE batch_id = $1 ORDER BY created_at DESC, id DESC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch history: %w", err)
	}
	defer rows.Close()
	var out []TransactionRow
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(&t.ID, &t.TransactionType, &t.FromStockID, &t.FromQuantity, &t.FromPieceID, &t.ToStockID,
			&t.ToQuantity, &t.BatchID, &t.DispatchID, &t.CutPieceDetails, &t.Snapshot, &t.Notes, &t.CreatedBy,
			&t.CreatedAt, &t.RevertedAt, &t.RevertedBy); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PieceAuditEvent is one row of a piece's audit trail (§6.1): its creating
// transaction plus, if applicable, its dispatch/scrap/delete transition.
type PieceAuditEvent struct {
	CreatedByTransactionID uuid.UUID
	DeletedByTransactionID uuid.NullUUID
	DispatchID             uuid.NullUUID
	Status                 string
	CreatedAt              sql.NullTime
}

// GetCutPieceAuditTrail returns the lineage of a single HdpeCutPiece.
func (q *Queries) GetCutPieceAuditTrail(ctx context.Context, ex execer, pieceID uuid.UUID) (*PieceAuditEvent, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT created_by_transaction_id, deleted_by_transaction_id, dispatch_id, status, created_at
		FROM hdpe_cut_pieces WHERE id = $1`, pieceID)
	var e PieceAuditEvent
	if err := row.Scan(&e.CreatedByTransactionID, &e.DeletedByTransactionID, &e.DispatchID, &e.Status, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("get cut piece audit trail: %w", err)
	}
	return &e, nil
}

// GetSparePieceAuditTrail returns the lineage of a single
// SprinklerSparePiece group.
func (q *Queries) GetSparePieceAuditTrail(ctx context.Context, ex execer, pieceID uuid.UUID) (*PieceAuditEvent, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT created_by_transaction_id, deleted_by_transaction_id, dispatch_id, status, created_at
		FROM sprinkler_spare_pieces WHERE id = $1`, pieceID)
	var e PieceAuditEvent
	if err := row.Scan(&e.CreatedByTransactionID, &e.DeletedByTransactionID, &e.DispatchID, &e.Status, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("get spare piece audit trail: %w", err)
	}
	return &e, nil
}

// TimelineEntry is one row of the unified transaction timeline (§6.1, §4.8:
// scrap events union into the timeline even though they write no
// InventoryTransaction row of their own).
type TimelineEntry struct {
	Handle          string
	TransactionType string
	CreatedAt       sql.NullTime
	RevertedAt      sql.NullTime
	Raw             json.RawMessage
}

// GetTransactionTimeline unions inventory_transactions and scraps into one
// reverse-chronological feed, handle-encoded per §6.3 ({kind}_{uuid}).
func (q *Queries) GetTransactionTimeline(ctx context.Context, ex execer, from, to sql.NullTime, limit int) ([]TimelineEntry, error) {
	rows, err := ex.QueryContext(ctx, `
		(SELECT 'inv_' || id::text AS handle, transaction_type, created_at, reverted_at
		 FROM inventory_transactions
		 WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		   AND ($2::timestamptz IS NULL OR created_at <= $2))
		UNION ALL
		(SELECT 'scrap_' || id::text AS handle, 'SCRAP' AS transaction_type, created_at, NULL
		 FROM scraps
		 WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		   AND ($2::timestamptz IS NULL OR created_at <= $2))
		ORDER BY created_at DESC LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("get transaction timeline: %w", err)
	}
	defer rows.Close()
	var out []TimelineEntry
	for rows.Next() {
		var t TimelineEntry
		if err := rows.Scan(&t.Handle, &t.TransactionType, &t.CreatedAt, &t.RevertedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
