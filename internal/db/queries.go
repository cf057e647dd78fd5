package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queries provides access to all database operations. One *sql.DB-backed
// struct, hand-written SQL per statement — the teacher's convention,
// generalized from its single-table snapshot queries to the full
// inventory schema (§3, §6.2).
type Queries struct {
	db *sql.DB
}

// New creates a new Queries instance.
func New(sqlDB *sql.DB) *Queries {
	return &Queries{db: sqlDB}
}

// DB returns the underlying database connection.
func (q *Queries) DB() *sql.DB {
	return q.db
}

// execer is satisfied by both *sql.DB and *sql.Tx so every method below
// can run standalone or inside an engine-managed transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ---- Batch ----------------------------------------------------------

func (q *Queries) CreateBatch(ctx context.Context, ex execer, p CreateBatchParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO batches (
			id, batch_code, batch_no, product_variant_id, production_date,
			initial_quantity, current_quantity, weight_per_meter, total_weight,
			piece_length, notes, attachment_ref, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())`,
		p.ID, p.BatchCode, p.BatchNo, p.ProductVariantID, p.ProductionDate,
		p.InitialQuantity, p.WeightPerMeter, p.TotalWeight, p.PieceLength,
		p.Notes, p.AttachmentRef, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// BatchExists checks batch_code/batch_no uniqueness before insert (§4.2:
// DuplicateBatchCode must be distinguishable from generic failures).
func (q *Queries) BatchExists(ctx context.Context, ex execer, batchCode string, batchNo int) (bool, error) {
	var exists bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM batches WHERE batch_code = $1 OR batch_no = $2)`,
		batchCode, batchNo,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check batch exists: %w", err)
	}
	return exists, nil
}

type BatchRow struct {
	ID               uuid.UUID
	BatchCode        string
	BatchNo          int
	ProductVariantID uuid.UUID
	InitialQuantity  int
	CurrentQuantity  int
	CreatedBy        uuid.UUID
}

// LockBatch reads a batch row FOR UPDATE so current_quantity recompute
// (Rule B, §4.8) is race-free against concurrent operations on its stock.
func (q *Queries) LockBatch(ctx context.Context, ex execer, id uuid.UUID) (*BatchRow, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, batch_code, batch_no, product_variant_id, initial_quantity,
		       current_quantity, created_by
		FROM batches WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	var b BatchRow
	if err := row.Scan(&b.ID, &b.BatchCode, &b.BatchNo, &b.ProductVariantID,
		&b.InitialQuantity, &b.CurrentQuantity, &b.CreatedBy); err != nil {
		return nil, fmt.Errorf("lock batch: %w", err)
	}
	return &b, nil
}

// RecomputeBatchQuantity sets current_quantity per §4.1 Rule B's
// per-stock-type formula — never a flat SUM(quantity), since BUNDLE and
// SPARE rows don't carry their piece total in `quantity` (BUNDLE holds a
// bundle count, SPARE holds a group count per Rule A). Rule B is always a
// full recompute, never an incremental +/-1 (§4.8, §9).
func (q *Queries) RecomputeBatchQuantity(ctx context.Context, ex execer, batchID uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE batches SET current_quantity = COALESCE((
			SELECT SUM(
				CASE s.stock_type
					WHEN 'FULL_ROLL' THEN s.quantity
					WHEN 'BUNDLE' THEN s.quantity * COALESCE(s.pieces_per_bundle, 0)
					WHEN 'CUT_ROLL' THEN (
						SELECT COUNT(*) FROM hdpe_cut_pieces hp
						WHERE hp.stock_id = s.id AND hp.status = 'IN_STOCK' AND hp.deleted_at IS NULL
					)
					WHEN 'SPARE' THEN (
						SELECT COALESCE(SUM(sp.piece_count), 0) FROM sprinkler_spare_pieces sp
						WHERE sp.stock_id = s.id AND sp.status = 'IN_STOCK' AND sp.deleted_at IS NULL
					)
					ELSE 0
				END
			)
			FROM inventory_stock s
			WHERE s.batch_id = $1 AND s.deleted_at IS NULL AND s.status = 'IN_STOCK'
		), 0), updated_at = NOW()
		WHERE id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("recompute batch quantity: %w", err)
	}
	return nil
}

// LastBatchNoForYear reads the highest batch_no minted this year, used to
// seed auto-generated batch codes (§4.2).
func (q *Queries) LastBatchNoForYear(ctx context.Context, ex execer, year int) (int, error) {
	var maxNo sql.NullInt64
	err := ex.QueryRowContext(ctx, `
		SELECT MAX(batch_no) FROM batches
		WHERE EXTRACT(YEAR FROM production_date) = $1`, year).Scan(&maxNo)
	if err != nil {
		return 0, fmt.Errorf("last batch no: %w", err)
	}
	return int(maxNo.Int64), nil
}

// ---- InventoryStock ---------------------------------------------------

type CreateStockParams struct {
	ID               uuid.UUID
	BatchID          uuid.UUID
	ProductVariantID uuid.UUID
	StockType        string
	Quantity         int
	LengthPerUnit    sql.NullString
	PiecesPerBundle  sql.NullInt64
	PieceLength      sql.NullString
	ParentStockID    uuid.NullUUID
}

func (q *Queries) CreateStock(ctx context.Context, ex execer, p CreateStockParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO inventory_stock (
			id, batch_id, product_variant_id, stock_type, quantity, status,
			length_per_unit, pieces_per_bundle, piece_length, parent_stock_id,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,'IN_STOCK',$6,$7,$8,$9,1,NOW(),NOW())`,
		p.ID, p.BatchID, p.ProductVariantID, p.StockType, p.Quantity,
		p.LengthPerUnit, p.PiecesPerBundle, p.PieceLength, p.ParentStockID,
	)
	if err != nil {
		return fmt.Errorf("create stock: %w", err)
	}
	return nil
}

type StockRow struct {
	ID               uuid.UUID
	BatchID          uuid.UUID
	ProductVariantID uuid.UUID
	StockType        string
	Quantity         int
	Status           string
	Version          int
}

// LockStock reads an inventory_stock row under the given lock mode. Use
// LockForUpdateNoWait when a caller must fail fast rather than queue
// behind a concurrent holder (§5: PiecesLocked).
func (q *Queries) LockStock(ctx context.Context, ex execer, id uuid.UUID, mode LockMode) (*StockRow, error) {
	query := `SELECT id, batch_id, product_variant_id, stock_type, quantity, status, version
		FROM inventory_stock WHERE id = $1 AND deleted_at IS NULL` + mode.clause()
	row := ex.QueryRowContext(ctx, query, id)
	var s StockRow
	if err := row.Scan(&s.ID, &s.BatchID, &s.ProductVariantID, &s.StockType,
		&s.Quantity, &s.Status, &s.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("lock stock: %w", err)
		}
		return nil, mapLockErr(err)
	}
	return &s, nil
}

// LockStockAny is LockStock without the `deleted_at IS NULL` filter — the
// Revert Engine must be able to re-lock a stock row that a prior operation
// soft-deleted when it hit quantity 0, to restore it precisely (§9: "revert
// path must tolerate operating on soft-deleted entities").
func (q *Queries) LockStockAny(ctx context.Context, ex execer, id uuid.UUID, mode LockMode) (*StockRow, error) {
	query := `SELECT id, batch_id, product_variant_id, stock_type, quantity, status, version
		FROM inventory_stock WHERE id = $1` + mode.clause()
	row := ex.QueryRowContext(ctx, query, id)
	var s StockRow
	if err := row.Scan(&s.ID, &s.BatchID, &s.ProductVariantID, &s.StockType,
		&s.Quantity, &s.Status, &s.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("lock stock: %w", err)
		}
		return nil, mapLockErr(err)
	}
	return &s, nil
}

// SetStockQuantity updates quantity/status with an optimistic version
// check (§5); ok is false when the version had already moved, signaling
// the caller should retry (Concurrent).
func (q *Queries) SetStockQuantity(ctx context.Context, ex execer, id uuid.UUID, quantity int, status string, expectVersion int) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE inventory_stock
		SET quantity = $2, status = $3, version = version + 1, updated_at = NOW(),
		    deleted_at = CASE WHEN $3 = 'SOLD_OUT' THEN NOW() ELSE NULL END
		WHERE id = $1 AND version = $4`, id, quantity, status, expectVersion)
	if err != nil {
		return false, fmt.Errorf("set stock quantity: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (q *Queries) SoftDeleteStock(ctx context.Context, ex execer, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `UPDATE inventory_stock SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("soft delete stock: %w", err)
	}
	return nil
}

func (q *Queries) RestoreStock(ctx context.Context, ex execer, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `UPDATE inventory_stock SET deleted_at = NULL, status = 'IN_STOCK', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

// FindOpenStock finds an IN_STOCK aggregate row matching batch/type and
// the shape-specific piece length (find-or-create for Combine Spares
// bundle/spare-group targets, §4.5).
func (q *Queries) FindOpenStock(ctx context.Context, ex execer, batchID uuid.UUID, stockType string, pieceLength sql.NullString) (*StockRow, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, batch_id, product_variant_id, stock_type, quantity, status, version
		FROM inventory_stock
		WHERE batch_id = $1 AND stock_type = $2 AND status = 'IN_STOCK' AND deleted_at IS NULL
		  AND piece_length IS NOT DISTINCT FROM $3
		FOR UPDATE`, batchID, stockType, pieceLength)
	var s StockRow
	if err := row.Scan(&s.ID, &s.BatchID, &s.ProductVariantID, &s.StockType,
		&s.Quantity, &s.Status, &s.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open stock: %w", err)
	}
	return &s, nil
}

func mapLockErr(err error) error {
	// lib/pq surfaces NOWAIT contention as SQLSTATE 55P03 (lock_not_available).
	if pqErr, ok := asPQError(err); ok && pqErr == "55P03" {
		return fmt.Errorf("rows locked: %w", err)
	}
	return fmt.Errorf("lock stock: %w", err)
}

func asPQError(err error) (string, bool) {
	type sqlState interface{ SQLState() string }
	if s, ok := err.(sqlState); ok {
		return s.SQLState(), true
	}
	return "", false
}

// ---- HdpeCutPiece -----------------------------------------------------

type CreateCutPieceParams struct {
	ID                     uuid.UUID
	StockID                uuid.UUID
	LengthMeters           string
	CreatedByTransactionID uuid.UUID
	OriginalStockID        uuid.UUID
}

func (q *Queries) CreateCutPiece(ctx context.Context, ex execer, p CreateCutPieceParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO hdpe_cut_pieces (
			id, stock_id, length_meters, status, created_by_transaction_id,
			original_stock_id, version, created_at, updated_at
		) VALUES ($1,$2,$3,'IN_STOCK',$4,$5,1,NOW(),NOW())`,
		p.ID, p.StockID, p.LengthMeters, p.CreatedByTransactionID, p.OriginalStockID,
	)
	if err != nil {
		return fmt.Errorf("create cut piece: %w", err)
	}
	return nil
}

type CutPieceRow struct {
	ID                     uuid.UUID
	StockID                uuid.UUID
	LengthMeters           string
	Status                 string
	CreatedByTransactionID uuid.UUID
	OriginalStockID        uuid.UUID
	Version                int
}

func (q *Queries) LockCutPiecesForStock(ctx context.Context, ex execer, stockID uuid.UUID) ([]CutPieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, stock_id, length_meters, status, created_by_transaction_id, original_stock_id, version
		FROM hdpe_cut_pieces
		WHERE stock_id = $1 AND status = 'IN_STOCK' AND deleted_at IS NULL
		ORDER BY created_at FOR UPDATE NOWAIT`, stockID)
	if err != nil {
		return nil, mapLockErr(err)
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

func (q *Queries) SetCutPieceStatus(ctx context.Context, ex execer, id uuid.UUID, status string, dispatchID uuid.NullUUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE hdpe_cut_pieces SET status = $2, dispatch_id = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1`, id, status, dispatchID)
	if err != nil {
		return fmt.Errorf("set cut piece status: %w", err)
	}
	return nil
}

func (q *Queries) SoftDeleteCutPiece(ctx context.Context, ex execer, id, deletedByTxn uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE hdpe_cut_pieces SET deleted_at = NOW(), deleted_by_transaction_id = $2, updated_at = NOW()
		WHERE id = $1`, id, deletedByTxn)
	if err != nil {
		return fmt.Errorf("soft delete cut piece: %w", err)
	}
	return nil
}

func (q *Queries) RestoreCutPiece(ctx context.Context, ex execer, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE hdpe_cut_pieces SET deleted_at = NULL, status = 'IN_STOCK', dispatch_id = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("restore cut piece: %w", err)
	}
	return nil
}

// ---- SprinklerSparePiece -----------------------------------------------

type CreateSparePieceParams struct {
	ID                     uuid.UUID
	StockID                uuid.UUID
	PieceCount             int
	PieceLength            sql.NullString
	CreatedByTransactionID uuid.UUID
	OriginalStockID        uuid.UUID
}

func (q *Queries) CreateSparePiece(ctx context.Context, ex execer, p CreateSparePieceParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO sprinkler_spare_pieces (
			id, stock_id, piece_count, piece_length, status,
			created_by_transaction_id, original_stock_id, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,'IN_STOCK',$5,$6,1,NOW(),NOW())`,
		p.ID, p.StockID, p.PieceCount, p.PieceLength, p.CreatedByTransactionID, p.OriginalStockID,
	)
	if err != nil {
		return fmt.Errorf("create spare piece: %w", err)
	}
	return nil
}

type SparePieceRow struct {
	ID                     uuid.UUID
	StockID                uuid.UUID
	PieceCount             int
	Status                 string
	ReservedByTransaction  uuid.NullUUID
	ReservedAt             sql.NullTime
	CreatedByTransactionID uuid.UUID
	OriginalStockID        uuid.UUID
	Version                int
}

// LockSpareRowsForStock reads, under FOR UPDATE NOWAIT, all spare rows
// for a stock that are IN_STOCK or whose reservation has expired (§4.5:
// stale reservations are released before a new one is attempted).
func (q *Queries) LockSpareRowsForStock(ctx context.Context, ex execer, stockID uuid.UUID, reservationTimeoutSeconds int) ([]SparePieceRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, stock_id, piece_count, status, reserved_by_transaction, reserved_at,
		       created_by_transaction_id, original_stock_id, version
		FROM sprinkler_spare_pieces
		WHERE stock_id = $1 AND deleted_at IS NULL
		  AND (status = 'IN_STOCK' OR (reserved_at IS NOT NULL AND reserved_at < NOW() - ($2 || ' seconds')::interval))
		ORDER BY created_at FOR UPDATE NOWAIT`, stockID, reservationTimeoutSeconds)
	if err != nil {
		return nil, mapLockErr(err)
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

func (q *Queries) ReserveSparePiece(ctx context.Context, ex execer, id, txnID uuid.UUID, expectVersion int) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces
		SET reserved_by_transaction = $2, reserved_at = NOW(), version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3`, id, txnID, expectVersion)
	if err != nil {
		return false, fmt.Errorf("reserve spare piece: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (q *Queries) ReleaseSpareReservation(ctx context.Context, ex execer, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces SET reserved_by_transaction = NULL, reserved_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release spare reservation: %w", err)
	}
	return nil
}

func (q *Queries) SetSparePieceStatus(ctx context.Context, ex execer, id uuid.UUID, count int, status string, dispatchID uuid.NullUUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces
		SET piece_count = $2, status = $3, dispatch_id = $4, reserved_by_transaction = NULL,
		    reserved_at = NULL, version = version + 1, updated_at = NOW()
		WHERE id = $1`, id, count, status, dispatchID)
	if err != nil {
		return fmt.Errorf("set spare piece status: %w", err)
	}
	return nil
}

func (q *Queries) SoftDeleteSparePiece(ctx context.Context, ex execer, id, deletedByTxn uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces SET deleted_at = NOW(), deleted_by_transaction_id = $2, updated_at = NOW()
		WHERE id = $1`, id, deletedByTxn)
	if err != nil {
		return fmt.Errorf("soft delete spare piece: %w", err)
	}
	return nil
}

func (q *Queries) RestoreSparePiece(ctx context.Context, ex execer, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE sprinkler_spare_pieces SET deleted_at = NULL, status = 'IN_STOCK', dispatch_id = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("restore spare piece: %w", err)
	}
	return nil
}

// ---- InventoryTransaction ----------------------------------------------

type CreateTransactionParams struct {
	ID              uuid.UUID
	TransactionType string
	FromStockID     uuid.NullUUID
	FromQuantity    sql.NullInt64
	FromLength      sql.NullString
	FromPieces      sql.NullInt64
	FromPieceID     uuid.NullUUID
	ToStockID       uuid.NullUUID
	ToQuantity      sql.NullInt64
	ToPieces        sql.NullInt64
	BatchID         uuid.NullUUID
	DispatchID      uuid.NullUUID
	DispatchItemID  uuid.NullUUID
	CutPieceDetails json.RawMessage
	Snapshot        json.RawMessage
	Notes           sql.NullString
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateTransaction(ctx context.Context, ex execer, p CreateTransactionParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO inventory_transactions (
			id, transaction_type, from_stock_id, from_quantity, from_length, from_pieces, from_piece_id,
			to_stock_id, to_quantity, to_pieces, batch_id, dispatch_id, dispatch_item_id,
			cut_piece_details, snapshot, notes, created_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW())`,
		p.ID, p.TransactionType, p.FromStockID, p.FromQuantity, p.FromLength, p.FromPieces, p.FromPieceID,
		p.ToStockID, p.ToQuantity, p.ToPieces, p.BatchID, p.DispatchID, p.DispatchItemID,
		p.CutPieceDetails, p.Snapshot, p.Notes, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// UpdateTransactionCutPieceDetails backfills the cut_piece_details JSON
// after piece ids are known (insert-then-update, the Cut Roll two-step of
// §4.3).
func (q *Queries) UpdateTransactionCutPieceDetails(ctx context.Context, ex execer, id uuid.UUID, details json.RawMessage) error {
	_, err := ex.ExecContext(ctx, `UPDATE inventory_transactions SET cut_piece_details = $2 WHERE id = $1`, id, details)
	if err != nil {
		return fmt.Errorf("update transaction cut piece details: %w", err)
	}
	return nil
}

type TransactionRow struct {
	ID              uuid.UUID
	TransactionType string
	FromStockID     uuid.NullUUID
	FromQuantity    sql.NullInt64
	FromPieceID     uuid.NullUUID
	ToStockID       uuid.NullUUID
	ToQuantity      sql.NullInt64
	BatchID         uuid.NullUUID
	DispatchID      uuid.NullUUID
	CutPieceDetails json.RawMessage
	Snapshot        json.RawMessage
	Notes           sql.NullString
	CreatedBy       uuid.UUID
	CreatedAt       sql.NullTime
	RevertedAt      sql.NullTime
	RevertedBy      uuid.NullUUID
}

func (q *Queries) GetTransaction(ctx context.Context, ex execer, id uuid.UUID) (*TransactionRow, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, transaction_type, from_stock_id, from_quantity, from_piece_id, to_stock_id, to_quantity,
		       batch_id, dispatch_id, cut_piece_details, snapshot, notes, created_by, created_at, reverted_at, reverted_by
		FROM inventory_transactions WHERE id = $1`, id)
	var t TransactionRow
	if err := row.Scan(&t.ID, &t.TransactionType, &t.FromStockID, &t.FromQuantity, &t.FromPieceID, &t.ToStockID,
		&t.ToQuantity, &t.BatchID, &t.DispatchID, &t.CutPieceDetails, &t.Snapshot, &t.Notes, &t.CreatedBy,
		&t.CreatedAt, &t.RevertedAt, &t.RevertedBy); err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

func (q *Queries) MarkTransactionReverted(ctx context.Context, ex execer, id, revertedBy uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE inventory_transactions SET reverted_at = NOW(), reverted_by = $2 WHERE id = $1`, id, revertedBy)
	if err != nil {
		return fmt.Errorf("mark transaction reverted: %w", err)
	}
	return nil
}

func (q *Queries) GetStockHistory(ctx context.Context, ex execer, stockID uuid.UUID, limit int) ([]TransactionRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, transaction_type, from_stock_id, from_quantity, to_stock_id, to_quantity,
		       batch_id, dispatch_id, cut_piece_details, snapshot, created_by, created_at, reverted_at
		FROM inventory_transactions
		WHERE from_stock_id = $1 OR to_stock_id = $1
		ORDER BY created_at DESC LIMIT $2`, stockID, limit)
	if err != nil {
		return nil, fmt.Errorf("get stock history: %w", err)
	}
	defer rows.Close()
	var out []TransactionRow
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(&t.ID, &t.TransactionType, &t.FromStockID, &t.FromQuantity, &t.ToStockID,
			&t.ToQuantity, &t.BatchID, &t.DispatchID, &t.CutPieceDetails, &t.Snapshot, &t.CreatedBy,
			&t.CreatedAt, &t.RevertedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- Sequence numbering (Dispatch / Return / Scrap) --------------------

func (q *Queries) LastDispatchNumberForYear(ctx context.Context, ex execer, prefix string, year int) (string, error) {
	return q.lastNumberForYear(ctx, ex, "dispatches", "dispatch_number", prefix, year)
}

func (q *Queries) LastReturnNumberForYear(ctx context.Context, ex execer, prefix string, year int) (string, error) {
	return q.lastNumberForYear(ctx, ex, "returns", "return_number", prefix, year)
}

func (q *Queries) LastScrapNumberForYear(ctx context.Context, ex execer, prefix string, year int) (string, error) {
	return q.lastNumberForYear(ctx, ex, "scraps", "scrap_number", prefix, year)
}

func (q *Queries) lastNumberForYear(ctx context.Context, ex execer, table, column, prefix string, year int) (string, error) {
	var last sql.NullString
	query := fmt.Sprintf(`SELECT MAX(%s) FROM %s WHERE %s LIKE $1`, column, table, column)
	err := ex.QueryRowContext(ctx, query, fmt.Sprintf("%s-%d-%%", prefix, year)).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("last number for year: %w", err)
	}
	return last.String, nil
}

// ---- Dispatch -----------------------------------------------------------

type CreateDispatchParams struct {
	ID             uuid.UUID
	DispatchNumber string
	CustomerID     uuid.UUID
	BillToID       uuid.NullUUID
	TransportID    uuid.NullUUID
	VehicleID      uuid.NullUUID
	InvoiceNumber  sql.NullString
	Notes          sql.NullString
	DispatchDate   sql.NullTime
	DispatchTZ     string
	CreatedBy      uuid.UUID
}

func (q *Queries) CreateDispatch(ctx context.Context, ex execer, p CreateDispatchParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO dispatches (
			id, dispatch_number, customer_id, bill_to_id, transport_id, vehicle_id,
			invoice_number, notes, status, dispatch_date, dispatch_tz, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'DISPATCHED',$9,$10,$11,NOW(),NOW())`,
		p.ID, p.DispatchNumber, p.CustomerID, p.BillToID, p.TransportID, p.VehicleID,
		p.InvoiceNumber, p.Notes, p.DispatchDate, p.DispatchTZ, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create dispatch: %w", err)
	}
	return nil
}

type CreateDispatchItemParams struct {
	ID               uuid.UUID
	DispatchID       uuid.UUID
	StockID          uuid.UUID
	ProductVariantID uuid.UUID
	ItemType         string
	Quantity         int
	LengthMeters     sql.NullString
	CutPieceID       uuid.NullUUID
	SparePieceIDs    []uuid.UUID
	PieceCount       sql.NullInt64
	PieceLength      sql.NullString
	BundleSize       sql.NullInt64
	PiecesPerBundle  sql.NullInt64
	Notes            sql.NullString
}

func (q *Queries) CreateDispatchItem(ctx context.Context, ex execer, p CreateDispatchItemParams) error {
	sparePieceIDs, err := json.Marshal(p.SparePieceIDs)
	if err != nil {
		return fmt.Errorf("marshal spare piece ids: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO dispatch_items (
			id, dispatch_id, stock_id, product_variant_id, item_type, quantity, length_meters,
			cut_piece_id, spare_piece_ids, piece_count, piece_length, bundle_size, pieces_per_bundle,
			notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())`,
		p.ID, p.DispatchID, p.StockID, p.ProductVariantID, p.ItemType, p.Quantity, p.LengthMeters,
		p.CutPieceID, sparePieceIDs, p.PieceCount, p.PieceLength, p.BundleSize, p.PiecesPerBundle, p.Notes,
	)
	if err != nil {
		return fmt.Errorf("create dispatch item: %w", err)
	}
	return nil
}

func (q *Queries) MarkDispatchReverted(ctx context.Context, ex execer, id, revertedBy uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE dispatches SET status = 'REVERTED', reverted_at = NOW(), reverted_by = $2, updated_at = NOW()
		WHERE id = $1`, id, revertedBy)
	if err != nil {
		return fmt.Errorf("mark dispatch reverted: %w", err)
	}
	return nil
}

type DispatchItemRow struct {
	ID            uuid.UUID
	DispatchID    uuid.UUID
	StockID       uuid.UUID
	ItemType      string
	Quantity      int
	CutPieceID    uuid.NullUUID
	SparePieceIDs []uuid.UUID
}

func (q *Queries) ListDispatchItems(ctx context.Context, ex execer, dispatchID uuid.UUID) ([]DispatchItemRow, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT id, dispatch_id, stock_id, item_type, quantity, cut_piece_id, spare_piece_ids
		FROM dispatch_items WHERE dispatch_id = $1`, dispatchID)
	if err != nil {
		return nil, fmt.Errorf("list dispatch items: %w", err)
	}
	defer rows.Close()
	var out []DispatchItemRow
	for rows.Next() {
		var d DispatchItemRow
		var rawIDs json.RawMessage
		if err := rows.Scan(&d.ID, &d.DispatchID, &d.StockID, &d.ItemType, &d.Quantity, &d.CutPieceID, &rawIDs); err != nil {
			return nil, err
		}
		if len(rawIDs) > 0 {
			_ = json.Unmarshal(rawIDs, &d.SparePieceIDs)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- Return -------------------------------------------------------------

type CreateReturnParams struct {
	ID           uuid.UUID
	ReturnNumber string
	CustomerID   uuid.UUID
	ReturnDate   sql.NullTime
	Notes        sql.NullString
	CreatedBy    uuid.UUID
}

func (q *Queries) CreateReturn(ctx context.Context, ex execer, p CreateReturnParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO returns (id, return_number, customer_id, return_date, notes, status, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,'RECEIVED',$6,NOW())`,
		p.ID, p.ReturnNumber, p.CustomerID, p.ReturnDate, p.Notes, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create return: %w", err)
	}
	return nil
}

func (q *Queries) MarkReturnReverted(ctx context.Context, ex execer, id, revertedBy uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE returns SET status = 'REVERTED', reverted_at = NOW(), reverted_by = $2 WHERE id = $1`, id, revertedBy)
	if err != nil {
		return fmt.Errorf("mark return reverted: %w", err)
	}
	return nil
}

type CreateReturnItemParams struct {
	ID               uuid.UUID
	ReturnID         uuid.UUID
	ProductVariantID uuid.UUID
	BatchID          uuid.UUID
	ItemType         string
	Quantity         int
	PieceCount       sql.NullInt64
	PieceLength      sql.NullString
}

func (q *Queries) CreateReturnItem(ctx context.Context, ex execer, p CreateReturnItemParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO return_items (id, return_id, product_variant_id, batch_id, item_type, quantity,
			piece_count, piece_length, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		p.ID, p.ReturnID, p.ProductVariantID, p.BatchID, p.ItemType, p.Quantity, p.PieceCount, p.PieceLength,
	)
	if err != nil {
		return fmt.Errorf("create return item: %w", err)
	}
	return nil
}

func (q *Queries) CreateReturnRoll(ctx context.Context, ex execer, id, returnItemID, stockID uuid.UUID, lengthMeters string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO return_rolls (id, return_item_id, stock_id, length_meters) VALUES ($1,$2,$3,$4)`,
		id, returnItemID, stockID, lengthMeters,
	)
	if err != nil {
		return fmt.Errorf("create return roll: %w", err)
	}
	return nil
}

func (q *Queries) CreateReturnBundle(ctx context.Context, ex execer, id, returnItemID, stockID uuid.UUID, bundleSize int, pieceLength string, quantity int) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO return_bundles (id, return_item_id, stock_id, bundle_size, piece_length, quantity)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		id, returnItemID, stockID, bundleSize, pieceLength, quantity,
	)
	if err != nil {
		return fmt.Errorf("create return bundle: %w", err)
	}
	return nil
}

// ---- Scrap ---------------------------------------------------------------

type CreateScrapParams struct {
	ID            uuid.UUID
	ScrapNumber   string
	ScrapDate     sql.NullTime
	Reason        string
	TotalQuantity int
	EstimatedLoss sql.NullString
	Notes         sql.NullString
	CreatedBy     uuid.UUID
}

func (q *Queries) CreateScrap(ctx context.Context, ex execer, p CreateScrapParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO scraps (id, scrap_number, scrap_date, reason, status, total_quantity,
			estimated_loss, notes, created_by, created_at)
		VALUES ($1,$2,$3,$4,'SCRAPPED',$5,$6,$7,$8,NOW())`,
		p.ID, p.ScrapNumber, p.ScrapDate, p.Reason, p.TotalQuantity, p.EstimatedLoss, p.Notes, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create scrap: %w", err)
	}
	return nil
}

type CreateScrapItemParams struct {
	ID               uuid.UUID
	ScrapID          uuid.UUID
	StockID          uuid.UUID
	ItemType         string
	QuantityScrapped int
	OriginalQuantity int
	OriginalStatus   string
	LengthMeters     sql.NullString
	EstimatedValue   sql.NullString
}

func (q *Queries) CreateScrapItem(ctx context.Context, ex execer, p CreateScrapItemParams) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO scrap_items (id, scrap_id, stock_id, item_type, quantity_scrapped,
			original_quantity, original_status, length_meters, estimated_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.ScrapID, p.StockID, p.ItemType, p.QuantityScrapped, p.OriginalQuantity,
		p.OriginalStatus, p.LengthMeters, p.EstimatedValue,
	)
	if err != nil {
		return fmt.Errorf("create scrap item: %w", err)
	}
	return nil
}

func (q *Queries) CreateScrapPiece(ctx context.Context, ex execer, id, scrapItemID, originalPieceID uuid.UUID, pieceKind string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO scrap_pieces (id, scrap_item_id, original_piece_id, piece_kind) VALUES ($1,$2,$3,$4)`,
		id, scrapItemID, originalPieceID, pieceKind,
	)
	if err != nil {
		return fmt.Errorf("create scrap piece: %w", err)
	}
	return nil
}

func (q *Queries) MarkScrapCancelled(ctx context.Context, ex execer, id uuid.UUID) error {
	_, err := ex.ExecContext(ctx, `UPDATE scraps SET status = 'CANCELLED' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark scrap cancelled: %w", err)
	}
	return nil
}
