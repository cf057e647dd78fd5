// Package db is the persistence gateway: thin, hand-written SQL against
// Postgres via lib/pq, following the teacher's Queries-struct convention
// (one struct wrapping *sql.DB, one method per statement, no ORM).
package db

import (
	"database/sql"

	"github.com/google/uuid"
)

// Row-shape params mirror inventory.* entities but use driver-friendly
// primitives (uuid.UUID, sql.Null*) at the boundary; internal/engine maps
// these to/from inventory.* domain structs.

// CreateBatchParams are the columns written on batch insert (§4.2).
type CreateBatchParams struct {
	ID               uuid.UUID
	BatchCode        string
	BatchNo          int
	ProductVariantID uuid.UUID
	ProductionDate   sql.NullTime
	InitialQuantity  int
	WeightPerMeter   sql.NullString
	TotalWeight      sql.NullString
	PieceLength      sql.NullString
	Notes            sql.NullString
	AttachmentRef    sql.NullString
	CreatedBy        uuid.UUID
}

// LockMode selects the row-locking clause a read query applies (§5).
type LockMode int

const (
	LockNone LockMode = iota
	LockForUpdate
	LockForUpdateNoWait
)

func (m LockMode) clause() string {
	switch m {
	case LockForUpdate:
		return " FOR UPDATE"
	case LockForUpdateNoWait:
		return " FOR UPDATE NOWAIT"
	default:
		return ""
	}
}
