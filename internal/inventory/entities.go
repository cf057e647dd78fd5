// Package inventory defines the data model (§3) for the aggregate
// inventory engine: production batches, aggregate stock rows, the
// per-piece records that back CUT_ROLL/SPARE stock, and the append-only
// transaction log that makes every operation revertible.
//
// Struct field shapes follow the teacher's internal/db/models.go idiom:
// sql.NullString/sql.NullTime for optional columns, json.RawMessage for
// embedded JSON, decimal.Decimal (not float64) for anything with monetary
// or dimensional precision per §3 ("decimal with at least 4 fractional
// digits").
package inventory

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockType enumerates the four aggregate stock kinds (§3.1).
type StockType string

const (
	StockFullRoll StockType = "FULL_ROLL"
	StockCutRoll  StockType = "CUT_ROLL"
	StockBundle   StockType = "BUNDLE"
	StockSpare    StockType = "SPARE"
)

// StockStatus is the lifecycle status of an aggregate InventoryStock row.
type StockStatus string

const (
	StockInStock StockStatus = "IN_STOCK"
	StockSoldOut StockStatus = "SOLD_OUT"
)

// PieceStatus is the lifecycle status of an HdpeCutPiece or
// SprinklerSparePiece row. Transitions are forward-only (IN_STOCK →
// DISPATCHED/SCRAPPED/SOLD_OUT) except through an explicit Revert (§3.2).
type PieceStatus string

const (
	PieceInStock   PieceStatus = "IN_STOCK"
	PieceDispatch  PieceStatus = "DISPATCHED"
	PieceScrapped  PieceStatus = "SCRAPPED"
	PieceSoldOut   PieceStatus = "SOLD_OUT"
)

// TransactionType enumerates the 7 operations of §4 as recorded in the log.
type TransactionType string

const (
	TxnProduction    TransactionType = "PRODUCTION"
	TxnCutRoll       TransactionType = "CUT_ROLL"
	TxnSplitBundle   TransactionType = "SPLIT_BUNDLE"
	TxnCombineSpares TransactionType = "COMBINE_SPARES"
	TxnDispatch      TransactionType = "DISPATCH"
	TxnReturn        TransactionType = "RETURN"
	TxnScrap         TransactionType = "SCRAP"
)

// DispatchStatus / ReturnStatus / ScrapStatus mirror their entity's
// lifecycle (§3.1).
type DispatchStatus string

const (
	DispatchActive   DispatchStatus = "DISPATCHED"
	DispatchReverted DispatchStatus = "REVERTED"
)

type ReturnStatus string

const (
	ReturnReceived ReturnStatus = "RECEIVED"
	ReturnReverted ReturnStatus = "REVERTED"
)

type ScrapStatus string

const (
	ScrapActive    ScrapStatus = "SCRAPPED"
	ScrapCancelled ScrapStatus = "CANCELLED"
)

// DispatchItemType enumerates the five dispatchable item shapes (§4.6).
type DispatchItemType string

const (
	ItemFullRoll     DispatchItemType = "FULL_ROLL"
	ItemCutRoll      DispatchItemType = "CUT_ROLL"
	ItemCutPiece     DispatchItemType = "CUT_PIECE"
	ItemBundle       DispatchItemType = "BUNDLE"
	ItemSparePieces  DispatchItemType = "SPARE_PIECES"
)

// ProductVariant is referenced, not owned, by the core (§3.1: external).
type ProductVariant struct {
	ID             uuid.UUID
	ProductTypeID  uuid.UUID
	BrandID        uuid.UUID
	Parameters     map[string]string
	ProductTypeTag string // "HDPE Pipe" | "Sprinkler Pipe" — needed to pick Production shape A/B vs C
}

// Batch is a production lot (§3.1).
type Batch struct {
	ID               uuid.UUID
	BatchCode        string
	BatchNo          int
	ProductVariantID uuid.UUID
	ProductionDate   time.Time
	InitialQuantity  int // immutable
	CurrentQuantity  int // derived, Rule B
	WeightPerMeter   decimal.NullDecimal
	TotalWeight      decimal.NullDecimal
	PieceLength      decimal.NullDecimal
	Notes            sql.NullString
	AttachmentRef    sql.NullString
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        sql.NullTime
}

// InventoryStock is the aggregate row of §3.1.
type InventoryStock struct {
	ID               uuid.UUID
	BatchID          uuid.UUID
	ProductVariantID uuid.UUID
	StockType        StockType
	Quantity         int
	Status           StockStatus
	LengthPerUnit    decimal.NullDecimal // FULL_ROLL
	PiecesPerBundle  sql.NullInt64       // BUNDLE
	PieceLength      decimal.NullDecimal // BUNDLE/SPARE
	ParentStockID    uuid.NullUUID
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        sql.NullTime
}

// HdpeCutPiece is an individually tracked length of HDPE pipe (§3.1).
type HdpeCutPiece struct {
	ID                     uuid.UUID
	StockID                uuid.UUID
	LengthMeters           decimal.Decimal
	Status                 PieceStatus
	DispatchID             uuid.NullUUID
	CreatedByTransactionID uuid.UUID // IMMUTABLE after insert
	OriginalStockID        uuid.UUID // IMMUTABLE
	DeletedByTransactionID uuid.NullUUID
	Notes                  sql.NullString
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              sql.NullTime
}

// SprinklerSparePiece is a group of piece_count indistinguishable spare
// pieces (§3.1).
type SprinklerSparePiece struct {
	ID                     uuid.UUID
	StockID                uuid.UUID
	PieceCount             int
	PieceLength            decimal.NullDecimal
	Status                 PieceStatus
	DispatchID             uuid.NullUUID
	ReservedByTransaction  uuid.NullUUID
	ReservedAt             sql.NullTime
	CreatedByTransactionID uuid.UUID // IMMUTABLE
	OriginalStockID        uuid.UUID // IMMUTABLE
	DeletedByTransactionID uuid.NullUUID
	Notes                  sql.NullString
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
	DeletedAt              sql.NullTime
}

// CutPieceDetail is one entry of an InventoryTransaction's
// cut_piece_details JSON array (§3.1, §9 "JSON-embedded snapshot").
type CutPieceDetail struct {
	Length  decimal.Decimal `json:"length"`
	PieceID uuid.UUID       `json:"piece_id"`
}

// ProductionSnapshot is the load-bearing JSON snapshot §4.2/§9 requires on
// every PRODUCTION InventoryTransaction.
type ProductionSnapshot struct {
	Stocks []ProductionSnapshotStock `json:"stocks"`
}

type ProductionSnapshotStock struct {
	StockType       StockType         `json:"stock_type"`
	Quantity        int               `json:"quantity"`
	LengthPerUnit   *decimal.Decimal  `json:"length_per_unit,omitempty"`
	PiecesPerBundle *int              `json:"pieces_per_bundle,omitempty"`
	PieceLength     *decimal.Decimal  `json:"piece_length_meters,omitempty"`
	PieceLengths    []decimal.Decimal `json:"piece_lengths,omitempty"`     // Shape B
	SpareGroups     []int             `json:"spare_groups,omitempty"`      // Shape C spares
}

// InventoryTransaction is the append-only log entry of §3.1.
type InventoryTransaction struct {
	ID               uuid.UUID
	TransactionType  TransactionType
	FromStockID      uuid.NullUUID
	FromQuantity     sql.NullInt64
	FromLength       decimal.NullDecimal
	FromPieces       sql.NullInt64
	ToStockID        uuid.NullUUID
	ToQuantity       sql.NullInt64
	ToPieces         sql.NullInt64
	BatchID          uuid.NullUUID
	DispatchID       uuid.NullUUID
	DispatchItemID   uuid.NullUUID
	CutPieceDetails  json.RawMessage // []CutPieceDetail
	Snapshot         json.RawMessage // ProductionSnapshot, PRODUCTION only
	Notes            sql.NullString
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
	RevertedAt       sql.NullTime
	RevertedBy       uuid.NullUUID
}

// Dispatch is a customer shipment (§3.1).
type Dispatch struct {
	ID              uuid.UUID
	DispatchNumber  string
	CustomerID      uuid.UUID
	BillToID        uuid.NullUUID
	TransportID     uuid.NullUUID
	VehicleID       uuid.NullUUID
	InvoiceNumber   sql.NullString
	Notes           sql.NullString
	Status          DispatchStatus
	DispatchDate    time.Time
	DispatchTZ      string // explicit offset per §4.6 step 2 when backdated
	RevertedAt      sql.NullTime
	RevertedBy      uuid.NullUUID
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       sql.NullTime
}

// DispatchItem is one line of a Dispatch (§3.1).
type DispatchItem struct {
	ID               uuid.UUID
	DispatchID       uuid.UUID
	StockID          uuid.UUID
	ProductVariantID uuid.UUID
	ItemType         DispatchItemType
	Quantity         int
	LengthMeters     decimal.NullDecimal
	CutPieceID       uuid.NullUUID
	SparePieceIDs    []uuid.UUID
	PieceCount       sql.NullInt64
	PieceLength      decimal.NullDecimal
	BundleSize       sql.NullInt64
	PiecesPerBundle  sql.NullInt64
	Notes            sql.NullString
	CreatedAt        time.Time
}

// Return is a customer return (§3.1).
type Return struct {
	ID           uuid.UUID
	ReturnNumber string
	CustomerID   uuid.UUID
	ReturnDate   time.Time
	Notes        sql.NullString
	Status       ReturnStatus
	RevertedAt   sql.NullTime
	RevertedBy   uuid.NullUUID
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	DeletedAt    sql.NullTime
}

// ReturnItem / ReturnRoll / ReturnBundle nest under a Return (§3.1).
type ReturnItem struct {
	ID               uuid.UUID
	ReturnID         uuid.UUID
	ProductVariantID uuid.UUID
	BatchID          uuid.UUID
	ItemType         StockType
	Quantity         int
	PieceCount       sql.NullInt64
	PieceLength      decimal.NullDecimal
	CreatedAt        time.Time
}

type ReturnRoll struct {
	ID           uuid.UUID
	ReturnItemID uuid.UUID
	StockID      uuid.UUID
	LengthMeters decimal.Decimal
}

type ReturnBundle struct {
	ID              uuid.UUID
	ReturnItemID    uuid.UUID
	StockID         uuid.UUID
	BundleSize      int
	PieceLength     decimal.Decimal
	Quantity        int
}

// Scrap is a write-off event (§3.1).
type Scrap struct {
	ID             uuid.UUID
	ScrapNumber    string
	ScrapDate      time.Time
	Reason         string
	Status         ScrapStatus
	TotalQuantity  int // derived
	EstimatedLoss  decimal.NullDecimal
	Notes          sql.NullString
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	DeletedAt      sql.NullTime
}

// ScrapItem / ScrapPiece nest under a Scrap (§3.1).
type ScrapItem struct {
	ID               uuid.UUID
	ScrapID          uuid.UUID
	StockID          uuid.UUID
	ItemType         StockType
	QuantityScrapped int
	OriginalQuantity int // snapshot for revert
	OriginalStatus   StockStatus
	LengthMeters     decimal.NullDecimal
	EstimatedValue   decimal.NullDecimal
}

type ScrapPiece struct {
	ID              uuid.UUID
	ScrapItemID     uuid.UUID
	OriginalPieceID uuid.UUID
	PieceKind       string // "HDPE" | "SPRINKLER"
}
