package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pinggolf/inventory-engine/internal/engine"
)

// ---- ListAvailableStock (§6.1) ---------------------------------------------

type availableStockResponse struct {
	ID               string `json:"id"`
	BatchID          string `json:"batch_id"`
	BatchCode        string `json:"batch_code"`
	ProductVariantID string `json:"product_variant_id"`
	StockType        string `json:"stock_type"`
	Quantity         int    `json:"quantity"`
	Status           string `json:"status"`
}

func (s *Server) handleListAvailableStock(w http.ResponseWriter, r *http.Request) {
	var filter engine.StockFilter
	if st := r.URL.Query().Get("stock_type"); st != "" {
		filter.StockType = &st
	}
	if bid := r.URL.Query().Get("batch_id"); bid != "" {
		parsed, err := parseUUID(bid)
		if err != nil {
			http.Error(w, "invalid batch_id", http.StatusBadRequest)
			return
		}
		filter.BatchID = &parsed
	}

	rows, err := s.engine.ListAvailableStock(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]availableStockResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, availableStockResponse{
			ID: row.ID.String(), BatchID: row.BatchID.String(), BatchCode: row.BatchCode,
			ProductVariantID: row.ProductVariantID.String(), StockType: row.StockType,
			Quantity: row.Quantity, Status: row.Status,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- GetBatchHistory (§6.1) -------------------------------------------------

type transactionResponse struct {
	ID              string `json:"id"`
	TransactionType string `json:"transaction_type"`
	FromStockID     string `json:"from_stock_id,omitempty"`
	ToStockID       string `json:"to_stock_id,omitempty"`
	BatchID         string `json:"batch_id,omitempty"`
	DispatchID      string `json:"dispatch_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at"`
	RevertedAt      string `json:"reverted_at,omitempty"`
}

func (s *Server) handleGetBatchHistory(w http.ResponseWriter, r *http.Request) {
	batchID, err := parseUUID(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid batch id", http.StatusBadRequest)
		return
	}
	rows, err := s.engine.GetBatchHistory(r.Context(), batchID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, transactionResponse{
			ID: row.ID.String(), TransactionType: row.TransactionType,
			FromStockID: nullUUIDOrEmpty(row.FromStockID), ToStockID: nullUUIDOrEmpty(row.ToStockID),
			BatchID: nullUUIDOrEmpty(row.BatchID), DispatchID: nullUUIDOrEmpty(row.DispatchID),
			Notes: row.Notes.String, CreatedAt: row.CreatedAt.Time.Format(time.RFC3339),
			RevertedAt: nullTimeOrEmpty(row.RevertedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- GetPieceAuditTrail (§6.1) ----------------------------------------------

type pieceAuditTrailResponse struct {
	PieceID        string `json:"piece_id"`
	CreatedByTxnID string `json:"created_by_transaction_id"`
	DeletedByTxnID string `json:"deleted_by_transaction_id,omitempty"`
	DispatchID     string `json:"dispatch_id,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func (s *Server) handleGetPieceAuditTrail(w http.ResponseWriter, r *http.Request) {
	pieceID, err := parseUUID(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid piece id", http.StatusBadRequest)
		return
	}
	kind := engine.PieceKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = engine.PieceKindCutRoll
	}
	trail, err := s.engine.GetPieceAuditTrail(r.Context(), pieceID, kind)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pieceAuditTrailResponse{
		PieceID: trail.PieceID.String(), CreatedByTxnID: trail.CreatedByTxnID.String(),
		DeletedByTxnID: nullUUIDOrEmpty(trail.DeletedByTxnID), DispatchID: nullUUIDOrEmpty(trail.DispatchID),
		Status: trail.Status, CreatedAt: nullTimeOrEmpty(trail.CreatedAt),
	})
}

// ---- GetTransactionTimeline (§6.1) ------------------------------------------

func (s *Server) handleGetTransactionTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter engine.TimelineFilter
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		filter.To = t
	}
	if lim := q.Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	rows, err := s.engine.GetTransactionTimeline(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ---- GetStockSummary (§2 Query Surface "simple counts") --------------------

func (s *Server) handleGetStockSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.GetStockSummary(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
