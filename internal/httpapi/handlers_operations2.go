package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/pinggolf/inventory-engine/internal/engine"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// ---- CreateReturn (§4.7) -----------------------------------------------------

type returnRollRequest struct {
	LengthMeters string `json:"length_meters"`
}

type returnBundleRequest struct {
	BundleSize  int    `json:"bundle_size"`
	PieceLength string `json:"piece_length"`
	Quantity    int    `json:"quantity"`
}

type returnItemRequest struct {
	ProductTypeID string                `json:"product_type_id"`
	BrandID       string                `json:"brand_id"`
	Parameters    map[string]string     `json:"parameters"`
	ItemType      string                `json:"item_type"`
	Quantity      int                   `json:"quantity"`
	Rolls         []returnRollRequest   `json:"rolls"`
	Bundles       []returnBundleRequest `json:"bundles"`
	PieceCount    int                   `json:"piece_count"`
	PieceLengthM  string                `json:"piece_length_m"`
	IsSprinkler   bool                  `json:"is_sprinkler"`
}

type createReturnRequest struct {
	CustomerID string              `json:"customer_id"`
	ReturnDate string              `json:"return_date"`
	Notes      string              `json:"notes"`
	Items      []returnItemRequest `json:"items"`
}

type createReturnResponse struct {
	ReturnID       string   `json:"return_id"`
	ReturnNumber   string   `json:"return_number"`
	TransactionIDs []string `json:"transaction_ids"`
}

func (s *Server) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	customerID, err := parseUUID(req.CustomerID)
	if err != nil {
		http.Error(w, "invalid customer_id", http.StatusBadRequest)
		return
	}
	returnDate, err := parseNullTime(req.ReturnDate)
	if err != nil {
		http.Error(w, "invalid return_date", http.StatusBadRequest)
		return
	}

	items := make([]engine.ReturnItemInput, 0, len(req.Items))
	for i, it := range req.Items {
		productTypeID, err := parseUUID(it.ProductTypeID)
		if err != nil {
			http.Error(w, itemErr(i, "invalid product_type_id"), http.StatusBadRequest)
			return
		}
		brandID, err := parseUUID(it.BrandID)
		if err != nil {
			http.Error(w, itemErr(i, "invalid brand_id"), http.StatusBadRequest)
			return
		}
		pieceLength, err := parseDecimal(it.PieceLengthM)
		if err != nil {
			http.Error(w, itemErr(i, "invalid piece_length_m"), http.StatusBadRequest)
			return
		}
		rolls := make([]engine.ReturnRollInput, 0, len(it.Rolls))
		for _, roll := range it.Rolls {
			length, err := parseDecimal(roll.LengthMeters)
			if err != nil {
				http.Error(w, itemErr(i, "invalid rolls[].length_meters"), http.StatusBadRequest)
				return
			}
			rolls = append(rolls, engine.ReturnRollInput{LengthMeters: length})
		}
		bundles := make([]engine.ReturnBundleInput, 0, len(it.Bundles))
		for _, bundle := range it.Bundles {
			length, err := parseDecimal(bundle.PieceLength)
			if err != nil {
				http.Error(w, itemErr(i, "invalid bundles[].piece_length"), http.StatusBadRequest)
				return
			}
			bundles = append(bundles, engine.ReturnBundleInput{
				BundleSize:  bundle.BundleSize,
				PieceLength: length,
				Quantity:    bundle.Quantity,
			})
		}
		items = append(items, engine.ReturnItemInput{
			ProductTypeID: productTypeID,
			BrandID:       brandID,
			Parameters:    it.Parameters,
			ItemType:      inventory.StockType(it.ItemType),
			Quantity:      it.Quantity,
			Rolls:         rolls,
			Bundles:       bundles,
			PieceCount:    it.PieceCount,
			PieceLengthM:  pieceLength,
			IsSprinkler:   it.IsSprinkler,
		})
	}

	result, err := s.engine.CreateReturn(r.Context(), engine.CreateReturnInput{
		CustomerID: customerID,
		ReturnDate: returnDate,
		Notes:      req.Notes,
		Items:      items,
		CreatedBy:  actingUser(r),
	}, findOrCreateVariant)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	txnIDs := make([]string, len(result.TransactionIDs))
	for i, id := range result.TransactionIDs {
		txnIDs[i] = id.String()
	}
	writeJSON(w, http.StatusCreated, createReturnResponse{
		ReturnID:       result.ReturnID.String(),
		ReturnNumber:   result.ReturnNumber,
		TransactionIDs: txnIDs,
	})
}

// ---- CreateScrap (§4.8) -----------------------------------------------------

type scrapItemRequest struct {
	StockID         string   `json:"stock_id"`
	QuantityToScrap int      `json:"quantity_to_scrap"`
	PieceIDs        []string `json:"piece_ids"`
	ItemType        string   `json:"item_type"`
	EstimatedValue  string   `json:"estimated_value"`
}

type createScrapRequest struct {
	Reason    string             `json:"reason"`
	ScrapDate string             `json:"scrap_date"`
	Items     []scrapItemRequest `json:"items"`
}

type createScrapResponse struct {
	ScrapID       string `json:"scrap_id"`
	ScrapNumber   string `json:"scrap_number"`
	TotalQuantity int    `json:"total_quantity"`
}

func (s *Server) handleCreateScrap(w http.ResponseWriter, r *http.Request) {
	var req createScrapRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	scrapDate, err := parseNullTime(req.ScrapDate)
	if err != nil {
		http.Error(w, "invalid scrap_date", http.StatusBadRequest)
		return
	}

	items := make([]engine.ScrapItemInput, 0, len(req.Items))
	for i, it := range req.Items {
		stockID, err := parseUUID(it.StockID)
		if err != nil {
			http.Error(w, itemErr(i, "invalid stock_id"), http.StatusBadRequest)
			return
		}
		pieceIDs, err := parseUUIDList(it.PieceIDs)
		if err != nil {
			http.Error(w, itemErr(i, "invalid piece_ids"), http.StatusBadRequest)
			return
		}
		var estValue sql.NullString
		if it.EstimatedValue != "" {
			estValue = sql.NullString{String: it.EstimatedValue, Valid: true}
		}
		items = append(items, engine.ScrapItemInput{
			StockID:         stockID,
			QuantityToScrap: it.QuantityToScrap,
			PieceIDs:        pieceIDs,
			ItemType:        inventory.StockType(it.ItemType),
			EstimatedValue:  estValue,
		})
	}

	result, err := s.engine.CreateScrap(r.Context(), engine.CreateScrapInput{
		Reason:    req.Reason,
		ScrapDate: scrapDate,
		Items:     items,
		CreatedBy: actingUser(r),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createScrapResponse{
		ScrapID:       result.ScrapID.String(),
		ScrapNumber:   result.ScrapNumber,
		TotalQuantity: result.TotalQuantity,
	})
}

// ---- RevertTransaction (§4.9, §6.3) ------------------------------------------

type revertTransactionRequest struct {
	Handle string `json:"transaction_handle"`
}

type revertTransactionResponse struct {
	OK      bool   `json:"ok"`
	Details string `json:"details"`
}

func (s *Server) handleRevertTransaction(w http.ResponseWriter, r *http.Request) {
	var req revertTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	result, err := s.engine.RevertTransaction(r.Context(), req.Handle, actingUser(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revertTransactionResponse{OK: result.OK, Details: result.Details})
}
