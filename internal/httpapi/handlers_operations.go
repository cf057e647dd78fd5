package httpapi

import (
	"net/http"
	"strconv"

	"github.com/pinggolf/inventory-engine/internal/engine"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// ---- ProduceBatch (§4.2) ---------------------------------------------------

type produceRollShape struct {
	NumberOfRolls int    `json:"number_of_rolls"`
	LengthPerRoll string `json:"length_per_roll"`
}

type produceCutShape struct {
	Lengths []string `json:"lengths"`
}

type produceBundleShape struct {
	NumberOfBundles int      `json:"number_of_bundles"`
	BundleSize      int      `json:"bundle_size"`
	PieceLengthM    string   `json:"piece_length_m"`
	SpareGroups     []int    `json:"spare_groups"`
}

type produceBatchRequest struct {
	ProductTypeID  string            `json:"product_type_id"`
	BrandID        string            `json:"brand_id"`
	Parameters     map[string]string `json:"parameters"`
	ProductionDate string            `json:"production_date"`
	BatchCode      string            `json:"batch_code"`
	BatchNo        int               `json:"batch_no"`
	WeightPerMeter string            `json:"weight_per_meter"`
	Notes          string            `json:"notes"`
	AttachmentRef  string            `json:"attachment_ref"`

	RollShape   *produceRollShape   `json:"roll_shape"`
	CutShape    *produceCutShape    `json:"cut_shape"`
	BundleShape *produceBundleShape `json:"bundle_shape"`
}

type produceBatchResponse struct {
	BatchID   string `json:"batch_id"`
	BatchCode string `json:"batch_code"`
}

func (s *Server) handleProduceBatch(w http.ResponseWriter, r *http.Request) {
	var req produceBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	productTypeID, err := parseUUID(req.ProductTypeID)
	if err != nil {
		http.Error(w, "invalid product_type_id", http.StatusBadRequest)
		return
	}
	brandID, err := parseUUID(req.BrandID)
	if err != nil {
		http.Error(w, "invalid brand_id", http.StatusBadRequest)
		return
	}

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, "failed to begin variant lookup", http.StatusInternalServerError)
		return
	}
	variantID, err := findOrCreateVariant(r.Context(), tx, productTypeID, brandID, req.Parameters)
	if err != nil {
		tx.Rollback()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(); err != nil {
		http.Error(w, "failed to commit variant lookup", http.StatusInternalServerError)
		return
	}

	prodDate, err := parseNullTime(req.ProductionDate)
	if err != nil {
		http.Error(w, "invalid production_date", http.StatusBadRequest)
		return
	}
	weight, err := parseNullDecimal(req.WeightPerMeter)
	if err != nil {
		http.Error(w, "invalid weight_per_meter", http.StatusBadRequest)
		return
	}

	in := engine.ProduceBatchInput{
		ProductTypeID:    productTypeID,
		BrandID:          brandID,
		ProductVariantID: variantID,
		Parameters:       req.Parameters,
		ProductionDate:   prodDate,
		BatchCode:        req.BatchCode,
		BatchNo:          req.BatchNo,
		WeightPerMeter:   weight,
		Notes:            req.Notes,
		AttachmentRef:    req.AttachmentRef,
		CreatedBy:        actingUser(r),
	}

	if req.RollShape != nil {
		length, err := parseDecimal(req.RollShape.LengthPerRoll)
		if err != nil {
			http.Error(w, "invalid roll_shape.length_per_roll", http.StatusBadRequest)
			return
		}
		in.RollShape = &engine.RollInput{NumberOfRolls: req.RollShape.NumberOfRolls, LengthPerRoll: length}
	}
	if req.CutShape != nil {
		lengths, err := parseDecimalList(req.CutShape.Lengths)
		if err != nil {
			http.Error(w, "invalid cut_shape.lengths", http.StatusBadRequest)
			return
		}
		in.CutShape = &engine.CutRollInput{Lengths: lengths}
	}
	if req.BundleShape != nil {
		length, err := parseDecimal(req.BundleShape.PieceLengthM)
		if err != nil {
			http.Error(w, "invalid bundle_shape.piece_length_m", http.StatusBadRequest)
			return
		}
		in.BundleShape = &engine.BundleInput{
			NumberOfBundles: req.BundleShape.NumberOfBundles,
			BundleSize:      req.BundleShape.BundleSize,
			PieceLengthM:    length,
			SpareGroups:     req.BundleShape.SpareGroups,
		}
	}

	result, err := s.engine.ProduceBatch(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, produceBatchResponse{BatchID: result.BatchID.String(), BatchCode: result.BatchCode})
}

// ---- CutRoll (§4.3) ---------------------------------------------------------

type cutRollRequest struct {
	SourceStockID string   `json:"source_stock_id"`
	RecutPieceID  string   `json:"recut_piece_id"`
	CutLengths    []string `json:"cut_lengths"`
}

type cutRollResponse struct {
	TransactionID string   `json:"transaction_id"`
	CutStockID    string   `json:"cut_stock_id"`
	PieceIDs      []string `json:"piece_ids"`
}

func (s *Server) handleCutRoll(w http.ResponseWriter, r *http.Request) {
	var req cutRollRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	sourceID, err := parseUUID(req.SourceStockID)
	if err != nil {
		http.Error(w, "invalid source_stock_id", http.StatusBadRequest)
		return
	}
	recutID, err := parseNullUUID(req.RecutPieceID)
	if err != nil {
		http.Error(w, "invalid recut_piece_id", http.StatusBadRequest)
		return
	}
	lengths, err := parseDecimalList(req.CutLengths)
	if err != nil {
		http.Error(w, "invalid cut_lengths", http.StatusBadRequest)
		return
	}

	result, err := s.engine.CutRoll(r.Context(), engine.CutRollRequest{
		SourceStockID: sourceID,
		RecutPieceID:  recutID,
		CutLengths:    lengths,
		CreatedBy:     actingUser(r),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	pieceIDs := make([]string, len(result.PieceIDs))
	for i, id := range result.PieceIDs {
		pieceIDs[i] = id.String()
	}
	writeJSON(w, http.StatusCreated, cutRollResponse{
		TransactionID: result.TransactionID.String(),
		CutStockID:    result.CutStockID.String(),
		PieceIDs:      pieceIDs,
	})
}

// ---- SplitBundle (§4.4) ------------------------------------------------------

type splitBundleRequest struct {
	SourceStockID string `json:"source_stock_id"`
	PiecesToSplit []int  `json:"pieces_to_split"`
}

type splitBundleResponse struct {
	TransactionID string `json:"transaction_id"`
	SpareStockID  string `json:"spare_stock_id"`
}

func (s *Server) handleSplitBundle(w http.ResponseWriter, r *http.Request) {
	var req splitBundleRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	sourceID, err := parseUUID(req.SourceStockID)
	if err != nil {
		http.Error(w, "invalid source_stock_id", http.StatusBadRequest)
		return
	}

	result, err := s.engine.SplitBundle(r.Context(), engine.SplitBundleRequest{
		SourceStockID: sourceID,
		PiecesToSplit: req.PiecesToSplit,
		CreatedBy:     actingUser(r),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, splitBundleResponse{
		TransactionID: result.TransactionID.String(),
		SpareStockID:  result.SpareStockID.String(),
	})
}

// ---- CombineSpares (§4.5) -----------------------------------------------------

type combineSparesRequest struct {
	SparePieceGroupIDs []string `json:"spare_piece_group_ids"`
	BundleSize         int      `json:"bundle_size"`
	NumberOfBundles    int      `json:"number_of_bundles"`
}

type combineSparesResponse struct {
	TransactionID string `json:"transaction_id"`
	BundleStockID string `json:"bundle_stock_id"`
}

func (s *Server) handleCombineSpares(w http.ResponseWriter, r *http.Request) {
	var req combineSparesRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	groupIDs, err := parseUUIDList(req.SparePieceGroupIDs)
	if err != nil {
		http.Error(w, "invalid spare_piece_group_ids", http.StatusBadRequest)
		return
	}

	result, err := s.engine.CombineSpares(r.Context(), engine.CombineSparesRequest{
		SparePieceGroupIDs: groupIDs,
		BundleSize:         req.BundleSize,
		NumberOfBundles:    req.NumberOfBundles,
		CreatedBy:          actingUser(r),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, combineSparesResponse{
		TransactionID: result.TransactionID.String(),
		BundleStockID: result.BundleStockID.String(),
	})
}

// ---- CreateDispatch (§4.6) -----------------------------------------------------

type dispatchItemRequest struct {
	ItemType         string   `json:"item_type"`
	StockID          string   `json:"stock_id"`
	ProductVariantID string   `json:"product_variant_id"`
	Quantity         int      `json:"quantity"`
	LengthMeters     string   `json:"length_meters"`
	CutPieceID       string   `json:"cut_piece_id"`
	SparePieceIDs    []string `json:"spare_piece_ids"`
	BundleSize       int      `json:"bundle_size"`
	PiecesPerBundle  int      `json:"pieces_per_bundle"`
	Notes            string   `json:"notes"`
}

type createDispatchRequest struct {
	CustomerID    string                `json:"customer_id"`
	BillToID      string                `json:"bill_to_id"`
	TransportID   string                `json:"transport_id"`
	VehicleID     string                `json:"vehicle_id"`
	InvoiceNumber string                `json:"invoice_number"`
	Notes         string                `json:"notes"`
	DispatchDate  string                `json:"dispatch_date"`
	DispatchTZ    string                `json:"dispatch_tz"`
	Items         []dispatchItemRequest `json:"items"`
}

type createDispatchResponse struct {
	DispatchID     string `json:"dispatch_id"`
	DispatchNumber string `json:"dispatch_number"`
}

func (s *Server) handleCreateDispatch(w http.ResponseWriter, r *http.Request) {
	var req createDispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	customerID, err := parseUUID(req.CustomerID)
	if err != nil {
		http.Error(w, "invalid customer_id", http.StatusBadRequest)
		return
	}
	billTo, err := parseNullUUID(req.BillToID)
	if err != nil {
		http.Error(w, "invalid bill_to_id", http.StatusBadRequest)
		return
	}
	transport, err := parseNullUUID(req.TransportID)
	if err != nil {
		http.Error(w, "invalid transport_id", http.StatusBadRequest)
		return
	}
	vehicle, err := parseNullUUID(req.VehicleID)
	if err != nil {
		http.Error(w, "invalid vehicle_id", http.StatusBadRequest)
		return
	}
	dispatchDate, err := parseNullTime(req.DispatchDate)
	if err != nil {
		http.Error(w, "invalid dispatch_date", http.StatusBadRequest)
		return
	}

	items := make([]engine.DispatchItemInput, 0, len(req.Items))
	for i, it := range req.Items {
		stockID, err := parseUUID(it.StockID)
		if err != nil {
			http.Error(w, itemErr(i, "invalid stock_id"), http.StatusBadRequest)
			return
		}
		variantID, _ := parseNullUUID(it.ProductVariantID)
		length, err := parseDecimal(it.LengthMeters)
		if err != nil {
			http.Error(w, itemErr(i, "invalid length_meters"), http.StatusBadRequest)
			return
		}
		cutPieceID, _ := parseNullUUID(it.CutPieceID)
		spareIDs, err := parseUUIDList(it.SparePieceIDs)
		if err != nil {
			http.Error(w, itemErr(i, "invalid spare_piece_ids"), http.StatusBadRequest)
			return
		}
		items = append(items, engine.DispatchItemInput{
			ItemType:         inventory.DispatchItemType(it.ItemType),
			StockID:          stockID,
			ProductVariantID: variantID.UUID,
			Quantity:         it.Quantity,
			LengthMeters:     length,
			CutPieceID:       cutPieceID.UUID,
			SparePieceIDs:    spareIDs,
			BundleSize:       it.BundleSize,
			PiecesPerBundle:  it.PiecesPerBundle,
			Notes:            it.Notes,
		})
	}

	result, err := s.engine.CreateDispatch(r.Context(), engine.CreateDispatchInput{
		CustomerID:    customerID,
		BillToID:      billTo,
		TransportID:   transport,
		VehicleID:     vehicle,
		InvoiceNumber: req.InvoiceNumber,
		Notes:         req.Notes,
		DispatchDate:  dispatchDate,
		DispatchTZ:    req.DispatchTZ,
		Items:         items,
		CreatedBy:     actingUser(r),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createDispatchResponse{
		DispatchID:     result.DispatchID.String(),
		DispatchNumber: result.DispatchNumber,
	})
}

func itemErr(index int, msg string) string {
	return msg + " (item " + strconv.Itoa(index) + ")"
}
