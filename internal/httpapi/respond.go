package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pinggolf/inventory-engine/internal/inventory"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

// writeEngineError maps an inventory.Kind to the HTTP status §7's error
// kinds imply: NotFound -> 404, the optimistic/lock kinds -> 409 (client
// retries), validation kinds -> 422, everything else -> 500.
func writeEngineError(w http.ResponseWriter, err error) {
	kind := inventory.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case inventory.KindNotFound:
		status = http.StatusNotFound
	case inventory.KindConcurrent, inventory.KindPiecesLocked, inventory.KindAlreadyReverted:
		status = http.StatusConflict
	case inventory.KindInvalidProduction, inventory.KindInvalidCut, inventory.KindInvalidSplit,
		inventory.KindInvalidDispatch, inventory.KindInvalidReturn, inventory.KindInvalidScrap,
		inventory.KindDuplicateBatchCode, inventory.KindDuplicateCustomer,
		inventory.KindInsufficientPieces, inventory.KindMixedScrapForbidden, inventory.KindCannotRevert:
		status = http.StatusUnprocessableEntity
	}
	body := map[string]any{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
