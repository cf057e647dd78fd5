package httpapi

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pinggolf/inventory-engine/internal/inventory"
)

func TestWriteEngineErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind inventory.Kind
		want int
	}{
		{inventory.KindNotFound, 404},
		{inventory.KindConcurrent, 409},
		{inventory.KindPiecesLocked, 409},
		{inventory.KindAlreadyReverted, 409},
		{inventory.KindInvalidDispatch, 422},
		{inventory.KindMixedScrapForbidden, 422},
		{inventory.KindCannotRevert, 422},
		{"", 500},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			var err error
			if tc.kind == "" {
				err = errors.New("unexpected failure: boom")
			} else {
				err = inventory.New(tc.kind, "boom")
			}
			rec := httptest.NewRecorder()
			writeEngineError(rec, err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			var body map[string]any
			if jsonErr := json.NewDecoder(rec.Body).Decode(&body); jsonErr != nil {
				t.Fatalf("decode response body: %v", jsonErr)
			}
			if !strings.Contains(body["error"].(string), "boom") {
				t.Errorf("body error = %v, want it to mention the message", body["error"])
			}
		})
	}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, 200, map[string]string{"ok": "true"})
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
