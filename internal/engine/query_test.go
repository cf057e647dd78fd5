package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// GetPieceAuditTrail rejects an unrecognized PieceKind before touching the
// database, so this is exercisable against a zero-value Engine.
func TestGetPieceAuditTrailRejectsUnknownKind(t *testing.T) {
	e := &Engine{}
	_, err := e.GetPieceAuditTrail(context.Background(), uuid.New(), PieceKind("BOGUS"))
	if inventory.KindOf(err) != inventory.KindNotFound {
		t.Errorf("KindOf(err) = %q, want NotFound", inventory.KindOf(err))
	}
}
