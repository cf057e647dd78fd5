package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// CutRoll rejects an empty cut_lengths list before opening a transaction,
// so this is exercisable against a zero-value Engine with no database.
func TestCutRollRejectsEmptyLengths(t *testing.T) {
	e := &Engine{}
	_, err := e.CutRoll(context.Background(), CutRollRequest{SourceStockID: uuid.New()})
	if inventory.KindOf(err) != inventory.KindInvalidCut {
		t.Errorf("KindOf(err) = %q, want InvalidCut", inventory.KindOf(err))
	}
}
