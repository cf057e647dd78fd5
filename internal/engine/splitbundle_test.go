package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// SplitBundle validates pieces_to_split before opening a transaction, so
// this is exercisable against a zero-value Engine with no database.
func TestSplitBundleRejectsEmptyPieces(t *testing.T) {
	e := &Engine{}
	_, err := e.SplitBundle(context.Background(), SplitBundleRequest{SourceStockID: uuid.New()})
	if inventory.KindOf(err) != inventory.KindInvalidSplit {
		t.Errorf("KindOf(err) = %q, want InvalidSplit", inventory.KindOf(err))
	}
}

func TestSplitBundleRejectsNonPositivePieceCount(t *testing.T) {
	e := &Engine{}
	_, err := e.SplitBundle(context.Background(), SplitBundleRequest{
		SourceStockID: uuid.New(),
		PiecesToSplit: []int{5, 0, 3},
	})
	if inventory.KindOf(err) != inventory.KindInvalidSplit {
		t.Errorf("KindOf(err) = %q, want InvalidSplit", inventory.KindOf(err))
	}
}
