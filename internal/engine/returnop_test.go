package engine

import (
	"context"
	"testing"

	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// CreateReturn rejects an empty item list before opening a transaction, so
// this is exercisable against a zero-value Engine with no database and a
// resolver that should never be called.
func TestCreateReturnRejectsEmptyItems(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateReturn(context.Background(), CreateReturnInput{}, nil)
	if inventory.KindOf(err) != inventory.KindInvalidReturn {
		t.Errorf("KindOf(err) = %q, want InvalidReturn", inventory.KindOf(err))
	}
}
