package engine

import (
	"context"
	"testing"

	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// CreateDispatch rejects an empty item list before opening a transaction,
// so this is exercisable against a zero-value Engine with no database.
func TestCreateDispatchRejectsEmptyItems(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateDispatch(context.Background(), CreateDispatchInput{})
	if inventory.KindOf(err) != inventory.KindInvalidDispatch {
		t.Errorf("KindOf(err) = %q, want InvalidDispatch", inventory.KindOf(err))
	}
}
