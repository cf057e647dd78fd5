package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// CombineSpares validates bundle_size/number_of_bundles/group ids before
// opening a transaction, so this is exercisable against a zero-value Engine.
func TestCombineSparesRejectsInvalidInput(t *testing.T) {
	e := &Engine{}

	cases := []CombineSparesRequest{
		{SparePieceGroupIDs: nil, BundleSize: 10, NumberOfBundles: 1},
		{SparePieceGroupIDs: []uuid.UUID{uuid.New()}, BundleSize: 0, NumberOfBundles: 1},
		{SparePieceGroupIDs: []uuid.UUID{uuid.New()}, BundleSize: 10, NumberOfBundles: 0},
	}
	for i, req := range cases {
		_, err := e.CombineSpares(context.Background(), req)
		if inventory.KindOf(err) != inventory.KindInvalidSplit {
			t.Errorf("case %d: KindOf(err) = %q, want InvalidSplit", i, inventory.KindOf(err))
		}
	}
}
