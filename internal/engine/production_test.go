package engine

import (
	"context"
	"testing"

	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// ProduceBatch validates its shape selection before opening a transaction,
// so these cases exercise that path against a zero-value Engine.
func TestProduceBatchRequiresExactlyOneShape(t *testing.T) {
	e := &Engine{}

	_, err := e.ProduceBatch(context.Background(), ProduceBatchInput{ProductTypeTag: "HDPE Pipe"})
	if inventory.KindOf(err) != inventory.KindInvalidProduction {
		t.Errorf("no shape: KindOf(err) = %q, want InvalidProduction", inventory.KindOf(err))
	}

	_, err = e.ProduceBatch(context.Background(), ProduceBatchInput{
		ProductTypeTag: "HDPE Pipe",
		RollShape:      &RollInput{NumberOfRolls: 1},
		CutShape:       &CutRollInput{},
	})
	if inventory.KindOf(err) != inventory.KindInvalidProduction {
		t.Errorf("two shapes: KindOf(err) = %q, want InvalidProduction", inventory.KindOf(err))
	}
}

func TestProduceBatchRejectsShapeProductTypeMismatch(t *testing.T) {
	e := &Engine{}

	_, err := e.ProduceBatch(context.Background(), ProduceBatchInput{
		ProductTypeTag: "Sprinkler Pipe",
		RollShape:      &RollInput{NumberOfRolls: 1},
	})
	if inventory.KindOf(err) != inventory.KindInvalidProduction {
		t.Errorf("roll shape on sprinkler: KindOf(err) = %q, want InvalidProduction", inventory.KindOf(err))
	}

	_, err = e.ProduceBatch(context.Background(), ProduceBatchInput{
		ProductTypeTag: "HDPE Pipe",
		BundleShape:    &BundleInput{NumberOfBundles: 1, BundleSize: 10},
	})
	if inventory.KindOf(err) != inventory.KindInvalidProduction {
		t.Errorf("bundle shape on HDPE: KindOf(err) = %q, want InvalidProduction", inventory.KindOf(err))
	}
}
