package engine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

func TestScrapCategory(t *testing.T) {
	cases := []struct {
		stockType inventory.StockType
		want      string
	}{
		{inventory.StockFullRoll, "HDPE"},
		{inventory.StockCutRoll, "HDPE"},
		{inventory.StockBundle, "SPRINKLER"},
		{inventory.StockSpare, "SPRINKLER"},
	}
	for _, tc := range cases {
		if got := scrapCategory(tc.stockType); got != tc.want {
			t.Errorf("scrapCategory(%s) = %q, want %q", tc.stockType, got, tc.want)
		}
	}
}

// CreateScrap validates its input before opening any transaction, so these
// cases exercise that path against a zero-value Engine with no database.
func TestCreateScrapRejectsMissingReason(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateScrap(context.Background(), CreateScrapInput{
		Items: []ScrapItemInput{{StockID: uuid.New(), QuantityToScrap: 1, ItemType: inventory.StockFullRoll}},
	})
	if inventory.KindOf(err) != inventory.KindInvalidScrap {
		t.Errorf("KindOf(err) = %q, want InvalidScrap", inventory.KindOf(err))
	}
}

func TestCreateScrapRejectsEmptyItems(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateScrap(context.Background(), CreateScrapInput{Reason: "damaged in transit"})
	if inventory.KindOf(err) != inventory.KindInvalidScrap {
		t.Errorf("KindOf(err) = %q, want InvalidScrap", inventory.KindOf(err))
	}
}

func TestCreateScrapRejectsMixedStockType(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateScrap(context.Background(), CreateScrapInput{
		Reason: "damaged in transit",
		Items: []ScrapItemInput{
			{StockID: uuid.New(), QuantityToScrap: 1, ItemType: inventory.StockFullRoll},
			{StockID: uuid.New(), QuantityToScrap: 1, ItemType: inventory.StockCutRoll},
		},
	})
	if inventory.KindOf(err) != inventory.KindMixedScrapForbidden {
		t.Errorf("KindOf(err) = %q, want MixedScrapForbidden", inventory.KindOf(err))
	}
}

func TestCreateScrapRejectsMixedCategory(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateScrap(context.Background(), CreateScrapInput{
		Reason: "damaged in transit",
		Items: []ScrapItemInput{
			{StockID: uuid.New(), QuantityToScrap: 1, ItemType: inventory.StockFullRoll},
			{StockID: uuid.New(), QuantityToScrap: 1, ItemType: inventory.StockBundle},
		},
	})
	if inventory.KindOf(err) != inventory.KindMixedScrapForbidden {
		t.Errorf("KindOf(err) = %q, want MixedScrapForbidden", inventory.KindOf(err))
	}
}

func TestCreateScrapRejectsNonPositiveQuantity(t *testing.T) {
	e := &Engine{}
	_, err := e.CreateScrap(context.Background(), CreateScrapInput{
		Reason: "damaged in transit",
		Items:  []ScrapItemInput{{StockID: uuid.New(), QuantityToScrap: 0, ItemType: inventory.StockFullRoll}},
	})
	if inventory.KindOf(err) != inventory.KindInvalidScrap {
		t.Errorf("KindOf(err) = %q, want InvalidScrap", inventory.KindOf(err))
	}
}
