package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pinggolf/inventory-engine/internal/inventory"
)

// findOrCreateVariant resolves a (product_type, brand, parameters) triple
// to a product_variants row, normalizing parameters per §4.2/§9 before
// comparing. product_variants is a reference table the engine only reads
// (§3.1: "ProductType, Brand, ProductVariant, Customer are referenced,
// not owned"), so this lives in the adapter rather than internal/engine.
func findOrCreateVariant(ctx context.Context, tx *sql.Tx, productTypeID, brandID uuid.UUID, parameters map[string]string) (uuid.UUID, error) {
	normalized := inventory.NormalizeParameters(parameters)
	if normalized == nil {
		normalized = map[string]string{}
	}
	paramsJSON, err := json.Marshal(normalized)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal variant parameters: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM product_variants
		WHERE product_type_id = $1 AND brand_id = $2 AND parameters = $3::jsonb`,
		productTypeID, brandID, paramsJSON).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("look up product variant: %w", err)
	}

	id = uuid.New()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_type_id, brand_id, parameters)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (product_type_id, brand_id, parameters) DO NOTHING`,
		id, productTypeID, brandID, paramsJSON); err != nil {
		return uuid.Nil, fmt.Errorf("create product variant: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM product_variants
		WHERE product_type_id = $1 AND brand_id = $2 AND parameters = $3::jsonb`,
		productTypeID, brandID, paramsJSON).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("re-read product variant after insert: %w", err)
	}
	return id, nil
}
