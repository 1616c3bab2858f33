package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/pkg/database"
)

// VariantRepository implements repository.VariantRepository using PostgreSQL.
type VariantRepository struct {
	pool database.DBTX
}

// NewVariantRepository creates a new PostgreSQL-backed variant repository.
func NewVariantRepository(pool database.DBTX) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// ListByProducts returns the variants of the given products.
func (r *VariantRepository) ListByProducts(ctx context.Context, productIDs []string) ([]domain.Variant, error) {
	if len(productIDs) == 0 {
		return []domain.Variant{}, nil
	}

	query := `
		SELECT id, product_id, sku, base_price, discount_price, discount_percent,
		       on_sales, sale_note, created_at, updated_at
		FROM variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, id`

	rows, err := r.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	variants := []domain.Variant{}
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.SKU,
			&v.BasePrice,
			&v.DiscountPrice,
			&v.DiscountPercent,
			&v.OnSales,
			&v.SaleNote,
			&v.CreatedAt,
			&v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}

	return variants, nil
}

// BulkSave persists the pricing fields of the given variants in one
// transaction. Base data is owned elsewhere; only sale fields are written.
func (r *VariantRepository) BulkSave(ctx context.Context, variants []domain.Variant) error {
	if len(variants) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save variants: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE variants
		SET discount_price = $1, discount_percent = $2, on_sales = $3,
		    sale_note = $4, updated_at = $5
		WHERE id = $6`

	now := time.Now().UTC()
	for _, v := range variants {
		if _, err := tx.Exec(ctx, query,
			v.DiscountPrice,
			v.DiscountPercent,
			v.OnSales,
			v.SaleNote,
			now,
			v.ID,
		); err != nil {
			return fmt.Errorf("update variant %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save variants: %w", err)
	}

	return nil
}
