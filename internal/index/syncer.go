package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/internal/pkg/clock"
	"github.com/utafrali/promotion-service/internal/repository"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
)

// Syncer rebuilds denormalized index entries from the authoritative
// product and variant rows.
type Syncer struct {
	products repository.ProductRepository
	variants repository.VariantRepository
	backend  Backend
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSyncer creates an index syncer over the given backend.
func NewSyncer(
	products repository.ProductRepository,
	variants repository.VariantRepository,
	backend Backend,
	clk clock.Clock,
	logger *slog.Logger,
) *Syncer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Syncer{
		products: products,
		variants: variants,
		backend:  backend,
		clock:    clk,
		logger:   logger,
	}
}

// IndexProduct recomputes and stores the entry for one product. A product
// that no longer exists has its entry removed instead.
func (s *Syncer) IndexProduct(ctx context.Context, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.backend.Remove(ctx, productID)
		}
		return fmt.Errorf("load product %s: %w", productID, err)
	}

	variants, err := s.variants.ListByProducts(ctx, []string{productID})
	if err != nil {
		return fmt.Errorf("load variants for %s: %w", productID, err)
	}

	entry := BuildEntry(productID, variants, s.clock.Now())
	if err := s.backend.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("upsert index entry for %s: %w", productID, err)
	}

	return nil
}

// IndexProducts recomputes entries for several products. Failures are
// logged per product so one bad entry does not stall the rest.
func (s *Syncer) IndexProducts(ctx context.Context, productIDs []string) error {
	var failed int
	for _, id := range productIDs {
		if err := s.IndexProduct(ctx, id); err != nil {
			failed++
			s.logger.ErrorContext(ctx, "failed to index product",
				slog.String("product_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("indexing failed for %d of %d products", failed, len(productIDs))
	}
	return nil
}

// RemoveProduct drops one product's entry from the index.
func (s *Syncer) RemoveProduct(ctx context.Context, productID string) error {
	return s.backend.Remove(ctx, productID)
}

// ReindexAll rebuilds the whole index from scratch and returns the number
// of indexed products.
func (s *Syncer) ReindexAll(ctx context.Context) (int, error) {
	ids, err := s.products.ListAllIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}

	variants, err := s.variants.ListByProducts(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load variants: %w", err)
	}

	byProduct := make(map[string][]domain.Variant, len(ids))
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}

	now := s.clock.Now()
	entries := make([]domain.ProductIndexEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, *BuildEntry(id, byProduct[id], now))
	}

	if err := s.backend.RebuildAll(ctx, entries); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	s.logger.InfoContext(ctx, "index rebuilt", slog.Int("products", len(entries)))

	return len(entries), nil
}

// BuildEntry derives a product's index entry from its variant rows.
func BuildEntry(productID string, variants []domain.Variant, now time.Time) *domain.ProductIndexEntry {
	entry := &domain.ProductIndexEntry{
		ProductID: productID,
		Variants:  make([]domain.IndexedVariant, 0, len(variants)),
		UpdatedAt: now,
	}

	for i := range variants {
		v := &variants[i]
		entry.Variants = append(entry.Variants, domain.IndexedVariant{
			ID:              v.ID,
			SKU:             v.SKU,
			BasePrice:       v.BasePrice,
			DiscountPrice:   v.DiscountPrice,
			DiscountPercent: v.DiscountPercent,
			OnSales:         v.OnSales,
		})

		price := v.EffectivePrice()
		if i == 0 || price < entry.MinPrice {
			entry.MinPrice = price
		}
		if price > entry.MaxPrice {
			entry.MaxPrice = price
		}
		if v.OnSales {
			entry.OnSales = true
		}
	}

	return entry
}
