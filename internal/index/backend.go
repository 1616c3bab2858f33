package index

import (
	"context"

	"github.com/utafrali/promotion-service/internal/domain"
)

// Backend stores denormalized product index entries. Implementations must
// be safe for concurrent use.
type Backend interface {
	// Upsert writes or replaces the entry for one product.
	Upsert(ctx context.Context, entry *domain.ProductIndexEntry) error

	// Remove drops the entry for one product. Removing a missing entry
	// is not an error.
	Remove(ctx context.Context, productID string) error

	// RebuildAll atomically replaces the whole index with the given
	// entries.
	RebuildAll(ctx context.Context, entries []domain.ProductIndexEntry) error

	// Get returns the entry for one product, or ErrNotFound.
	Get(ctx context.Context, productID string) (*domain.ProductIndexEntry, error)

	// List returns entries ordered by ascending minimum price.
	List(ctx context.Context, offset, limit int) ([]domain.ProductIndexEntry, error)
}
