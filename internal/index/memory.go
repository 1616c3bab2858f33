package index

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/promotion-service/internal/domain"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
)

// MemoryBackend keeps the product index in process memory. It is intended
// for local development and tests, where running Redis is overkill.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]domain.ProductIndexEntry
}

// NewMemoryBackend creates an empty in-memory index store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]domain.ProductIndexEntry),
	}
}

// Upsert writes or replaces the entry for one product.
func (b *MemoryBackend) Upsert(_ context.Context, entry *domain.ProductIndexEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[entry.ProductID] = *entry
	return nil
}

// Remove drops the entry for one product.
func (b *MemoryBackend) Remove(_ context.Context, productID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, productID)
	return nil
}

// RebuildAll replaces the whole index with the given entries.
func (b *MemoryBackend) RebuildAll(_ context.Context, entries []domain.ProductIndexEntry) error {
	next := make(map[string]domain.ProductIndexEntry, len(entries))
	for _, e := range entries {
		next[e.ProductID] = e
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = next
	return nil
}

// Get returns the entry for one product.
func (b *MemoryBackend) Get(_ context.Context, productID string) (*domain.ProductIndexEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[productID]
	if !ok {
		return nil, apperrors.NotFound("index entry", productID)
	}
	return &entry, nil
}

// List returns entries ordered by ascending minimum price, with product id
// as tiebreaker so pagination is stable.
func (b *MemoryBackend) List(_ context.Context, offset, limit int) ([]domain.ProductIndexEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	b.mu.RLock()
	all := make([]domain.ProductIndexEntry, 0, len(b.entries))
	for _, e := range b.entries {
		all = append(all, e)
	}
	b.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].MinPrice != all[j].MinPrice {
			return all[i].MinPrice < all[j].MinPrice
		}
		return all[i].ProductID < all[j].ProductID
	})

	if offset >= len(all) {
		return []domain.ProductIndexEntry{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	return all[offset:end], nil
}
