package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/promotion-service/internal/domain"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
)

const (
	entryKeyPrefix = "product_index:"
	minPriceZSet   = "product_index:by_min_price"
)

// RedisBackend keeps the product index in Redis. Each product has a JSON
// document under product_index:<id>, and a sorted set keyed by minimum
// price supports ordered listing.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a Redis-backed index store.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func entryKey(productID string) string {
	return entryKeyPrefix + productID
}

// Upsert writes or replaces the entry for one product.
func (b *RedisBackend) Upsert(ctx context.Context, entry *domain.ProductIndexEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal index entry: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, entryKey(entry.ProductID), data, 0)
	pipe.ZAdd(ctx, minPriceZSet, redis.Z{Score: entry.MinPrice, Member: entry.ProductID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert index entry: %w", err)
	}

	return nil
}

// Remove drops the entry for one product.
func (b *RedisBackend) Remove(ctx context.Context, productID string) error {
	pipe := b.client.TxPipeline()
	pipe.Del(ctx, entryKey(productID))
	pipe.ZRem(ctx, minPriceZSet, productID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove index entry: %w", err)
	}

	return nil
}

// RebuildAll replaces the whole index in one pipeline.
func (b *RedisBackend) RebuildAll(ctx context.Context, entries []domain.ProductIndexEntry) error {
	existing, err := b.client.ZRange(ctx, minPriceZSet, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list index members: %w", err)
	}

	pipe := b.client.TxPipeline()
	for _, id := range existing {
		pipe.Del(ctx, entryKey(id))
	}
	pipe.Del(ctx, minPriceZSet)

	for i := range entries {
		entry := &entries[i]
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal index entry: %w", err)
		}
		pipe.Set(ctx, entryKey(entry.ProductID), data, 0)
		pipe.ZAdd(ctx, minPriceZSet, redis.Z{Score: entry.MinPrice, Member: entry.ProductID})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	return nil
}

// Get returns the entry for one product.
func (b *RedisBackend) Get(ctx context.Context, productID string) (*domain.ProductIndexEntry, error) {
	data, err := b.client.Get(ctx, entryKey(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("index entry", productID)
		}
		return nil, fmt.Errorf("get index entry: %w", err)
	}

	var entry domain.ProductIndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal index entry: %w", err)
	}

	return &entry, nil
}

// List returns entries ordered by ascending minimum price.
func (b *RedisBackend) List(ctx context.Context, offset, limit int) ([]domain.ProductIndexEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	ids, err := b.client.ZRange(ctx, minPriceZSet, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list index members: %w", err)
	}
	if len(ids) == 0 {
		return []domain.ProductIndexEntry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}

	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load index entries: %w", err)
	}

	entries := make([]domain.ProductIndexEntry, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Entry expired or deleted between ZRANGE and MGET.
			continue
		}
		var entry domain.ProductIndexEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal index entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
