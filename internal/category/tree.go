package category

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/utafrali/promotion-service/internal/pkg/clock"
	"github.com/utafrali/promotion-service/internal/repository"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
)

// DefaultCacheTTL bounds how long the adjacency cache is reused before the
// category table is re-read.
const DefaultCacheTTL = 5 * time.Minute

// Tree resolves category descendants over a cached parent/child adjacency
// map. Category data changes rarely, so the whole table is loaded in one
// query and reused until the TTL lapses.
type Tree struct {
	store repository.CategoryRepository
	ttl   time.Duration
	clock clock.Clock

	mu        sync.RWMutex
	children  map[string][]string
	known     map[string]bool
	expiresAt time.Time
}

// NewTree creates a descendant resolver backed by the given repository.
func NewTree(store repository.CategoryRepository, ttl time.Duration, clk clock.Clock) *Tree {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Tree{
		store: store,
		ttl:   ttl,
		clock: clk,
	}
}

// ResolveDescendants returns the given category id plus the ids of every
// category below it, sorted. Traversal tracks visited nodes so a corrupted
// hierarchy with a parent cycle cannot loop.
func (t *Tree) ResolveDescendants(ctx context.Context, rootID string) ([]string, error) {
	children, known, err := t.adjacency(ctx)
	if err != nil {
		return nil, err
	}

	if !known[rootID] {
		return nil, apperrors.NotFound("category", rootID)
	}

	visited := map[string]bool{rootID: true}
	queue := []string{rootID}
	result := []string{rootID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range children[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			queue = append(queue, child)
			result = append(result, child)
		}
	}

	sort.Strings(result)
	return result, nil
}

// Invalidate drops the cached adjacency so the next resolution re-reads
// the category table.
func (t *Tree) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children = nil
	t.known = nil
	t.expiresAt = time.Time{}
}

func (t *Tree) adjacency(ctx context.Context) (map[string][]string, map[string]bool, error) {
	now := t.clock.Now()

	t.mu.RLock()
	if t.children != nil && now.Before(t.expiresAt) {
		children, known := t.children, t.known
		t.mu.RUnlock()
		return children, known, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if t.children != nil && now.Before(t.expiresAt) {
		return t.children, t.known, nil
	}

	categories, err := t.store.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load categories: %w", err)
	}

	children := make(map[string][]string, len(categories))
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	t.children = children
	t.known = known
	t.expiresAt = now.Add(t.ttl)

	return children, known, nil
}
