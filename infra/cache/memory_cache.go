package cache

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/mlmcore/pkg/cache"
	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

type cacheEntry struct {
	balance   money.Amount
	expiresAt time.Time
}

// MemoryCache implements BalanceCache using in-memory storage.
// It only sees invalidations made by this process.
type MemoryCache struct {
	entries  map[uuid.UUID]cacheEntry
	versions map[uuid.UUID]uint64
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryCache creates a new in-memory balance cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:  make(map[uuid.UUID]cacheEntry),
		versions: make(map[uuid.UUID]uint64),
		now:      time.Now,
	}
}

// Get returns a cached balance if present and not expired
func (c *MemoryCache) Get(_ context.Context, accountID uuid.UUID) (money.Amount, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[accountID]
	c.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, accountID)
		c.mu.Unlock()
		return 0, false, nil
	}
	return entry.balance, true, nil
}

func (c *MemoryCache) Version(_ context.Context, accountID uuid.UUID) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[accountID], nil
}

// Set stores a balance with TTL unless the account was invalidated after version was read
func (c *MemoryCache) Set(_ context.Context, accountID uuid.UUID, balance money.Amount, version uint64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[accountID] != version {
		return nil
	}
	c.entries[accountID] = cacheEntry{balance: balance, expiresAt: c.now().Add(ttl)}
	return nil
}

// Invalidate drops cached balances for the given accounts
func (c *MemoryCache) Invalidate(_ context.Context, accountIDs ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range accountIDs {
		delete(c.entries, id)
		c.versions[id]++
	}
	return nil
}

var _ cache.BalanceCache = (*MemoryCache)(nil)
