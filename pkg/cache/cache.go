package cache

import (
	"context"
	"time"

	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
)

// BalanceCache caches derived account balances.
//
// Each account carries an invalidation version. Readers take the version
// before reading the ledger and pass it to Set; Set stores nothing when a
// write invalidated the account in between, so a stale read never outlives
// the write that made it stale.
// Implementations must treat a miss as (0, false, nil).
type BalanceCache interface {
	Get(ctx context.Context, accountID uuid.UUID) (money.Amount, bool, error)
	Version(ctx context.Context, accountID uuid.UUID) (uint64, error)
	Set(ctx context.Context, accountID uuid.UUID, balance money.Amount, version uint64, ttl time.Duration) error
	// Invalidate drops the cached balances and bumps their versions.
	Invalidate(ctx context.Context, accountIDs ...uuid.UUID) error
}

// Noop is a BalanceCache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, uuid.UUID) (money.Amount, bool, error) { return 0, false, nil }

func (Noop) Version(context.Context, uuid.UUID) (uint64, error) { return 0, nil }

func (Noop) Set(context.Context, uuid.UUID, money.Amount, uint64, time.Duration) error { return nil }

func (Noop) Invalidate(context.Context, ...uuid.UUID) error { return nil }
