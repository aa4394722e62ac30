package cache

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/mlmcore/pkg/money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	id := uuid.New()
	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Version(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, id, money.Amount(8750), v, time.Minute))
	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, money.Amount(8750), got)

	require.NoError(t, c.Invalidate(ctx, id))
	_, ok, _ = c.Get(ctx, id)
	assert.False(t, ok)

	v, _ = c.Version(ctx, id)
	require.NoError(t, c.Set(ctx, id, money.Amount(1), v, time.Minute))
	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, id)
	assert.False(t, ok, "expired entry must miss")
}

func TestMemoryCache_SetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	id := uuid.New()

	stale, err := c.Version(ctx, id)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, id))
	require.NoError(t, c.Set(ctx, id, money.Amount(0), stale, time.Minute))

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "balance read before the write must not be cached")

	fresh, err := c.Version(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, stale+1, fresh)
	require.NoError(t, c.Set(ctx, id, money.Amount(5000), fresh, time.Minute))
	got, ok, _ := c.Get(ctx, id)
	assert.True(t, ok)
	assert.Equal(t, money.Amount(5000), got)
}
