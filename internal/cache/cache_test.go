package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

func TestMemoryRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, Fees, Key("list", "pending"), []row{{Name: "Anna", Minutes: 30}}, time.Minute))
	require.NoError(t, c.Set(ctx, Profiles, "all", []row{{Name: "Boris"}}, time.Minute))

	var got []row
	ok, err := c.Get(ctx, Fees, "list:pending", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []row{{Name: "Anna", Minutes: 30}}, got)

	require.NoError(t, c.Invalidate(ctx, Fees))
	ok, err = c.Get(ctx, Fees, "list:pending", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(Profiles))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, Points, "total", 42, time.Second))

	var total int
	ok, _ := c.Get(ctx, Points, "total", &total)
	assert.True(t, ok)
	assert.Equal(t, 42, total)

	now = now.Add(2 * time.Second)
	ok, _ = c.Get(ctx, Points, "total", &total)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(Points))
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "academy:fees:list:paid", redisKey(Fees, Key("list", "paid")))
}
