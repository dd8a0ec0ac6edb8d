package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.Get(ctx, "snapshot:users/u1/inventory")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "snapshot:users/u1/inventory", []byte(`[]`), 0))
	got, err := c.Get(ctx, "snapshot:users/u1/inventory")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, c.Delete(ctx, "snapshot:users/u1/inventory"))
	_, err = c.Get(ctx, "snapshot:users/u1/inventory")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
