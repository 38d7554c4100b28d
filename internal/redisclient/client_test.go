package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires redis (set REDIS_TEST_ADDR)")
	}

	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBasketRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	sid := uuid.New().String()

	data, err := c.GetBasket(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, c.SetBasket(ctx, sid, []byte(`{"1":{"qty":2,"price":"4.5"}}`), time.Minute))

	data, err = c.GetBasket(ctx, sid)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"qty":2,"price":"4.5"}}`, string(data))

	require.NoError(t, c.DeleteBasket(ctx, sid))
	data, err = c.GetBasket(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestLockIsExclusive(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test-" + uuid.New().String()

	token, ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not get the lock")

	// A stale token leaves the lock in place
	require.NoError(t, c.ReleaseLock(ctx, key, "someone-else"))
	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, token))
	token, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.ReleaseLock(ctx, key, token))
}
