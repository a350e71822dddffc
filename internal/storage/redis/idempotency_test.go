package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/finapi/internal/idempotency"
)

func mustOpen(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping Redis store tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, addr, os.Getenv("TEST_REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ReserveComplete(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()
	require.NoError(t, s.Ready(ctx))

	key := "test:" + uuid.NewString()
	hash := idempotency.HashBytes([]byte("a"))
	_, reserved, err := s.Reserve(ctx, key, hash, time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	prev, reserved, err := s.Reserve(ctx, key, hash, time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.True(t, prev.Pending)

	rec := idempotency.Record{BodyHash: hash, Status: 201, Payload: []byte(`{"id":"x"}`)}
	require.NoError(t, s.Complete(ctx, key, rec, time.Minute))

	prev, reserved, err = s.Reserve(ctx, key, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, rec, prev)

	require.NoError(t, s.Release(ctx, key))
	_, reserved, err = s.Reserve(ctx, key, hash, time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestStore_Expires(t *testing.T) {
	s := mustOpen(t)
	ctx := context.Background()

	key := "test:" + uuid.NewString()
	_, reserved, err := s.Reserve(ctx, key, "h", time.Second)
	require.NoError(t, err)
	require.True(t, reserved)
	time.Sleep(1500 * time.Millisecond)

	_, reserved, err = s.Reserve(ctx, key, "h", time.Second)
	require.NoError(t, err)
	assert.True(t, reserved)
}
