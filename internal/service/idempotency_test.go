package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	guard := NewRedisIdempotencyGuard(rdb, time.Hour)
	ctx := context.Background()

	ok, err := guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, guard.Release(ctx, "abc"))
	ok, err = guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = guard.Claim(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}
