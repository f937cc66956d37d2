//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "aurum/pkg/domain"
	"aurum/pkg/testutil/containers"
)

func TestRedisEligibilityCache(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	cache := NewRedisEligibilityCache(rc.Client)
	ctx := context.Background()
	identity := id.Identity("aa11aa11aa11aa11aa11aa11aa11aa11")

	t.Run("miss before mark", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		eligible, cached, err := cache.IsEligible(ctx, identity)
		require.NoError(t, err)
		require.False(t, cached)
		require.False(t, eligible)
	})

	t.Run("hit after mark", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, cache.MarkEligible(ctx, identity, time.Minute))
		eligible, cached, err := cache.IsEligible(ctx, identity)
		require.NoError(t, err)
		require.True(t, cached)
		require.True(t, eligible)
	})

	t.Run("invalidate drops the verdict", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, cache.MarkEligible(ctx, identity, time.Minute))
		require.NoError(t, cache.Invalidate(ctx, identity))
		_, cached, err := cache.IsEligible(ctx, identity)
		require.NoError(t, err)
		require.False(t, cached)
	})

	t.Run("non-positive ttl is never cached", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, cache.MarkEligible(ctx, identity, 0))
		_, cached, err := cache.IsEligible(ctx, identity)
		require.NoError(t, err)
		require.False(t, cached)
	})
}
