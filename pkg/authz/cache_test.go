package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotCache(client, 15*time.Minute, nil), mr
}

func TestSnapshotCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	user, err := cache.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	user := makeUser(42, AdminRoleModerator, map[string]PermissionLevel{"gardening": PermissionManage})
	require.NoError(t, cache.Set(ctx, user))

	got, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, AdminRoleModerator, got.AdminRole)
	assert.Equal(t, PermissionManage, got.PermissionBySphere["gardening"])
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	user := makeUser(42, AdminRoleNone, nil)
	require.NoError(t, cache.Set(ctx, user))
	require.NoError(t, cache.Invalidate(ctx, 42))

	got, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSnapshotCacheCorruptEntryDropped(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("user:42", "{not json"))

	got, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	// corrupt entry was deleted
	assert.False(t, mr.Exists("user:42"))
}

func TestSnapshotCacheTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewSnapshotCache(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, makeUser(7, AdminRoleNone, nil)))

	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}
