package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessiond/internal/adapters/redis"
	"github.com/aretw0/sessiond/pkg/domain"
	"github.com/aretw0/sessiond/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return mr, redis.NewFromClient(client, redis.WithPrefix("test:"))
}

func TestRedisStore_Contract(t *testing.T) {
	_, store := setup(t)
	tests.RunSessionStoreContract(t, store)
}

func TestRedisStore_ListSkipsIndexAndLockKeys(t *testing.T) {
	mr, store := setup(t)
	ctx := context.Background()

	rec := domain.NewRecord("s1", "u1", time.Now())
	require.NoError(t, store.Save(ctx, "s1", rec, time.Hour))
	mr.Set("test:lock:user:u1", "1")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestRedisStore_UserIndexFollowsWrites(t *testing.T) {
	_, store := setup(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, "s1", domain.NewRecord("s1", "u1", now), time.Hour))
	require.NoError(t, store.Save(ctx, "s2", domain.NewRecord("s2", "u1", now), time.Hour))
	require.NoError(t, store.Save(ctx, "s3", domain.NewRecord("s3", "u2", now), time.Hour))

	ids, err := store.UserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	require.NoError(t, store.Delete(ctx, "s1"))

	ids, err = store.UserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids)

	// u2 untouched
	ids, err = store.UserSessions(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids)
}

func TestRedisStore_UserIndexSelfHeals(t *testing.T) {
	// A record that expires via the store TTL never goes through Delete,
	// so the index still references it until the next lookup.
	mr, store := setup(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, "s1", domain.NewRecord("s1", "u1", now), time.Minute))
	require.NoError(t, store.Save(ctx, "s2", domain.NewRecord("s2", "u1", now), time.Hour))

	mr.FastForward(5 * time.Minute) // s1's TTL elapses

	ids, err := store.UserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids)

	// The stale member is gone from the set itself, not just filtered.
	members, err := mr.SMembers("test:user:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, members)
}

func TestRedisStore_DeleteUnparseableRecord(t *testing.T) {
	mr, store := setup(t)
	ctx := context.Background()

	mr.Set("test:bad", "{not json")

	_, err := store.Load(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrRecordInvalid)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)

	// Delete must still reclaim the key.
	require.NoError(t, store.Delete(ctx, "bad"))
	assert.False(t, mr.Exists("test:bad"))
}

func TestRedisStore_PingFailure(t *testing.T) {
	mr, store := setup(t)
	mr.Close()

	err := store.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
