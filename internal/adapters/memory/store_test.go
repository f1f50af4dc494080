package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/sessiond/internal/adapters/memory"
	"github.com/aretw0/sessiond/pkg/domain"
	"github.com/aretw0/sessiond/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	tests.RunSessionStoreContract(t, memory.NewStore())
}

func TestMemoryStore_CopyOnRead(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	rec := domain.NewRecord("s1", "u1", time.Now())
	require.NoError(t, store.Save(ctx, "s1", rec, 0))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	got.UserID = "mutated"

	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.UserID, "caller mutation must not leak into the store")
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	rec := domain.NewRecord("s1", "u1", time.Now())
	require.NoError(t, store.Save(ctx, "s1", rec, time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
