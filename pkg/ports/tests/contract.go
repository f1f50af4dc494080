package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/sessiond/pkg/domain"
	"github.com/aretw0/sessiond/pkg/ports"
)

// RunSessionStoreContract verifies that an adapter complies with
// ports.SessionStore. Every store implementation runs this suite.
func RunSessionStoreContract(t *testing.T, store ports.SessionStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Fatalf("unexpected ping error: %v", err)
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "no-such-session")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Save_Load_RoundTrip", func(t *testing.T) {
		rec := domain.NewRecord("s1", "u1", now)
		rec.SetPayload("cart", []byte(`{"items":2}`))

		if err := store.Save(ctx, "s1", rec, time.Hour); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}

		got, err := store.Load(ctx, "s1")
		if err != nil {
			t.Fatalf("unexpected load error: %v", err)
		}
		if got.UserID != "u1" {
			t.Errorf("userId mismatch. got %q, want %q", got.UserID, "u1")
		}
		if got.LastAccess != rec.LastAccess {
			t.Errorf("lastAccess mismatch. got %d, want %d", got.LastAccess, rec.LastAccess)
		}
		if v, ok := got.Payload("cart"); !ok || string(v) != `{"items":2}` {
			t.Errorf("payload did not round-trip. got %q", v)
		}
	})

	t.Run("List_Contains_Saved", func(t *testing.T) {
		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("unexpected list error: %v", err)
		}
		found := false
		for _, id := range ids {
			if id == "s1" {
				found = true
			}
		}
		if !found {
			t.Errorf("s1 missing from list: %v", ids)
		}
	})

	t.Run("UserSessions_Indexed", func(t *testing.T) {
		ids, err := store.UserSessions(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected index error: %v", err)
		}
		if len(ids) != 1 || ids[0] != "s1" {
			t.Errorf("expected [s1] for u1, got %v", ids)
		}
	})

	t.Run("Delete_Removes_Record_And_Index", func(t *testing.T) {
		if err := store.Delete(ctx, "s1"); err != nil {
			t.Fatalf("unexpected delete error: %v", err)
		}
		if _, err := store.Load(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
		}
		ids, err := store.UserSessions(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected index error: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("index not pruned after delete: %v", ids)
		}
	})

	t.Run("Delete_Absent_Is_Noop", func(t *testing.T) {
		if err := store.Delete(ctx, "never-existed"); err != nil {
			t.Errorf("deleting an absent key should not error, got %v", err)
		}
	})
}
