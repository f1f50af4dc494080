package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_WireRoundTrip(t *testing.T) {
	// Fields the core does not own must survive load/save unchanged.
	body := []byte(`{"userId":"u1","lastAccess":1700000000000,"createdAt":1690000000000,"cart":{"items":2},"csrf":"abc"}`)

	var rec Record
	require.NoError(t, json.Unmarshal(body, &rec))

	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, int64(1700000000000), rec.LastAccess)
	assert.Equal(t, int64(1690000000000), rec.CreatedAt)

	out, err := json.Marshal(&rec)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &got))
	assert.JSONEq(t, `{"items":2}`, string(got["cart"]))
	assert.Equal(t, `"abc"`, string(got["csrf"]))
	assert.Equal(t, `"u1"`, string(got["userId"]))
}

func TestRecord_AnonymousSession(t *testing.T) {
	// userId is optional for pre-auth sessions.
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"lastAccess":1000}`), &rec))
	assert.Empty(t, rec.UserID)

	out, err := json.Marshal(&rec)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "userId")
}

func TestRecord_InvalidBodies(t *testing.T) {
	cases := map[string]string{
		"not an object":      `[1,2,3]`,
		"missing lastAccess": `{"userId":"u1"}`,
		"string lastAccess":  `{"lastAccess":"soon"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var rec Record
			assert.Error(t, json.Unmarshal([]byte(body), &rec))
		})
	}
}

func TestRecord_Expired(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	maxAge := time.Hour

	fresh := &Record{LastAccess: now.UnixMilli() - 1000}
	stale := &Record{LastAccess: now.Add(-2 * time.Hour).UnixMilli()}
	boundary := &Record{LastAccess: now.Add(-maxAge).UnixMilli()}

	assert.False(t, fresh.Expired(now, maxAge))
	assert.True(t, stale.Expired(now, maxAge))
	// Exactly maxAge old is not yet expired; expiry is strictly greater-than.
	assert.False(t, boundary.Expired(now, maxAge))
}

func TestNewSessionID_KeySafe(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewSessionID()
		require.NoError(t, err)
		assert.NotContains(t, id, ":")
		assert.False(t, seen[id], "session ids must not repeat")
		seen[id] = true
	}
}
