package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the value stored per session key. The store key is
// "<prefix>" + SessionID; SessionID itself is not part of the body.
//
// On the wire a record is a JSON object with at minimum "lastAccess"
// (epoch millis) and an optional "userId". Any other fields belong to the
// request layer and must round-trip unchanged through load/save.
type Record struct {
	SessionID  string `json:"-"`
	UserID     string `json:"-"`
	CreatedAt  int64  `json:"-"` // epoch millis of first write
	LastAccess int64  `json:"-"` // epoch millis, updated on every touch

	// payload holds every wire field we do not own, raw.
	payload map[string]json.RawMessage
}

// NewRecord creates a record bound to userID (may be empty for
// anonymous/pre-auth sessions) with both timestamps set to now.
func NewRecord(sessionID, userID string, now time.Time) *Record {
	ms := now.UnixMilli()
	return &Record{
		SessionID:  sessionID,
		UserID:     userID,
		CreatedAt:  ms,
		LastAccess: ms,
	}
}

// Touch updates the last-access timestamp.
func (r *Record) Touch(now time.Time) {
	r.LastAccess = now.UnixMilli()
}

// Expired reports whether the record's age exceeds maxAge at the given
// instant. Expiry is recomputed from LastAccess; the store's own TTL is
// only a backstop.
func (r *Record) Expired(now time.Time, maxAge time.Duration) bool {
	return now.UnixMilli()-r.LastAccess > maxAge.Milliseconds()
}

// Payload returns the raw value of an opaque payload field, if present.
func (r *Record) Payload(key string) (json.RawMessage, bool) {
	v, ok := r.payload[key]
	return v, ok
}

// SetPayload attaches an opaque payload field to the record.
func (r *Record) SetPayload(key string, value json.RawMessage) {
	if r.payload == nil {
		r.payload = make(map[string]json.RawMessage)
	}
	r.payload[key] = value
}

// MarshalJSON emits the owned fields merged with the opaque payload.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.payload)+3)
	for k, v := range r.payload {
		out[k] = v
	}
	out["lastAccess"] = rawInt(r.LastAccess)
	if r.CreatedAt != 0 {
		out["createdAt"] = rawInt(r.CreatedAt)
	}
	if r.UserID != "" {
		uid, err := json.Marshal(r.UserID)
		if err != nil {
			return nil, err
		}
		out["userId"] = uid
	}
	return json.Marshal(out)
}

// UnmarshalJSON extracts userId/createdAt/lastAccess and keeps everything
// else as opaque payload. A body without a numeric lastAccess is invalid.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("record body is not a JSON object: %w", err)
	}

	raw, ok := fields["lastAccess"]
	if !ok {
		return fmt.Errorf("record body missing lastAccess")
	}
	if err := json.Unmarshal(raw, &r.LastAccess); err != nil {
		return fmt.Errorf("record lastAccess is not a number: %w", err)
	}
	delete(fields, "lastAccess")

	if raw, ok := fields["createdAt"]; ok {
		if err := json.Unmarshal(raw, &r.CreatedAt); err != nil {
			return fmt.Errorf("record createdAt is not a number: %w", err)
		}
		delete(fields, "createdAt")
	}

	if raw, ok := fields["userId"]; ok {
		if err := json.Unmarshal(raw, &r.UserID); err != nil {
			return fmt.Errorf("record userId is not a string: %w", err)
		}
		delete(fields, "userId")
	}

	r.payload = fields
	return nil
}

func rawInt(v int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", v))
}
