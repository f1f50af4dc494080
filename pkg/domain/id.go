package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewSessionID generates a cryptographically secure session id.
// 32 bytes = 256 bits of entropy, URL-safe base64 without padding, so the
// id is always safe as a store key component.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
