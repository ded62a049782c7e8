package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewActionToken generates a cryptographically random 64-character hex token
// used as a single-use action capability.
func NewActionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate action token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewRefreshToken generates a cryptographically random 64-character hex token
// for session refresh.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
