package auth

import (
	"crypto/rand"
	"fmt"
)

const (
	tokenLength   = 32
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// Attempts a session store may make to mint a non-colliding token before
	// giving up with ErrBackendUnavailable.
	tokenRetryBudget = 5
)

// NewToken returns a fixed-length alphanumeric token from crypto/rand.
// Uniqueness against live sessions is the store's responsibility.
func NewToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}
