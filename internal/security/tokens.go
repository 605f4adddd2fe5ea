package security

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// TokenBytes is the amount of entropy behind every generated token.
const TokenBytes = 32

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues opaque random tokens for session cookies and CSRF cookies.
// Tokens carry no data; the server side record is the source of truth.
type TokenManager struct{}

// NewTokenManager creates a new token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{}
}

// Generate returns a 64-character hex token backed by 256 random bits.
func (tm *TokenManager) Generate() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Valid reports whether s has the shape of a token produced by Generate.
func (tm *TokenManager) Valid(s string) bool {
	if len(s) != TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return hmac.Equal([]byte(a), []byte(b))
}
