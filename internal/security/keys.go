// Package security generates and verifies the service's opaque secrets:
// per-room admin keys and incoming-webhook tokens. Only bcrypt hashes of
// admin keys are persisted; a lost key cannot be recovered.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HookTokenPrefix marks incoming-webhook tokens.
const HookTokenPrefix = "whk_"

// GenerateAdminKey returns a new random room admin key.
func GenerateAdminKey() (string, error) {
	return randomToken(32)
}

// GenerateHookToken returns a new incoming-webhook token with the whk_ prefix.
func GenerateHookToken() (string, error) {
	tok, err := randomToken(24)
	if err != nil {
		return "", err
	}
	return HookTokenPrefix + tok, nil
}

// HashKey hashes an admin key for storage.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin key: %w", err)
	}
	return string(hash), nil
}

// VerifyKey reports whether key matches the stored hash.
func VerifyKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
