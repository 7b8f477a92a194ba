package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
)

// SchemePrefix tags every issued secret so malformed input can be rejected
// before hashing.
const SchemePrefix = "mem_"

// 256 bits of entropy per secret.
const secretBytes = 32

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var secretLength = len(SchemePrefix) + secretEncoding.EncodedLen(secretBytes)

// GenerateSecret returns a new raw bearer secret. The value must only ever be
// handed to the caller once and never persisted.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("credential secret generation failed: %w", err)
	}
	return SchemePrefix + strings.ToLower(secretEncoding.EncodeToString(b)), nil
}

// HashSecret returns the hex SHA-256 digest of the full prefixed secret.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeSecret is the cheap format check: scheme prefix, exact length and
// lowercase base32 alphabet.
func LooksLikeSecret(raw string) bool {
	if len(raw) != secretLength || !strings.HasPrefix(raw, SchemePrefix) {
		return false
	}
	for i := len(SchemePrefix); i < len(raw); i++ {
		ch := raw[i]
		if (ch < 'a' || ch > 'z') && (ch < '2' || ch > '7') {
			return false
		}
	}
	return true
}
