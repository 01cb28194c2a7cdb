package utils

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// pseudonymSize is short enough for video provider user_id limits
const pseudonymSize = 16

// Pseudonym derives a stable, non-reversible identifier for userID under key.
// The same user maps to the same pseudonym only while the key is unchanged.
func Pseudonym(key, userID string) string {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	h, err := blake2b.New(pseudonymSize, k)
	if err != nil {
		// Only reachable with an oversized key, which is folded above.
		sum := blake2b.Sum256(append(k, userID...))
		return hex.EncodeToString(sum[:pseudonymSize])
	}
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateSecureToken returns length random bytes, hex encoded
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
