package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Refresh tokens are stored hashed; a leaked store dump yields nothing
// replayable.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
