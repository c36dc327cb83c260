package cryptox

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex BLAKE2b-256 digest of b.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether digest matches b.
func Verify(b []byte, digest string) bool {
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	sum := blake2b.Sum256(b)
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}
