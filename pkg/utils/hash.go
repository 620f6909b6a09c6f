package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns the SHA256 hex digest of a key string. Used to derive
// stable result IDs and safe on-disk file names from arbitrary paths.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 12 hex characters of HashKey, enough to
// identify scan results uniquely in CLI output.
func ShortHash(key string) string {
	return HashKey(key)[:12]
}
