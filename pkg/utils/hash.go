package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// SumSHA256 returns the SHA-256 checksum of the provided data.
func SumSHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// TokenFingerprint returns the hex SHA-256 of a bearer token, used as the
// storage key so raw tokens never reach the revocation list.
func TokenFingerprint(token string) string {
	sum := SumSHA256([]byte(token))
	return hex.EncodeToString(sum[:])
}
