package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText canonicalizes text before hashing or embedding: trims,
// collapses whitespace runs to single spaces, and lowercases. The same input
// content must always produce the same normalized form, otherwise cache keys
// and content hashes drift.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// HashText returns the hex sha256 of the normalized text.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(NormalizeText(s)))
	return hex.EncodeToString(sum[:])
}
