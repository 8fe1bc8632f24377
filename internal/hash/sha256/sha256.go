// Package sha256 provides the SHA-256 dedup hasher.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawl.Hasher using SHA-256 over the raw URL bytes.
// No normalization is applied: "http://x.com/" and "http://x.com" hash
// to different digests on purpose.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash digests the URL and returns a hex string.
func (h *Hasher) Hash(url string) (string, error) {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:]), nil
}
