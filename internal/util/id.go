package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 128-bit random hex identifier, optionally prefixed for
// readability in logs ("blk_…", "rev_…", "cor_…").
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewRequestID returns a short identifier for correlating HTTP request logs.
func NewRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
