package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(mode|started_at_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(mode string, startedAt time.Time) string {
	data := fmt.Sprintf("%s|%d", mode, startedAt.UTC().UnixMilli())

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
