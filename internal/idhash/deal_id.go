package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeDealID computes a deterministic deal_id using SHA256.
// Formula: SHA256(run_id|seq|entry_time|exit_time)
// Returns hex-encoded hash (64 characters).
func ComputeDealID(
	runID string,
	seq int,
	entryTime int64,
	exitTime int64,
) string {
	data := fmt.Sprintf("%s|%d|%d|%d",
		runID,
		seq,
		entryTime,
		exitTime,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
