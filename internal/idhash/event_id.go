// Package idhash computes deterministic identifiers so that any two
// compatible implementations derive identical ids from identical inputs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"launch-ledger/internal/domain"
)

// ComputeEventID computes a deterministic audit event id using SHA256.
// Formula: SHA256(launch_id|sequence|kind|group_id|participation_id)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	launchID string,
	sequence uint64,
	kind domain.EventKind,
	groupID string,
	participationID string,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s",
		launchID,
		sequence,
		string(kind),
		groupID,
		participationID,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
