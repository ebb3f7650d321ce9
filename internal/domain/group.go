package domain

import "math/big"

// GroupStatus represents the lifecycle state of a launch group.
type GroupStatus string

const (
	GroupStatusPending   GroupStatus = "PENDING"
	GroupStatusActive    GroupStatus = "ACTIVE"
	GroupStatusPaused    GroupStatus = "PAUSED"
	GroupStatusCompleted GroupStatus = "COMPLETED"
)

// String returns the string representation of GroupStatus.
func (s GroupStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s GroupStatus) IsValid() bool {
	switch s {
	case GroupStatusPending, GroupStatusActive, GroupStatusPaused, GroupStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a group may move from s to next.
// PENDING may move anywhere, ACTIVE and PAUSED may swap or complete,
// COMPLETED is terminal. No status ever moves back into PENDING.
func (s GroupStatus) CanTransitionTo(next GroupStatus) bool {
	if !next.IsValid() || next == GroupStatusPending {
		return false
	}
	switch s {
	case GroupStatusPending:
		return true
	case GroupStatusActive:
		return next == GroupStatusPaused || next == GroupStatusCompleted
	case GroupStatusPaused:
		return next == GroupStatusActive || next == GroupStatusCompleted
	case GroupStatusCompleted:
		return false
	}
	return false
}

// LaunchGroup is an independently configured sub-sale with its own
// participation window, per-user caps, allocation cap, and status.
// Owned exclusively by the ledger; created once, never deleted.
type LaunchGroup struct {
	ID                       string      // opaque group identifier
	StartsAt                 int64       // window open, unix seconds
	EndsAt                   int64       // window close, unix seconds
	MinTokenAmountPerUser    *big.Int    // floor on a user's active group total
	MaxTokenAmountPerUser    *big.Int    // ceiling on a user's active group total
	MaxTokenAllocation       *big.Int    // ceiling on finalized tokens sold
	FinalizesAtParticipation bool        // immutable once status leaves PENDING
	Status                   GroupStatus // PENDING | ACTIVE | PAUSED | COMPLETED
}

// GroupSettings carries the mutable configuration of a launch group.
type GroupSettings struct {
	StartsAt                 int64
	EndsAt                   int64
	MinTokenAmountPerUser    *big.Int
	MaxTokenAmountPerUser    *big.Int
	MaxTokenAllocation       *big.Int
	FinalizesAtParticipation bool
	Status                   GroupStatus
}

// WindowOpen reports whether now falls within [StartsAt, EndsAt].
func (g *LaunchGroup) WindowOpen(now int64) bool {
	return now >= g.StartsAt && now <= g.EndsAt
}
