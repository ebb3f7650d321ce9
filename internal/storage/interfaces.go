package storage

import (
	"context"

	"launch-ledger/internal/domain"
)

// EventStore provides access to launch audit event storage. Events are
// append-only; insertion order equals emission order and the sequence
// number is unique per launch.
type EventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.LaunchEvent) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.LaunchEvent, error)

	// GetByGroup retrieves all events for a group, ordered by sequence ASC.
	GetByGroup(ctx context.Context, groupID string) ([]*domain.LaunchEvent, error)

	// GetByKind retrieves all events of a kind, ordered by sequence ASC.
	GetByKind(ctx context.Context, kind domain.EventKind) ([]*domain.LaunchEvent, error)

	// GetBySequenceRange retrieves events with sequence in [start, end]
	// (inclusive), ordered by sequence ASC.
	GetBySequenceRange(ctx context.Context, start, end uint64) ([]*domain.LaunchEvent, error)
}
