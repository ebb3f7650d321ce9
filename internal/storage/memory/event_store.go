package memory

import (
	"context"
	"sort"
	"sync"

	"launch-ledger/internal/domain"
	"launch-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LaunchEvent // keyed by event_id
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.LaunchEvent),
	}
}

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(_ context.Context, e *domain.LaunchEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[e.EventID] = e.Clone()
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(_ context.Context, eventID string) (*domain.LaunchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// GetByGroup retrieves all events for a group, ordered by sequence ASC.
func (s *EventStore) GetByGroup(_ context.Context, groupID string) ([]*domain.LaunchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LaunchEvent
	for _, e := range s.data {
		if e.GroupID == groupID {
			result = append(result, e.Clone())
		}
	}

	sortBySequence(result)
	return result, nil
}

// GetByKind retrieves all events of a kind, ordered by sequence ASC.
func (s *EventStore) GetByKind(_ context.Context, kind domain.EventKind) ([]*domain.LaunchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LaunchEvent
	for _, e := range s.data {
		if e.Kind == kind {
			result = append(result, e.Clone())
		}
	}

	sortBySequence(result)
	return result, nil
}

// GetBySequenceRange retrieves events with sequence in [start, end] (inclusive).
func (s *EventStore) GetBySequenceRange(_ context.Context, start, end uint64) ([]*domain.LaunchEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LaunchEvent
	for _, e := range s.data {
		if e.Sequence >= start && e.Sequence <= end {
			result = append(result, e.Clone())
		}
	}

	sortBySequence(result)
	return result, nil
}

func sortBySequence(events []*domain.LaunchEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Sequence < events[j].Sequence
	})
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)
