// Package events carries the engine's append-only audit records to
// their consumers: in-memory subscribers, durable stores, and connected
// WebSocket indexers. Emission is synchronous and preserves call order.
package events

import (
	"context"
	"errors"
	"sync"

	"launch-ledger/internal/domain"
	"launch-ledger/internal/storage"
)

// Emitter receives one audit event per completed state-changing
// operation, in call order.
type Emitter interface {
	Emit(ctx context.Context, e *domain.LaunchEvent) error
}

// MemoryEmitter collects emitted events in memory, mostly for tests.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []*domain.LaunchEvent
}

// NewMemoryEmitter creates an empty in-memory emitter.
func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

// Emit records a copy of the event.
func (m *MemoryEmitter) Emit(_ context.Context, e *domain.LaunchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e.Clone())
	return nil
}

// Events returns copies of all recorded events in emission order.
func (m *MemoryEmitter) Events() []*domain.LaunchEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.LaunchEvent, len(m.events))
	for i, e := range m.events {
		result[i] = e.Clone()
	}
	return result
}

// Last returns the most recently emitted event, or nil.
func (m *MemoryEmitter) Last() *domain.LaunchEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1].Clone()
}

// StoreEmitter persists every event to an EventStore.
type StoreEmitter struct {
	store storage.EventStore
}

// NewStoreEmitter creates an emitter backed by the given store.
func NewStoreEmitter(store storage.EventStore) *StoreEmitter {
	return &StoreEmitter{store: store}
}

// Emit inserts the event into the backing store.
func (s *StoreEmitter) Emit(ctx context.Context, e *domain.LaunchEvent) error {
	return s.store.Insert(ctx, e)
}

// MultiEmitter fans one event out to several emitters. Every emitter is
// attempted; errors are joined.
type MultiEmitter []Emitter

// Emit delivers the event to each wrapped emitter in order.
func (m MultiEmitter) Emit(ctx context.Context, e *domain.LaunchEvent) error {
	var errs []error
	for _, emitter := range m {
		if err := emitter.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verify interface compliance at compile time.
var (
	_ Emitter = (*MemoryEmitter)(nil)
	_ Emitter = (*StoreEmitter)(nil)
	_ Emitter = (MultiEmitter)(nil)
)
