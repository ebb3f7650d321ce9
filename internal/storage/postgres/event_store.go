package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"launch-ledger/internal/domain"
	"launch-ledger/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `event_id, sequence, kind, launch_id, group_id, participation_id,
	prev_participation_id, user_id, user_address, currency_id, token_amount, currency_amount, payload, emitted_at`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.LaunchEvent) error {
	query := `
		INSERT INTO launch_events (
			event_id, sequence, kind, launch_id, group_id, participation_id,
			prev_participation_id, user_id, user_address, currency_id,
			token_amount, currency_amount, payload, emitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	payload, err := payloadParam(e.Payload)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	_, err = s.pool.Exec(ctx, query,
		e.EventID,
		int64(e.Sequence),
		string(e.Kind),
		e.LaunchID,
		e.GroupID,
		e.ParticipationID,
		e.PrevID,
		e.UserID,
		e.UserAddress,
		e.CurrencyID,
		amountParam(e.TokenAmount),
		amountParam(e.CurrencyAmount),
		payload,
		e.EmittedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(ctx context.Context, eventID string) (*domain.LaunchEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM launch_events
		WHERE event_id = $1
	`

	row := s.pool.QueryRow(ctx, query, eventID)
	e, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}
	return e, nil
}

// GetByGroup retrieves all events for a group, ordered by sequence ASC.
func (s *EventStore) GetByGroup(ctx context.Context, groupID string) ([]*domain.LaunchEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM launch_events
		WHERE group_id = $1
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("get events by group: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByKind retrieves all events of a kind, ordered by sequence ASC.
func (s *EventStore) GetByKind(ctx context.Context, kind domain.EventKind) ([]*domain.LaunchEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM launch_events
		WHERE kind = $1
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("get events by kind: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetBySequenceRange retrieves events with sequence in [start, end] (inclusive).
func (s *EventStore) GetBySequenceRange(ctx context.Context, start, end uint64) ([]*domain.LaunchEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM launch_events
		WHERE sequence >= $1 AND sequence <= $2
		ORDER BY sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(start), int64(end))
	if err != nil {
		return nil, fmt.Errorf("get events by sequence range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvent scans a single row into a LaunchEvent.
func scanEvent(row pgx.Row) (*domain.LaunchEvent, error) {
	var e domain.LaunchEvent
	var kindStr string
	var sequence int64
	var tokenAmount, currencyAmount, payload *string

	err := row.Scan(
		&e.EventID,
		&sequence,
		&kindStr,
		&e.LaunchID,
		&e.GroupID,
		&e.ParticipationID,
		&e.PrevID,
		&e.UserID,
		&e.UserAddress,
		&e.CurrencyID,
		&tokenAmount,
		&currencyAmount,
		&payload,
		&e.EmittedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.EventKind(kindStr)
	e.Sequence = uint64(sequence)
	e.TokenAmount, err = amountValue(tokenAmount)
	if err != nil {
		return nil, err
	}
	e.CurrencyAmount, err = amountValue(currencyAmount)
	if err != nil {
		return nil, err
	}
	e.Payload, err = payloadValue(payload)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of LaunchEvent.
func scanEvents(rows pgx.Rows) ([]*domain.LaunchEvent, error) {
	var events []*domain.LaunchEvent

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

// amountParam renders an optional amount as a nullable text parameter.
func amountParam(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// amountValue parses a nullable text column back into an amount.
func amountValue(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", *s)
	}
	return v, nil
}

// payloadParam renders an optional payload as a nullable JSON text parameter.
func payloadParam(p map[string]string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	s := string(raw)
	return &s, nil
}

// payloadValue parses a nullable JSON text column back into a payload.
func payloadValue(s *string) (map[string]string, error) {
	if s == nil {
		return nil, nil
	}
	var p map[string]string
	if err := json.Unmarshal([]byte(*s), &p); err != nil {
		return nil, fmt.Errorf("malformed payload %q: %w", *s, err)
	}
	return p, nil
}
