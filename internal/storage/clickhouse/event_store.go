package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"launch-ledger/internal/domain"
	"launch-ledger/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
// ClickHouse MergeTree doesn't enforce uniqueness, so existence is checked
// explicitly before insert.
func (s *EventStore) Insert(ctx context.Context, e *domain.LaunchEvent) error {
	exists, err := s.exists(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO launch_events (
			event_id, sequence, kind, launch_id, group_id, participation_id,
			prev_participation_id, user_id, user_address, currency_id,
			token_amount, currency_amount, payload, emitted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	payload, err := payloadColumn(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	err = batch.Append(
		e.EventID, e.Sequence, string(e.Kind), e.LaunchID, e.GroupID, e.ParticipationID,
		e.PrevID, e.UserID, e.UserAddress, e.CurrencyID,
		amountColumn(e.TokenAmount), amountColumn(e.CurrencyAmount), payload, e.EmittedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *EventStore) GetByID(ctx context.Context, eventID string) (*domain.LaunchEvent, error) {
	query := `
		SELECT event_id, sequence, kind, launch_id, group_id, participation_id,
			prev_participation_id, user_id, user_address, currency_id,
			token_amount, currency_amount, payload, emitted_at
		FROM launch_events
		WHERE event_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query by event id: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// GetByGroup retrieves all events for a group, ordered by sequence ASC.
func (s *EventStore) GetByGroup(ctx context.Context, groupID string) ([]*domain.LaunchEvent, error) {
	query := `
		SELECT event_id, sequence, kind, launch_id, group_id, participation_id,
			prev_participation_id, user_id, user_address, currency_id,
			token_amount, currency_amount, payload, emitted_at
		FROM launch_events
		WHERE group_id = ?
		ORDER BY sequence ASC
	`

	rows, err := s.conn.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("query by group: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByKind retrieves all events of a kind, ordered by sequence ASC.
func (s *EventStore) GetByKind(ctx context.Context, kind domain.EventKind) ([]*domain.LaunchEvent, error) {
	query := `
		SELECT event_id, sequence, kind, launch_id, group_id, participation_id,
			prev_participation_id, user_id, user_address, currency_id,
			token_amount, currency_amount, payload, emitted_at
		FROM launch_events
		WHERE kind = ?
		ORDER BY sequence ASC
	`

	rows, err := s.conn.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query by kind: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetBySequenceRange retrieves events with sequence in [start, end] (inclusive).
func (s *EventStore) GetBySequenceRange(ctx context.Context, start, end uint64) ([]*domain.LaunchEvent, error) {
	query := `
		SELECT event_id, sequence, kind, launch_id, group_id, participation_id,
			prev_participation_id, user_id, user_address, currency_id,
			token_amount, currency_amount, payload, emitted_at
		FROM launch_events
		WHERE sequence >= ? AND sequence <= ?
		ORDER BY sequence ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by sequence range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// exists checks if an event with the given id exists.
func (s *EventStore) exists(ctx context.Context, eventID string) (bool, error) {
	query := `
		SELECT count(*) FROM launch_events
		WHERE event_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanEvents scans multiple rows into a slice.
func scanEvents(rows chRows) ([]*domain.LaunchEvent, error) {
	var events []*domain.LaunchEvent

	for rows.Next() {
		var e domain.LaunchEvent
		var kindStr string
		var tokenAmount, currencyAmount, payload *string

		err := rows.Scan(
			&e.EventID, &e.Sequence, &kindStr, &e.LaunchID, &e.GroupID, &e.ParticipationID,
			&e.PrevID, &e.UserID, &e.UserAddress, &e.CurrencyID,
			&tokenAmount, &currencyAmount, &payload, &e.EmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.Kind = domain.EventKind(kindStr)
		e.TokenAmount, err = parseAmount(tokenAmount)
		if err != nil {
			return nil, err
		}
		e.CurrencyAmount, err = parseAmount(currencyAmount)
		if err != nil {
			return nil, err
		}
		e.Payload, err = parsePayload(payload)
		if err != nil {
			return nil, err
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

// amountColumn renders an optional amount as a nullable string column value.
func amountColumn(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// parseAmount parses a nullable string column back into an amount.
func parseAmount(s *string) (*big.Int, error) {
	if s == nil {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", *s)
	}
	return v, nil
}

// payloadColumn renders an optional payload as a nullable JSON string column value.
func payloadColumn(p map[string]string) (*string, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

// parsePayload parses a nullable JSON string column back into a payload.
func parsePayload(s *string) (map[string]string, error) {
	if s == nil {
		return nil, nil
	}
	var p map[string]string
	if err := json.Unmarshal([]byte(*s), &p); err != nil {
		return nil, fmt.Errorf("malformed payload %q: %w", *s, err)
	}
	return p, nil
}
