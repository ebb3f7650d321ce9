package events

import (
	"encoding/json"

	"launch-ledger/internal/domain"
)

// WireEvent is the JSON form of a LaunchEvent served to indexers over
// the HTTP API and the WebSocket hub. Amounts are decimal strings so
// consumers never lose precision to floating point.
type WireEvent struct {
	EventID         string `json:"event_id"`
	Sequence        uint64 `json:"sequence"`
	Kind            string `json:"kind"`
	LaunchID        string `json:"launch_id"`
	GroupID         string `json:"group_id,omitempty"`
	ParticipationID string `json:"participation_id,omitempty"`
	PrevID          string `json:"prev_participation_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	UserAddress     string `json:"user_address,omitempty"`
	CurrencyID      string `json:"currency_id,omitempty"`
	TokenAmount     string `json:"token_amount,omitempty"`
	CurrencyAmount  string `json:"currency_amount,omitempty"`

	Payload map[string]string `json:"payload,omitempty"`

	EmittedAt int64 `json:"emitted_at"`
}

// ToWire converts a LaunchEvent to its wire form.
func ToWire(e *domain.LaunchEvent) *WireEvent {
	w := &WireEvent{
		EventID:         e.EventID,
		Sequence:        e.Sequence,
		Kind:            e.Kind.String(),
		LaunchID:        e.LaunchID,
		GroupID:         e.GroupID,
		ParticipationID: e.ParticipationID,
		PrevID:          e.PrevID,
		UserID:          e.UserID,
		UserAddress:     e.UserAddress,
		CurrencyID:      e.CurrencyID,
		Payload:         e.Payload,
		EmittedAt:       e.EmittedAt,
	}
	if e.TokenAmount != nil {
		w.TokenAmount = e.TokenAmount.String()
	}
	if e.CurrencyAmount != nil {
		w.CurrencyAmount = e.CurrencyAmount.String()
	}
	return w
}

// MarshalWire renders the event as JSON in wire form.
func MarshalWire(e *domain.LaunchEvent) ([]byte, error) {
	return json.Marshal(ToWire(e))
}
