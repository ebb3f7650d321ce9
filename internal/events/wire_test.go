package events

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"launch-ledger/internal/domain"
)

func TestToWire(t *testing.T) {
	event := &domain.LaunchEvent{
		EventID:         "event-1",
		Sequence:        7,
		Kind:            domain.EventParticipationUpdated,
		LaunchID:        "launch-1",
		GroupID:         "group-1",
		ParticipationID: "part-2",
		PrevID:          "part-1",
		UserID:          "user-1",
		UserAddress:     "Addr1",
		CurrencyID:      "USDC",
		TokenAmount:     new(big.Int).SetUint64(1 << 60),
		CurrencyAmount:  big.NewInt(500),
		Payload:         map[string]string{"status": "ACTIVE"},
		EmittedAt:       150,
	}

	w := ToWire(event)

	if w.Kind != "PARTICIPATION_UPDATED" {
		t.Errorf("expected kind PARTICIPATION_UPDATED, got %s", w.Kind)
	}
	if w.PrevID != "part-1" {
		t.Errorf("expected prev id part-1, got %s", w.PrevID)
	}
	if w.TokenAmount != "1152921504606846976" {
		t.Errorf("expected decimal string token amount, got %s", w.TokenAmount)
	}
	if w.CurrencyAmount != "500" {
		t.Errorf("expected currency amount 500, got %s", w.CurrencyAmount)
	}
	if w.Payload["status"] != "ACTIVE" {
		t.Errorf("expected payload carried over, got %v", w.Payload)
	}
}

func TestToWire_NilAmounts(t *testing.T) {
	event := &domain.LaunchEvent{
		EventID:   "event-1",
		Sequence:  1,
		Kind:      domain.EventEnginePaused,
		LaunchID:  "launch-1",
		EmittedAt: 150,
	}

	w := ToWire(event)

	if w.TokenAmount != "" || w.CurrencyAmount != "" {
		t.Errorf("expected empty amounts, got %q and %q", w.TokenAmount, w.CurrencyAmount)
	}
}

func TestMarshalWire_OmitsEmptyFields(t *testing.T) {
	event := &domain.LaunchEvent{
		EventID:   "event-1",
		Sequence:  1,
		Kind:      domain.EventEngineUnpaused,
		LaunchID:  "launch-1",
		EmittedAt: 150,
	}

	payload, err := MarshalWire(event)
	if err != nil {
		t.Fatalf("MarshalWire failed: %v", err)
	}

	s := string(payload)
	for _, key := range []string{"group_id", "participation_id", "user_id", "token_amount", "currency_amount", "payload"} {
		if strings.Contains(s, key) {
			t.Errorf("expected %s omitted from %s", key, s)
		}
	}
	if !strings.Contains(s, `"kind":"ENGINE_UNPAUSED"`) {
		t.Errorf("expected kind in payload, got %s", s)
	}
}

func TestMarshalWire_RoundTripsThroughJSON(t *testing.T) {
	event := &domain.LaunchEvent{
		EventID:        "event-1",
		Sequence:       3,
		Kind:           domain.EventRefundClaimed,
		LaunchID:       "launch-1",
		GroupID:        "group-1",
		CurrencyID:     "USDC",
		CurrencyAmount: big.NewInt(500),
		EmittedAt:      150,
	}

	payload, err := MarshalWire(event)
	if err != nil {
		t.Fatalf("MarshalWire failed: %v", err)
	}

	var decoded WireEvent
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Sequence != 3 || decoded.CurrencyAmount != "500" {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
}
