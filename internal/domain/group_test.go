package domain

import (
	"math/big"
	"testing"
)

func TestGroupStatus_IsValid(t *testing.T) {
	valid := []GroupStatus{GroupStatusPending, GroupStatusActive, GroupStatusPaused, GroupStatusCompleted}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if GroupStatus("UNKNOWN").IsValid() {
		t.Error("expected UNKNOWN to be invalid")
	}
	if GroupStatus("").IsValid() {
		t.Error("expected empty status to be invalid")
	}
}

func TestGroupStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    GroupStatus
		to      GroupStatus
		allowed bool
	}{
		{GroupStatusPending, GroupStatusActive, true},
		{GroupStatusPending, GroupStatusPaused, true},
		{GroupStatusPending, GroupStatusCompleted, true},
		{GroupStatusActive, GroupStatusPaused, true},
		{GroupStatusActive, GroupStatusCompleted, true},
		{GroupStatusPaused, GroupStatusActive, true},
		{GroupStatusPaused, GroupStatusCompleted, true},

		// No status moves back into PENDING
		{GroupStatusPending, GroupStatusPending, false},
		{GroupStatusActive, GroupStatusPending, false},
		{GroupStatusPaused, GroupStatusPending, false},
		{GroupStatusCompleted, GroupStatusPending, false},

		// COMPLETED is terminal
		{GroupStatusCompleted, GroupStatusActive, false},
		{GroupStatusCompleted, GroupStatusPaused, false},
		{GroupStatusCompleted, GroupStatusCompleted, false},

		// Self-transitions among non-terminal states are not transitions
		{GroupStatusActive, GroupStatusActive, false},
		{GroupStatusPaused, GroupStatusPaused, false},

		// Invalid targets
		{GroupStatusPending, GroupStatus("UNKNOWN"), false},
		{GroupStatusActive, GroupStatus(""), false},
	}

	for _, tc := range cases {
		got := tc.from.CanTransitionTo(tc.to)
		if got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestLaunchGroup_WindowOpen(t *testing.T) {
	g := &LaunchGroup{
		ID:       "group-a",
		StartsAt: 100,
		EndsAt:   200,
	}

	// Bounds are inclusive on both sides
	if g.WindowOpen(99) {
		t.Error("expected window closed before StartsAt")
	}
	if !g.WindowOpen(100) {
		t.Error("expected window open at StartsAt")
	}
	if !g.WindowOpen(150) {
		t.Error("expected window open inside range")
	}
	if !g.WindowOpen(200) {
		t.Error("expected window open at EndsAt")
	}
	if g.WindowOpen(201) {
		t.Error("expected window closed after EndsAt")
	}
}

func TestParticipationInfo_Exists(t *testing.T) {
	empty := &ParticipationInfo{
		ParticipationID: "part-1",
		TokenAmount:     new(big.Int),
		CurrencyAmount:  new(big.Int),
	}
	if empty.Exists() {
		t.Error("expected record with empty UserID to not exist")
	}

	// Tombstoned records keep the user id and still exist
	tombstone := &ParticipationInfo{
		ParticipationID: "part-2",
		GroupID:         "group-a",
		UserID:          "user-1",
		TokenAmount:     new(big.Int),
		CurrencyAmount:  new(big.Int),
	}
	if !tombstone.Exists() {
		t.Error("expected tombstoned record to exist")
	}
	if !tombstone.IsEmpty() {
		t.Error("expected tombstoned record to be empty")
	}

	active := &ParticipationInfo{
		ParticipationID: "part-3",
		UserID:          "user-1",
		TokenAmount:     big.NewInt(10),
		CurrencyAmount:  big.NewInt(50),
	}
	if active.IsEmpty() {
		t.Error("expected active record to not be empty")
	}
}

func TestParticipationInfo_Clone(t *testing.T) {
	p := &ParticipationInfo{
		ParticipationID: "part-1",
		GroupID:         "group-a",
		UserID:          "user-1",
		TokenAmount:     big.NewInt(10),
		CurrencyAmount:  big.NewInt(50),
		CurrencyID:      "USDC",
		PayerAddress:    "Payer1",
	}

	cp := p.Clone()
	cp.TokenAmount.SetInt64(999)
	cp.UserID = "user-2"

	if p.TokenAmount.Int64() != 10 {
		t.Errorf("expected original TokenAmount 10, got %d", p.TokenAmount.Int64())
	}
	if p.UserID != "user-1" {
		t.Errorf("expected original UserID user-1, got %s", p.UserID)
	}
}

func TestLaunchEvent_Clone(t *testing.T) {
	e := &LaunchEvent{
		EventID:     "event-1",
		Sequence:    1,
		Kind:        EventParticipationRegistered,
		LaunchID:    "launch-1",
		TokenAmount: big.NewInt(10),
		Payload:     map[string]string{"status": "ACTIVE"},
	}

	cp := e.Clone()
	cp.TokenAmount.SetInt64(999)
	cp.Payload["status"] = "PAUSED"

	if e.TokenAmount.Int64() != 10 {
		t.Errorf("expected original TokenAmount 10, got %d", e.TokenAmount.Int64())
	}
	if e.Payload["status"] != "ACTIVE" {
		t.Errorf("expected original payload untouched, got %v", e.Payload)
	}
	if cp.CurrencyAmount != nil {
		t.Error("expected nil CurrencyAmount to stay nil")
	}
}
