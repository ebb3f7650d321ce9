package domain

import "math/big"

// EventKind identifies the kind of an audit event.
type EventKind string

const (
	EventParticipationRegistered EventKind = "PARTICIPATION_REGISTERED"
	EventParticipationUpdated    EventKind = "PARTICIPATION_UPDATED"
	EventParticipationCancelled  EventKind = "PARTICIPATION_CANCELLED"
	EventWinnerSelected          EventKind = "WINNER_SELECTED"
	EventRefundClaimed           EventKind = "REFUND_CLAIMED"
	EventWithdrawal              EventKind = "WITHDRAWAL"
	EventGroupCreated            EventKind = "GROUP_CREATED"
	EventGroupStatusUpdated      EventKind = "GROUP_STATUS_UPDATED"
	EventGroupSettingsUpdated    EventKind = "GROUP_SETTINGS_UPDATED"
	EventCurrencyConfigUpdated   EventKind = "CURRENCY_CONFIG_UPDATED"
	EventWithdrawalAddressSet    EventKind = "WITHDRAWAL_ADDRESS_SET"
	EventEnginePaused            EventKind = "ENGINE_PAUSED"
	EventEngineUnpaused          EventKind = "ENGINE_UNPAUSED"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// LaunchEvent is one append-only audit record. Events are emitted
// synchronously in call order and form the durable observability
// surface consumed by off-chain indexers; every field an operation
// touched is carried verbatim.
type LaunchEvent struct {
	EventID         string // deterministic hash, see idhash
	Sequence        uint64 // 1-based, strictly increasing per engine
	Kind            EventKind
	LaunchID        string
	GroupID         string // empty for engine-level events
	ParticipationID string // empty when not applicable
	PrevID          string // prior participation id on updates
	UserID          string
	UserAddress     string
	CurrencyID      string
	TokenAmount     *big.Int // nil when not applicable
	CurrencyAmount  *big.Int // nil when not applicable

	// Payload carries the changed values of configuration events
	// (new status, settings, currency price and enable flag) as
	// string key/value pairs. Nil for events whose typed fields
	// already carry everything.
	Payload map[string]string

	EmittedAt int64 // unix seconds, ledger time at emission
}

// Clone returns a deep copy safe for external mutation.
func (e *LaunchEvent) Clone() *LaunchEvent {
	if e == nil {
		return nil
	}
	cp := *e
	if e.TokenAmount != nil {
		cp.TokenAmount = new(big.Int).Set(e.TokenAmount)
	}
	if e.CurrencyAmount != nil {
		cp.CurrencyAmount = new(big.Int).Set(e.CurrencyAmount)
	}
	if e.Payload != nil {
		cp.Payload = make(map[string]string, len(e.Payload))
		for k, v := range e.Payload {
			cp.Payload[k] = v
		}
	}
	return &cp
}
