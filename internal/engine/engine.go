// Package engine implements the launch lifecycle operations over the
// participation ledger: participate, update, cancel, claim refund,
// batch refund, finalize winners, and withdraw, plus the capability-
// gated administrative surface. Every operation validates fully before
// mutating; a failed call leaves the ledger untouched.
//
// The engine assumes the host serializes calls, as a chain runtime
// would: one public operation runs to completion before the next
// begins. The busy flag exists to reject reentrant entry from an
// adversarial funds transferor, and doubles as a hard stop against
// accidentally overlapping calls.
package engine

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync/atomic"
	"time"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
	"launch-ledger/internal/events"
	"launch-ledger/internal/funds"
	"launch-ledger/internal/idhash"
	"launch-ledger/internal/ledger"
	"launch-ledger/internal/observability"
)

// Config assembles an Engine. Ledger, Capabilities, and Transferor are
// required; Emitter, Metrics, Logger, and Now are optional.
type Config struct {
	LaunchID          string
	ChainID           string
	TokenDecimals     uint
	WithdrawalAddress string

	// StartSequence is the last event sequence already durable.
	// Emission continues at StartSequence+1; zero starts fresh.
	StartSequence uint64

	Ledger       *ledger.Ledger
	Capabilities authn.Checker
	Transferor   funds.Transferor
	Emitter      events.Emitter
	Metrics      *observability.Metrics
	Logger       *log.Logger

	// Now returns ledger time in unix seconds. Defaults to wall clock.
	Now func() int64
}

// Engine is the launch lifecycle engine. Not safe for concurrent use:
// overlapping calls are rejected via the busy flag rather than queued,
// so the host must serialize.
type Engine struct {
	launchID      string
	chainID       string
	tokenDecimals uint

	ledger     *ledger.Ledger
	verifier   *authn.Verifier
	caps       authn.Checker
	transferor funds.Transferor
	emitter    events.Emitter
	metrics    *observability.Metrics
	logger     *log.Logger
	now        func() int64

	busy atomic.Bool
	seq  uint64
}

// New creates an engine bound to one launch deployment.
func New(cfg Config) (*Engine, error) {
	if cfg.LaunchID == "" || cfg.ChainID == "" {
		return nil, fmt.Errorf("launch id and chain id are required")
	}
	if cfg.Ledger == nil || cfg.Capabilities == nil || cfg.Transferor == nil {
		return nil, fmt.Errorf("ledger, capabilities, and transferor are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}

	e := &Engine{
		launchID:      cfg.LaunchID,
		chainID:       cfg.ChainID,
		tokenDecimals: cfg.TokenDecimals,
		ledger:        cfg.Ledger,
		caps:          cfg.Capabilities,
		transferor:    cfg.Transferor,
		emitter:       cfg.Emitter,
		metrics:       cfg.Metrics,
		logger:        logger,
		now:           now,
		seq:           cfg.StartSequence,
	}
	e.verifier = authn.NewVerifier(cfg.LaunchID, cfg.ChainID, cfg.Ledger, cfg.Capabilities)
	if cfg.WithdrawalAddress != "" {
		cfg.Ledger.SetWithdrawalAddress(cfg.WithdrawalAddress)
	}
	return e, nil
}

// LaunchID returns the launch identifier the engine is bound to.
func (e *Engine) LaunchID() string {
	return e.launchID
}

// enter sets the call-in-progress flag, rejecting nested entry.
func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// exit clears the call-in-progress flag.
func (e *Engine) exit() {
	e.busy.Store(false)
}

// requireNotPaused gates every operation on the engine-wide pause flag.
func (e *Engine) requireNotPaused() error {
	if e.ledger.Paused() {
		return ErrEnginePaused
	}
	return nil
}

// requireCapability checks that identity holds the capability.
func (e *Engine) requireCapability(identity string, capability authn.Capability) error {
	if !e.caps.HasCapability(identity, capability) {
		return &authn.CapabilityError{Identity: identity, Capability: capability}
	}
	return nil
}

// groupInStatus loads the group and requires it to be in want.
func (e *Engine) groupInStatus(groupID string, want domain.GroupStatus) (*domain.LaunchGroup, error) {
	g, ok := e.ledger.Group(groupID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown group %s", authn.ErrInvalidRequest, groupID)
	}
	if g.Status != want {
		return nil, &InvalidLaunchGroupStatusError{GroupID: groupID, Expected: want, Actual: g.Status}
	}
	return g, nil
}

// requireWindowOpen requires ledger time to fall within the group window.
func (e *Engine) requireWindowOpen(g *domain.LaunchGroup, now int64) error {
	if !g.WindowOpen(now) {
		return fmt.Errorf("%w: group %s window closed", authn.ErrInvalidRequest, g.ID)
	}
	return nil
}

// validCurrency requires the currency to be registered and enabled for
// the group, returning its bps price.
func (e *Engine) validCurrency(groupID, currencyID string) (*big.Int, error) {
	cfg, ok := e.ledger.CurrencyConfig(groupID, currencyID)
	if !ok || !cfg.IsEnabled {
		return nil, fmt.Errorf("%w: currency %s not accepted for group %s", authn.ErrInvalidRequest, currencyID, groupID)
	}
	return cfg.TokenPriceBps, nil
}

// emit assigns the next sequence number and deterministic id, then
// delivers the event. Emission failures are logged, not surfaced: the
// operation has already committed and events are best-effort durable.
func (e *Engine) emit(ctx context.Context, ev *domain.LaunchEvent) {
	e.seq++
	ev.Sequence = e.seq
	ev.LaunchID = e.launchID
	ev.EventID = idhash.ComputeEventID(e.launchID, ev.Sequence, ev.Kind, ev.GroupID, ev.ParticipationID)
	if ev.EmittedAt == 0 {
		ev.EmittedAt = e.now()
	}

	if e.metrics != nil {
		e.metrics.EventsEmitted.WithLabelValues(ev.Kind.String()).Inc()
	}
	if e.emitter == nil {
		return
	}
	if err := e.emitter.Emit(ctx, ev); err != nil {
		if e.metrics != nil {
			e.metrics.EventEmitErrors.Inc()
		}
		e.logger.Printf("[engine] emit %s seq=%d failed: %v", ev.Kind, ev.Sequence, err)
	}
}

// observe records operation outcome metrics.
func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		e.metrics.OperationErrors.WithLabelValues(op).Inc()
	}
	e.metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
	e.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// pull transfers amount of currency from payer into custody.
func (e *Engine) pull(ctx context.Context, currencyID, payer string, amount *big.Int) error {
	err := e.transferor.Pull(ctx, currencyID, payer, amount)
	e.observeTransfer("pull", err)
	if err != nil {
		return fmt.Errorf("pull %s %s from %s: %w", amount, currencyID, payer, err)
	}
	return nil
}

// push transfers amount of currency from custody to recipient.
func (e *Engine) push(ctx context.Context, currencyID, recipient string, amount *big.Int) error {
	err := e.transferor.Push(ctx, currencyID, recipient, amount)
	e.observeTransfer("push", err)
	if err != nil {
		return fmt.Errorf("push %s %s to %s: %w", amount, currencyID, recipient, err)
	}
	return nil
}

func (e *Engine) observeTransfer(direction string, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	e.metrics.TransfersTotal.WithLabelValues(direction, outcome).Inc()
}
