package engine

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
)

// CreateGroup registers a new launch group together with its initial
// enabled currency. The group id must be unused and the initial price
// nonzero. An empty status defaults to PENDING.
func (e *Engine) CreateGroup(ctx context.Context, caller string, g *domain.LaunchGroup, currency *domain.CurrencyConfig) (err error) {
	start := time.Now()
	defer func() { e.observe("create_group", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityManager); err != nil {
		return err
	}
	if g.ID == "" || e.ledger.HasGroup(g.ID) {
		return fmt.Errorf("%w: group id %q unavailable", authn.ErrInvalidRequest, g.ID)
	}
	if g.MinTokenAmountPerUser == nil || g.MaxTokenAmountPerUser == nil || g.MaxTokenAllocation == nil {
		return fmt.Errorf("%w: group %s missing token caps", authn.ErrInvalidRequest, g.ID)
	}
	if g.Status == "" {
		g.Status = domain.GroupStatusPending
	}
	if !g.Status.IsValid() {
		return fmt.Errorf("%w: invalid group status %q", authn.ErrInvalidRequest, g.Status)
	}
	if currency == nil || currency.CurrencyID == "" {
		return fmt.Errorf("%w: group %s requires an initial currency", authn.ErrInvalidRequest, g.ID)
	}
	if currency.TokenPriceBps == nil || currency.TokenPriceBps.Sign() == 0 {
		return fmt.Errorf("%w: zero token price for currency %s", authn.ErrInvalidRequest, currency.CurrencyID)
	}

	e.ledger.PutGroup(g)
	cfg := *currency
	cfg.GroupID = g.ID
	e.ledger.PutCurrencyConfig(&cfg)

	if e.metrics != nil {
		e.metrics.GroupsTotal.Set(float64(len(e.ledger.GroupIDs())))
	}
	e.emit(ctx, &domain.LaunchEvent{
		Kind:       domain.EventGroupCreated,
		GroupID:    g.ID,
		CurrencyID: cfg.CurrencyID,
		Payload: map[string]string{
			"status":          g.Status.String(),
			"token_price_bps": cfg.TokenPriceBps.String(),
		},
	})
	return nil
}

// SetGroupStatus moves a group through its status machine. Only the
// legal transitions are accepted: PENDING anywhere, ACTIVE and PAUSED
// between each other or to COMPLETED, COMPLETED nowhere.
func (e *Engine) SetGroupStatus(ctx context.Context, caller, groupID string, status domain.GroupStatus) (err error) {
	start := time.Now()
	defer func() { e.observe("set_group_status", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityManager); err != nil {
		return err
	}
	g, ok := e.ledger.Group(groupID)
	if !ok {
		return fmt.Errorf("%w: unknown group %s", authn.ErrInvalidRequest, groupID)
	}
	if !g.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: group %s cannot move %s → %s", authn.ErrInvalidRequest, groupID, g.Status, status)
	}

	g.Status = status
	e.ledger.PutGroup(g)

	e.emit(ctx, &domain.LaunchEvent{
		Kind:    domain.EventGroupStatusUpdated,
		GroupID: groupID,
		Payload: map[string]string{"status": status.String()},
	})
	return nil
}

// SetGroupSettings replaces a group's settings. The status may stay
// put or take one legal transition; finalizesAtParticipation is frozen
// once the group has left PENDING.
func (e *Engine) SetGroupSettings(ctx context.Context, caller, groupID string, settings domain.GroupSettings) (err error) {
	start := time.Now()
	defer func() { e.observe("set_group_settings", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityManager); err != nil {
		return err
	}
	g, ok := e.ledger.Group(groupID)
	if !ok {
		return fmt.Errorf("%w: unknown group %s", authn.ErrInvalidRequest, groupID)
	}
	if settings.MinTokenAmountPerUser == nil || settings.MaxTokenAmountPerUser == nil || settings.MaxTokenAllocation == nil {
		return fmt.Errorf("%w: group %s missing token caps", authn.ErrInvalidRequest, groupID)
	}
	if settings.Status != g.Status && !g.Status.CanTransitionTo(settings.Status) {
		return fmt.Errorf("%w: group %s cannot move %s → %s", authn.ErrInvalidRequest, groupID, g.Status, settings.Status)
	}
	if settings.FinalizesAtParticipation != g.FinalizesAtParticipation && g.Status != domain.GroupStatusPending {
		return fmt.Errorf("%w: group %s finalization mode frozen after PENDING", authn.ErrInvalidRequest, groupID)
	}

	g.StartsAt = settings.StartsAt
	g.EndsAt = settings.EndsAt
	g.MinTokenAmountPerUser = new(big.Int).Set(settings.MinTokenAmountPerUser)
	g.MaxTokenAmountPerUser = new(big.Int).Set(settings.MaxTokenAmountPerUser)
	g.MaxTokenAllocation = new(big.Int).Set(settings.MaxTokenAllocation)
	g.FinalizesAtParticipation = settings.FinalizesAtParticipation
	g.Status = settings.Status
	e.ledger.PutGroup(g)

	e.emit(ctx, &domain.LaunchEvent{
		Kind:    domain.EventGroupSettingsUpdated,
		GroupID: groupID,
		Payload: map[string]string{
			"starts_at":                  strconv.FormatInt(settings.StartsAt, 10),
			"ends_at":                    strconv.FormatInt(settings.EndsAt, 10),
			"min_token_amount_per_user":  settings.MinTokenAmountPerUser.String(),
			"max_token_amount_per_user":  settings.MaxTokenAmountPerUser.String(),
			"max_token_allocation":       settings.MaxTokenAllocation.String(),
			"finalizes_at_participation": strconv.FormatBool(settings.FinalizesAtParticipation),
			"status":                     settings.Status.String(),
		},
	})
	return nil
}

// SetCurrencyConfig sets or toggles an accepted currency for a group.
// A price of zero is never storable; enabling and disabling toggle
// independently of price changes.
func (e *Engine) SetCurrencyConfig(ctx context.Context, caller, groupID string, cfg *domain.CurrencyConfig) (err error) {
	start := time.Now()
	defer func() { e.observe("set_currency_config", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityManager); err != nil {
		return err
	}
	if !e.ledger.HasGroup(groupID) {
		return fmt.Errorf("%w: unknown group %s", authn.ErrInvalidRequest, groupID)
	}
	if cfg == nil || cfg.CurrencyID == "" {
		return fmt.Errorf("%w: missing currency", authn.ErrInvalidRequest)
	}
	if cfg.TokenPriceBps == nil || cfg.TokenPriceBps.Sign() == 0 {
		return fmt.Errorf("%w: zero token price for currency %s", authn.ErrInvalidRequest, cfg.CurrencyID)
	}

	stored := *cfg
	stored.GroupID = groupID
	e.ledger.PutCurrencyConfig(&stored)

	e.emit(ctx, &domain.LaunchEvent{
		Kind:       domain.EventCurrencyConfigUpdated,
		GroupID:    groupID,
		CurrencyID: cfg.CurrencyID,
		Payload: map[string]string{
			"token_price_bps": cfg.TokenPriceBps.String(),
			"is_enabled":      strconv.FormatBool(cfg.IsEnabled),
		},
	})
	return nil
}

// SetWithdrawalAddress sets the destination withdrawals pay out to.
func (e *Engine) SetWithdrawalAddress(ctx context.Context, caller, address string) (err error) {
	start := time.Now()
	defer func() { e.observe("set_withdrawal_address", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityWithdrawer); err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("%w: empty withdrawal address", authn.ErrInvalidRequest)
	}

	e.ledger.SetWithdrawalAddress(address)
	e.emit(ctx, &domain.LaunchEvent{
		Kind:        domain.EventWithdrawalAddressSet,
		UserAddress: address,
	})
	return nil
}

// Pause suspends every mutating operation until Unpause.
func (e *Engine) Pause(ctx context.Context, caller string) (err error) {
	start := time.Now()
	defer func() { e.observe("pause", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityManager); err != nil {
		return err
	}
	e.ledger.SetPaused(true)
	e.emit(ctx, &domain.LaunchEvent{Kind: domain.EventEnginePaused})
	return nil
}

// Unpause lifts the engine-wide pause flag.
func (e *Engine) Unpause(ctx context.Context, caller string) (err error) {
	start := time.Now()
	defer func() { e.observe("unpause", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityManager); err != nil {
		return err
	}
	e.ledger.SetPaused(false)
	e.emit(ctx, &domain.LaunchEvent{Kind: domain.EventEngineUnpaused})
	return nil
}

// Read accessors for query surfaces. Like the operations, these assume
// the host serializes access to the engine.

// Group returns the group, if registered.
func (e *Engine) Group(groupID string) (*domain.LaunchGroup, bool) {
	return e.ledger.Group(groupID)
}

// GroupIDs returns all registered group ids in lexical order.
func (e *Engine) GroupIDs() []string {
	return e.ledger.GroupIDs()
}

// GetParticipation returns the participation record for the id; a
// never-used id yields a zero-valued record.
func (e *Engine) GetParticipation(participationID string) *domain.ParticipationInfo {
	return e.ledger.Participation(participationID)
}

// UserTokens returns the user's active token total in the group.
func (e *Engine) UserTokens(groupID, userID string) *big.Int {
	return e.ledger.UserTokens(groupID, userID)
}

// TokensSold returns the group's finalized token total.
func (e *Engine) TokensSold(groupID string) *big.Int {
	return e.ledger.TokensSold(groupID)
}

// Withdrawable returns the withdrawable balance for the currency.
func (e *Engine) Withdrawable(currencyID string) *big.Int {
	return e.ledger.Withdrawable(currencyID)
}

// CurrencyConfig returns the currency config for (group, currency).
func (e *Engine) CurrencyConfig(groupID, currencyID string) (*domain.CurrencyConfig, bool) {
	return e.ledger.CurrencyConfig(groupID, currencyID)
}

// Paused reports the engine-wide pause flag.
func (e *Engine) Paused() bool {
	return e.ledger.Paused()
}
