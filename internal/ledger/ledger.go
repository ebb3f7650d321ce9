// Package ledger holds the authoritative launch state: groups, currency
// configs, participation records, and the derived aggregates the
// lifecycle engine enforces its invariants against. The ledger is a
// single owned object with no internal locking; the engine serializes
// every access and is the only writer.
package ledger

import (
	"math/big"
	"sort"

	"launch-ledger/internal/domain"
)

type currencyKey struct {
	groupID    string
	currencyID string
}

// Ledger is the durable launch state. All accessors return copies so
// callers can never mutate state behind the engine's back.
type Ledger struct {
	groups         map[string]*domain.LaunchGroup
	currencies     map[currencyKey]*domain.CurrencyConfig
	participations map[string]*domain.ParticipationInfo

	// Derived aggregates, kept consistent with participation mutations.
	tokensSold   map[string]*big.Int            // groupID → finalized token total
	userTokens   map[string]map[string]*big.Int // groupID → userID → active token total
	withdrawable map[string]*big.Int            // currencyID → withdrawable currency total

	withdrawalAddress string
	paused            bool
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		groups:         make(map[string]*domain.LaunchGroup),
		currencies:     make(map[currencyKey]*domain.CurrencyConfig),
		participations: make(map[string]*domain.ParticipationInfo),
		tokensSold:     make(map[string]*big.Int),
		userTokens:     make(map[string]map[string]*big.Int),
		withdrawable:   make(map[string]*big.Int),
	}
}

// HasGroup reports whether the group exists.
func (l *Ledger) HasGroup(groupID string) bool {
	_, ok := l.groups[groupID]
	return ok
}

// Group returns a copy of the group, if it exists.
func (l *Ledger) Group(groupID string) (*domain.LaunchGroup, bool) {
	g, ok := l.groups[groupID]
	if !ok {
		return nil, false
	}
	return cloneGroup(g), true
}

// PutGroup stores the group, overwriting any previous value.
func (l *Ledger) PutGroup(g *domain.LaunchGroup) {
	l.groups[g.ID] = cloneGroup(g)
}

// GroupIDs returns all group ids in lexical order.
func (l *Ledger) GroupIDs() []string {
	ids := make([]string, 0, len(l.groups))
	for id := range l.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllGroupsCompleted reports whether every registered group is COMPLETED.
func (l *Ledger) AllGroupsCompleted() bool {
	for _, g := range l.groups {
		if g.Status != domain.GroupStatusCompleted {
			return false
		}
	}
	return true
}

// CurrencyConfig returns a copy of the (group, currency) config, if set.
func (l *Ledger) CurrencyConfig(groupID, currencyID string) (*domain.CurrencyConfig, bool) {
	cfg, ok := l.currencies[currencyKey{groupID, currencyID}]
	if !ok {
		return nil, false
	}
	cp := *cfg
	cp.TokenPriceBps = new(big.Int).Set(cfg.TokenPriceBps)
	return &cp, true
}

// PutCurrencyConfig stores the currency config for its (group, currency) key.
func (l *Ledger) PutCurrencyConfig(cfg *domain.CurrencyConfig) {
	cp := *cfg
	cp.TokenPriceBps = new(big.Int).Set(cfg.TokenPriceBps)
	l.currencies[currencyKey{cfg.GroupID, cfg.CurrencyID}] = &cp
}

// Participation returns a copy of the record. A participation id that
// was never used yields a zero-valued record whose UserID is empty.
func (l *Ledger) Participation(participationID string) *domain.ParticipationInfo {
	p, ok := l.participations[participationID]
	if !ok {
		return &domain.ParticipationInfo{
			ParticipationID: participationID,
			TokenAmount:     new(big.Int),
			CurrencyAmount:  new(big.Int),
		}
	}
	return p.Clone()
}

// PutParticipation stores the record under its participation id.
func (l *Ledger) PutParticipation(p *domain.ParticipationInfo) {
	l.participations[p.ParticipationID] = p.Clone()
}

// TokensSold returns the finalized token total of the group.
func (l *Ledger) TokensSold(groupID string) *big.Int {
	return copyAmount(l.tokensSold[groupID])
}

// SetTokensSold overwrites the finalized token total of the group.
func (l *Ledger) SetTokensSold(groupID string, total *big.Int) {
	l.tokensSold[groupID] = new(big.Int).Set(total)
}

// AddTokensSold adds delta to the finalized token total of the group.
func (l *Ledger) AddTokensSold(groupID string, delta *big.Int) {
	total := copyAmount(l.tokensSold[groupID])
	l.tokensSold[groupID] = total.Add(total, delta)
}

// UserTokens returns the user's active token total in the group.
func (l *Ledger) UserTokens(groupID, userID string) *big.Int {
	return copyAmount(l.userTokens[groupID][userID])
}

// SetUserTokens overwrites the user's active token total in the group.
func (l *Ledger) SetUserTokens(groupID, userID string, total *big.Int) {
	if l.userTokens[groupID] == nil {
		l.userTokens[groupID] = make(map[string]*big.Int)
	}
	l.userTokens[groupID][userID] = new(big.Int).Set(total)
}

// RemoveUser removes the user from the group's participant set entirely.
func (l *Ledger) RemoveUser(groupID, userID string) {
	delete(l.userTokens[groupID], userID)
}

// HasUser reports whether the user is in the group's participant set.
func (l *Ledger) HasUser(groupID, userID string) bool {
	_, ok := l.userTokens[groupID][userID]
	return ok
}

// Withdrawable returns the withdrawable total of the currency.
func (l *Ledger) Withdrawable(currencyID string) *big.Int {
	return copyAmount(l.withdrawable[currencyID])
}

// AddWithdrawable adds delta to the withdrawable total of the currency.
func (l *Ledger) AddWithdrawable(currencyID string, delta *big.Int) {
	total := copyAmount(l.withdrawable[currencyID])
	l.withdrawable[currencyID] = total.Add(total, delta)
}

// SubWithdrawable subtracts delta from the withdrawable total of the currency.
func (l *Ledger) SubWithdrawable(currencyID string, delta *big.Int) {
	total := copyAmount(l.withdrawable[currencyID])
	l.withdrawable[currencyID] = total.Sub(total, delta)
}

// WithdrawalAddress returns the configured withdrawal destination.
func (l *Ledger) WithdrawalAddress() string {
	return l.withdrawalAddress
}

// SetWithdrawalAddress sets the withdrawal destination.
func (l *Ledger) SetWithdrawalAddress(addr string) {
	l.withdrawalAddress = addr
}

// Paused reports whether the engine-wide pause flag is set.
func (l *Ledger) Paused() bool {
	return l.paused
}

// SetPaused sets the engine-wide pause flag.
func (l *Ledger) SetPaused(paused bool) {
	l.paused = paused
}

func cloneGroup(g *domain.LaunchGroup) *domain.LaunchGroup {
	cp := *g
	cp.MinTokenAmountPerUser = new(big.Int).Set(g.MinTokenAmountPerUser)
	cp.MaxTokenAmountPerUser = new(big.Int).Set(g.MaxTokenAmountPerUser)
	cp.MaxTokenAllocation = new(big.Int).Set(g.MaxTokenAllocation)
	return &cp
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
