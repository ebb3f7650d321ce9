package ledger

import (
	"math/big"

	"launch-ledger/internal/domain"
)

// Snapshot is a deep copy of the full ledger state, used to assert that
// rejected operations leave state untouched.
func (l *Ledger) Snapshot() *Ledger {
	cp := New()
	for id, g := range l.groups {
		cp.groups[id] = cloneGroup(g)
	}
	for k, cfg := range l.currencies {
		c := *cfg
		c.TokenPriceBps = new(big.Int).Set(cfg.TokenPriceBps)
		cp.currencies[k] = &c
	}
	for id, p := range l.participations {
		cp.participations[id] = p.Clone()
	}
	for id, v := range l.tokensSold {
		cp.tokensSold[id] = new(big.Int).Set(v)
	}
	for gid, users := range l.userTokens {
		cp.userTokens[gid] = make(map[string]*big.Int, len(users))
		for uid, v := range users {
			cp.userTokens[gid][uid] = new(big.Int).Set(v)
		}
	}
	for id, v := range l.withdrawable {
		cp.withdrawable[id] = new(big.Int).Set(v)
	}
	cp.withdrawalAddress = l.withdrawalAddress
	cp.paused = l.paused
	return cp
}

// Equal reports whether two ledgers hold identical state. Zero-valued
// and absent aggregate entries compare equal, mirroring how reads treat
// them; the participant set itself is compared exactly.
func (l *Ledger) Equal(other *Ledger) bool {
	if len(l.groups) != len(other.groups) ||
		len(l.currencies) != len(other.currencies) ||
		len(l.participations) != len(other.participations) {
		return false
	}
	for id, g := range l.groups {
		o, ok := other.groups[id]
		if !ok || !groupsEqual(g, o) {
			return false
		}
	}
	for k, cfg := range l.currencies {
		o, ok := other.currencies[k]
		if !ok || cfg.IsEnabled != o.IsEnabled || cfg.TokenPriceBps.Cmp(o.TokenPriceBps) != 0 {
			return false
		}
	}
	for id, p := range l.participations {
		o, ok := other.participations[id]
		if !ok || !participationsEqual(p, o) {
			return false
		}
	}
	if !amountMapsEqual(l.tokensSold, other.tokensSold) ||
		!amountMapsEqual(l.withdrawable, other.withdrawable) {
		return false
	}
	if !userMapsEqual(l.userTokens, other.userTokens) {
		return false
	}
	return l.withdrawalAddress == other.withdrawalAddress && l.paused == other.paused
}

func groupsEqual(a, b *domain.LaunchGroup) bool {
	return a.ID == b.ID &&
		a.StartsAt == b.StartsAt &&
		a.EndsAt == b.EndsAt &&
		a.FinalizesAtParticipation == b.FinalizesAtParticipation &&
		a.Status == b.Status &&
		a.MinTokenAmountPerUser.Cmp(b.MinTokenAmountPerUser) == 0 &&
		a.MaxTokenAmountPerUser.Cmp(b.MaxTokenAmountPerUser) == 0 &&
		a.MaxTokenAllocation.Cmp(b.MaxTokenAllocation) == 0
}

func participationsEqual(a, b *domain.ParticipationInfo) bool {
	return a.ParticipationID == b.ParticipationID &&
		a.GroupID == b.GroupID &&
		a.UserID == b.UserID &&
		a.CurrencyID == b.CurrencyID &&
		a.PayerAddress == b.PayerAddress &&
		a.IsFinalized == b.IsFinalized &&
		a.TokenAmount.Cmp(b.TokenAmount) == 0 &&
		a.CurrencyAmount.Cmp(b.CurrencyAmount) == 0
}

func amountMapsEqual(a, b map[string]*big.Int) bool {
	for id, v := range a {
		if v.Cmp(amountOrZero(b[id])) != 0 {
			return false
		}
	}
	for id, v := range b {
		if v.Cmp(amountOrZero(a[id])) != 0 {
			return false
		}
	}
	return true
}

func userMapsEqual(a, b map[string]map[string]*big.Int) bool {
	for gid, users := range a {
		for uid, v := range users {
			o, ok := b[gid][uid]
			if !ok || v.Cmp(o) != 0 {
				return false
			}
		}
	}
	for gid, users := range b {
		for uid := range users {
			if _, ok := a[gid][uid]; !ok {
				return false
			}
		}
	}
	return true
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
