package domain

import "math/big"

// ParticipationInfo is one funding record tying a user, a token amount,
// and a paid currency amount to a launch group. Records are never
// removed: a cancelled or refunded participation keeps its UserID but
// has both amounts zeroed, which distinguishes "existed, now empty"
// from "never existed" (empty UserID).
type ParticipationInfo struct {
	ParticipationID string
	GroupID         string
	UserID          string
	TokenAmount     *big.Int
	CurrencyAmount  *big.Int
	CurrencyID      string
	PayerAddress    string
	IsFinalized     bool
}

// Exists reports whether the record was ever created.
func (p *ParticipationInfo) Exists() bool {
	return p != nil && p.UserID != ""
}

// IsEmpty reports whether both amounts have been zeroed out.
func (p *ParticipationInfo) IsEmpty() bool {
	return p.TokenAmount.Sign() == 0 && p.CurrencyAmount.Sign() == 0
}

// Clone returns a deep copy safe for external mutation.
func (p *ParticipationInfo) Clone() *ParticipationInfo {
	if p == nil {
		return nil
	}
	cp := *p
	cp.TokenAmount = new(big.Int).Set(p.TokenAmount)
	cp.CurrencyAmount = new(big.Int).Set(p.CurrencyAmount)
	return &cp
}
