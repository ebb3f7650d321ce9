package domain

import "math/big"

// CurrencyConfig holds the per-group payment configuration for one
// accepted currency. Keyed by (group id, currency id).
type CurrencyConfig struct {
	GroupID       string
	CurrencyID    string
	TokenPriceBps *big.Int // price of one token unit in this currency, bps-scaled; nonzero when set
	IsEnabled     bool
}
