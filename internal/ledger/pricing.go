package ledger

import "math/big"

// CurrencyAmount computes the currency cost of tokenAmount at the
// bps-scaled price: floor(priceBps * tokenAmount / 10^tokenDecimals).
// The multiply runs at full precision before the divide, and the
// divide truncates toward zero, matching fixed-point bps semantics.
func CurrencyAmount(priceBps, tokenAmount *big.Int, tokenDecimals uint) *big.Int {
	product := new(big.Int).Mul(priceBps, tokenAmount)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tokenDecimals)), nil)
	return product.Quo(product, scale)
}
