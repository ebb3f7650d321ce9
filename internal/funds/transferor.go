// Package funds abstracts the external transfer capability the engine
// settles against. Transfers are atomic and fallible; a failed transfer
// aborts the operation that requested it.
package funds

import (
	"context"
	"errors"
	"math/big"
)

// ErrInsufficientFunds is returned when the source account cannot cover
// the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Transferor moves funds between external accounts and launch custody.
type Transferor interface {
	// Pull transfers amount of currency from payer into launch custody.
	Pull(ctx context.Context, currencyID, payer string, amount *big.Int) error

	// Push transfers amount of currency from launch custody to recipient.
	Push(ctx context.Context, currencyID, recipient string, amount *big.Int) error
}
