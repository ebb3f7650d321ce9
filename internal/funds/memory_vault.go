package funds

import (
	"context"
	"math/big"
	"sync"
)

// MemoryVault is an in-memory Transferor for tests and local runs. It
// tracks per-currency account balances plus one custody balance per
// currency, and rejects transfers the source cannot cover.
type MemoryVault struct {
	mu       sync.Mutex
	accounts map[string]map[string]*big.Int // currencyID → address → balance
	custody  map[string]*big.Int            // currencyID → custody balance
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		accounts: make(map[string]map[string]*big.Int),
		custody:  make(map[string]*big.Int),
	}
}

// Credit adds amount of currency to an external account.
func (v *MemoryVault) Credit(currencyID, address string, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.accounts[currencyID] == nil {
		v.accounts[currencyID] = make(map[string]*big.Int)
	}
	bal := v.balanceLocked(currencyID, address)
	v.accounts[currencyID][address] = bal.Add(bal, amount)
}

// Pull transfers amount of currency from payer into custody.
func (v *MemoryVault) Pull(_ context.Context, currencyID, payer string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	bal := v.balanceLocked(currencyID, payer)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if v.accounts[currencyID] == nil {
		v.accounts[currencyID] = make(map[string]*big.Int)
	}
	v.accounts[currencyID][payer] = bal.Sub(bal, amount)

	cust := v.custodyLocked(currencyID)
	v.custody[currencyID] = cust.Add(cust, amount)
	return nil
}

// Push transfers amount of currency from custody to recipient.
func (v *MemoryVault) Push(_ context.Context, currencyID, recipient string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	cust := v.custodyLocked(currencyID)
	if cust.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	v.custody[currencyID] = cust.Sub(cust, amount)

	if v.accounts[currencyID] == nil {
		v.accounts[currencyID] = make(map[string]*big.Int)
	}
	bal := v.balanceLocked(currencyID, recipient)
	v.accounts[currencyID][recipient] = bal.Add(bal, amount)
	return nil
}

// Balance returns the current balance of an external account.
func (v *MemoryVault) Balance(currencyID, address string) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.balanceLocked(currencyID, address)
}

// CustodyBalance returns the custody balance for a currency.
func (v *MemoryVault) CustodyBalance(currencyID string) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.custodyLocked(currencyID)
}

func (v *MemoryVault) balanceLocked(currencyID, address string) *big.Int {
	if bal, ok := v.accounts[currencyID][address]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (v *MemoryVault) custodyLocked(currencyID string) *big.Int {
	if bal, ok := v.custody[currencyID]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Verify interface compliance at compile time.
var _ Transferor = (*MemoryVault)(nil)
