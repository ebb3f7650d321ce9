package funds

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
)

func TestMemoryVault_CreditAccumulates(t *testing.T) {
	vault := NewMemoryVault()

	vault.Credit("USDC", "alice", big.NewInt(100))
	vault.Credit("USDC", "alice", big.NewInt(50))

	if got := vault.Balance("USDC", "alice"); got.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("expected balance 150, got %v", got)
	}
}

func TestMemoryVault_Pull(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	vault.Credit("USDC", "alice", big.NewInt(100))

	if err := vault.Pull(ctx, "USDC", "alice", big.NewInt(60)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if got := vault.Balance("USDC", "alice"); got.Cmp(big.NewInt(40)) != 0 {
		t.Errorf("expected payer balance 40, got %v", got)
	}
	if got := vault.CustodyBalance("USDC"); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("expected custody 60, got %v", got)
	}
}

func TestMemoryVault_PullInsufficientFunds(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	vault.Credit("USDC", "alice", big.NewInt(10))

	err := vault.Pull(ctx, "USDC", "alice", big.NewInt(11))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// A rejected pull moves nothing.
	if got := vault.Balance("USDC", "alice"); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("expected balance 10, got %v", got)
	}
	if got := vault.CustodyBalance("USDC"); got.Sign() != 0 {
		t.Errorf("expected custody 0, got %v", got)
	}
}

func TestMemoryVault_Push(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	vault.Credit("USDC", "alice", big.NewInt(100))
	if err := vault.Pull(ctx, "USDC", "alice", big.NewInt(100)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if err := vault.Push(ctx, "USDC", "bob", big.NewInt(30)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if got := vault.CustodyBalance("USDC"); got.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("expected custody 70, got %v", got)
	}
	if got := vault.Balance("USDC", "bob"); got.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("expected recipient balance 30, got %v", got)
	}
}

func TestMemoryVault_PushInsufficientCustody(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	err := vault.Push(ctx, "USDC", "bob", big.NewInt(1))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := vault.Balance("USDC", "bob"); got.Sign() != 0 {
		t.Errorf("expected balance 0, got %v", got)
	}
}

func TestMemoryVault_CurrenciesIndependent(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	vault.Credit("USDC", "alice", big.NewInt(100))
	vault.Credit("USDT", "alice", big.NewInt(5))

	if err := vault.Pull(ctx, "USDC", "alice", big.NewInt(100)); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if got := vault.Balance("USDT", "alice"); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("expected USDT balance 5, got %v", got)
	}
	if got := vault.CustodyBalance("USDT"); got.Sign() != 0 {
		t.Errorf("expected USDT custody 0, got %v", got)
	}
}

func TestMemoryVault_BalanceReturnsCopy(t *testing.T) {
	vault := NewMemoryVault()

	vault.Credit("USDC", "alice", big.NewInt(100))

	bal := vault.Balance("USDC", "alice")
	bal.SetInt64(0)

	if got := vault.Balance("USDC", "alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("mutating returned balance leaked into vault: %v", got)
	}
}

func TestMemoryVault_CreditDoesNotRetainArgument(t *testing.T) {
	vault := NewMemoryVault()

	amount := big.NewInt(100)
	vault.Credit("USDC", "alice", amount)
	amount.SetInt64(7)

	if got := vault.Balance("USDC", "alice"); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected balance 100, got %v", got)
	}
}

func TestMemoryVault_ConcurrentAccess(t *testing.T) {
	vault := NewMemoryVault()
	ctx := context.Background()

	vault.Credit("USDC", "alice", big.NewInt(100))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = vault.Pull(ctx, "USDC", "alice", big.NewInt(1))
		}()
	}
	wg.Wait()

	if got := vault.Balance("USDC", "alice"); got.Sign() != 0 {
		t.Errorf("expected balance 0 after 100 pulls of 1, got %v", got)
	}
	if got := vault.CustodyBalance("USDC"); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("expected custody 100, got %v", got)
	}
}
