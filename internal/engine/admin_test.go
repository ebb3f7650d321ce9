package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
)

func validGroup(id string) *domain.LaunchGroup {
	return &domain.LaunchGroup{
		ID:                    id,
		StartsAt:              100,
		EndsAt:                200,
		MinTokenAmountPerUser: big.NewInt(10),
		MaxTokenAmountPerUser: big.NewInt(1000),
		MaxTokenAllocation:    big.NewInt(10000),
	}
}

func validCurrencyConfig() *domain.CurrencyConfig {
	return &domain.CurrencyConfig{
		CurrencyID:    "USDC",
		TokenPriceBps: big.NewInt(5),
		IsEnabled:     true,
	}
}

func TestCreateGroup_DefaultsToPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.CreateGroup(ctx, managerID, validGroup("group-a"), validCurrencyConfig()); err != nil {
		t.Fatalf("create group: %v", err)
	}

	g, ok := env.engine.Group("group-a")
	if !ok {
		t.Fatal("expected group registered")
	}
	if g.Status != domain.GroupStatusPending {
		t.Errorf("expected PENDING default, got %s", g.Status)
	}

	cfg, ok := env.engine.CurrencyConfig("group-a", "USDC")
	if !ok || !cfg.IsEnabled {
		t.Error("expected initial currency registered and enabled")
	}

	last := env.emitter.Last()
	if last.Kind != domain.EventGroupCreated || last.CurrencyID != "USDC" {
		t.Errorf("unexpected creation event: %+v", last)
	}
	if last.Payload["status"] != "PENDING" || last.Payload["token_price_bps"] != "5" {
		t.Errorf("expected creation payload with status and price, got %v", last.Payload)
	}
}

func TestCreateGroup_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.CreateGroup(ctx, managerID, validGroup("group-a"), validCurrencyConfig()); err != nil {
		t.Fatalf("seed group: %v", err)
	}

	t.Run("requires manager", func(t *testing.T) {
		err := env.engine.CreateGroup(ctx, "Mallory", validGroup("group-m"), validCurrencyConfig())
		var capErr *authn.CapabilityError
		if !errors.As(err, &capErr) {
			t.Errorf("expected CapabilityError, got %v", err)
		}
	})

	t.Run("id taken", func(t *testing.T) {
		err := env.engine.CreateGroup(ctx, managerID, validGroup("group-a"), validCurrencyConfig())
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		err := env.engine.CreateGroup(ctx, managerID, validGroup(""), validCurrencyConfig())
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("missing caps", func(t *testing.T) {
		g := validGroup("group-b")
		g.MaxTokenAllocation = nil
		err := env.engine.CreateGroup(ctx, managerID, g, validCurrencyConfig())
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("zero price", func(t *testing.T) {
		cfg := validCurrencyConfig()
		cfg.TokenPriceBps = new(big.Int)
		err := env.engine.CreateGroup(ctx, managerID, validGroup("group-c"), cfg)
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("missing currency", func(t *testing.T) {
		err := env.engine.CreateGroup(ctx, managerID, validGroup("group-d"), nil)
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})
}

func TestSetGroupStatus_LegalTransitionsOnly(t *testing.T) {
	env := newTestEnv(t)
	env.addGroup(t, "group-a", domain.GroupStatusPending, false)
	ctx := context.Background()

	steps := []domain.GroupStatus{
		domain.GroupStatusActive,
		domain.GroupStatusPaused,
		domain.GroupStatusActive,
		domain.GroupStatusCompleted,
	}
	for _, next := range steps {
		if err := env.engine.SetGroupStatus(ctx, managerID, "group-a", next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if got := env.emitter.Last().Payload["status"]; got != next.String() {
			t.Errorf("expected event payload status %s, got %q", next, got)
		}
	}

	// COMPLETED is terminal
	err := env.engine.SetGroupStatus(ctx, managerID, "group-a", domain.GroupStatusActive)
	if !errors.Is(err, authn.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest out of COMPLETED, got %v", err)
	}

	// Same-status is not a transition
	env.addGroup(t, "group-b", domain.GroupStatusActive, false)
	err = env.engine.SetGroupStatus(ctx, managerID, "group-b", domain.GroupStatusActive)
	if !errors.Is(err, authn.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for same status, got %v", err)
	}
}

func TestSetGroupSettings_UpdatesAndGuards(t *testing.T) {
	env := newTestEnv(t)
	env.addGroup(t, "group-a", domain.GroupStatusActive, false)
	ctx := context.Background()

	settings := domain.GroupSettings{
		StartsAt:              110,
		EndsAt:                300,
		MinTokenAmountPerUser: big.NewInt(20),
		MaxTokenAmountPerUser: big.NewInt(2000),
		MaxTokenAllocation:    big.NewInt(20000),
		Status:                domain.GroupStatusActive,
	}
	if err := env.engine.SetGroupSettings(ctx, managerID, "group-a", settings); err != nil {
		t.Fatalf("set settings: %v", err)
	}

	g, _ := env.engine.Group("group-a")
	if g.EndsAt != 300 || g.MaxTokenAmountPerUser.Int64() != 2000 {
		t.Errorf("settings not applied: %+v", g)
	}

	payload := env.emitter.Last().Payload
	if payload["ends_at"] != "300" || payload["max_token_amount_per_user"] != "2000" {
		t.Errorf("expected event payload with new settings, got %v", payload)
	}

	t.Run("settings may carry one transition", func(t *testing.T) {
		settings.Status = domain.GroupStatusPaused
		if err := env.engine.SetGroupSettings(ctx, managerID, "group-a", settings); err != nil {
			t.Fatalf("set settings with transition: %v", err)
		}
		g, _ := env.engine.Group("group-a")
		if g.Status != domain.GroupStatusPaused {
			t.Errorf("expected PAUSED, got %s", g.Status)
		}
	})

	t.Run("illegal transition rejected", func(t *testing.T) {
		settings.Status = domain.GroupStatusPending
		err := env.engine.SetGroupSettings(ctx, managerID, "group-a", settings)
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("finalization mode frozen after PENDING", func(t *testing.T) {
		settings.Status = domain.GroupStatusPaused
		settings.FinalizesAtParticipation = true
		err := env.engine.SetGroupSettings(ctx, managerID, "group-a", settings)
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("finalization mode mutable while PENDING", func(t *testing.T) {
		env.addGroup(t, "group-p", domain.GroupStatusPending, false)
		s := domain.GroupSettings{
			StartsAt:                 100,
			EndsAt:                   200,
			MinTokenAmountPerUser:    big.NewInt(10),
			MaxTokenAmountPerUser:    big.NewInt(1000),
			MaxTokenAllocation:       big.NewInt(10000),
			FinalizesAtParticipation: true,
			Status:                   domain.GroupStatusPending,
		}
		if err := env.engine.SetGroupSettings(ctx, managerID, "group-p", s); err != nil {
			t.Fatalf("set settings while PENDING: %v", err)
		}
		g, _ := env.engine.Group("group-p")
		if !g.FinalizesAtParticipation {
			t.Error("expected finalization mode updated")
		}
	})
}

func TestSetCurrencyConfig(t *testing.T) {
	env := newTestEnv(t)
	env.addGroup(t, "group-a", domain.GroupStatusActive, false)
	ctx := context.Background()

	if err := env.engine.SetCurrencyConfig(ctx, managerID, "group-a", &domain.CurrencyConfig{
		CurrencyID:    "USDT",
		TokenPriceBps: big.NewInt(7),
		IsEnabled:     true,
	}); err != nil {
		t.Fatalf("add currency: %v", err)
	}

	cfg, ok := env.engine.CurrencyConfig("group-a", "USDT")
	if !ok || cfg.TokenPriceBps.Int64() != 7 {
		t.Errorf("expected USDT at 7 bps, got %+v", cfg)
	}

	payload := env.emitter.Last().Payload
	if payload["token_price_bps"] != "7" || payload["is_enabled"] != "true" {
		t.Errorf("expected event payload with price and enable flag, got %v", payload)
	}

	t.Run("zero price rejected", func(t *testing.T) {
		err := env.engine.SetCurrencyConfig(ctx, managerID, "group-a", &domain.CurrencyConfig{
			CurrencyID:    "USDT",
			TokenPriceBps: new(big.Int),
			IsEnabled:     true,
		})
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("unknown group rejected", func(t *testing.T) {
		err := env.engine.SetCurrencyConfig(ctx, managerID, "group-x", &domain.CurrencyConfig{
			CurrencyID:    "USDT",
			TokenPriceBps: big.NewInt(7),
		})
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})
}

func TestSetWithdrawalAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.SetWithdrawalAddress(ctx, withdrawerID, "NewTreasury"); err != nil {
		t.Fatalf("set withdrawal address: %v", err)
	}
	if env.ledger.WithdrawalAddress() != "NewTreasury" {
		t.Errorf("expected NewTreasury, got %s", env.ledger.WithdrawalAddress())
	}

	t.Run("requires withdrawer", func(t *testing.T) {
		err := env.engine.SetWithdrawalAddress(ctx, managerID, "Elsewhere")
		var capErr *authn.CapabilityError
		if !errors.As(err, &capErr) {
			t.Errorf("expected CapabilityError, got %v", err)
		}
	})

	t.Run("empty address rejected", func(t *testing.T) {
		err := env.engine.SetWithdrawalAddress(ctx, withdrawerID, "")
		if !errors.Is(err, authn.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})
}
