package screening

import (
	"context"
	"testing"

	"github.com/opensource-finance/caduceus/internal/domain"
)

func rule(id, expr, flag string) *domain.ScreeningRule {
	return &domain.ScreeningRule{
		ID:         id,
		Name:       id,
		Version:    "1",
		Expression: expr,
		Flag:       flag,
		Enabled:    true,
	}
}

func testApplication() *domain.Application {
	return &domain.Application{
		Bank:        domain.BankProfile{CountDeposits: 0},
		Calls:       domain.CallLogProfile{CallFrequency: 2},
		MobileMoney: domain.MobileMoneyProfile{UniqueRecipients: 250, TotalInflow: 8000},
		Asset:       domain.AssetProfile{Value: 500},
		Medication:  domain.MedicationRequest{Cost: 1000},
	}
}

func TestValidateRule(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	t.Run("ValidExpression", func(t *testing.T) {
		err := engine.ValidateRule(rule("r1", "mpesa.unique_recipients > 200", "Fan-out pattern"))
		if err != nil {
			t.Errorf("expected valid rule, got %v", err)
		}
	})

	t.Run("SyntaxError", func(t *testing.T) {
		err := engine.ValidateRule(rule("r2", "mpesa.unique_recipients >>> 200", "x"))
		if err == nil {
			t.Error("expected compile error")
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		err := engine.ValidateRule(rule("r3", "no_such_signal > 1", "x"))
		if err == nil {
			t.Error("expected error for unknown variable")
		}
	})

	t.Run("NonBoolOutput", func(t *testing.T) {
		err := engine.ValidateRule(rule("r4", "asset_value + 1.0", "x"))
		if err == nil {
			t.Error("expected error for non-bool expression")
		}
	})

	t.Run("MissingFlag", func(t *testing.T) {
		err := engine.ValidateRule(rule("r5", "asset_value > 0.0", ""))
		if err == nil {
			t.Error("expected error when flag is empty")
		}
	})

	t.Run("NilRule", func(t *testing.T) {
		if err := engine.ValidateRule(nil); err == nil {
			t.Error("expected error for nil rule")
		}
	})
}

func TestScreen(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	ctx := context.Background()

	t.Run("NoRulesLoaded", func(t *testing.T) {
		if flags := engine.Screen(ctx, testApplication()); len(flags) != 0 {
			t.Errorf("expected no flags, got %v", flags)
		}
	})

	if err := engine.LoadRule(rule("b-fanout", "mpesa.unique_recipients > 200", "Payment fan-out pattern")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if err := engine.LoadRule(rule("a-silent", "calls.call_frequency < 5 && mpesa.total_inflow > 5000.0", "Silent high-volume wallet")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if err := engine.LoadRule(rule("c-covered", "coverage_ratio > 3.0", "Implausible collateral")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	t.Run("HitsInIDOrder", func(t *testing.T) {
		flags := engine.Screen(ctx, testApplication())
		if len(flags) != 2 {
			t.Fatalf("expected 2 hits, got %v", flags)
		}
		// "a-silent" sorts before "b-fanout"; "c-covered" misses.
		if flags[0] != "Silent high-volume wallet" || flags[1] != "Payment fan-out pattern" {
			t.Errorf("unexpected flag order: %v", flags)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		app := testApplication()
		app.MobileMoney.UniqueRecipients = 3
		app.MobileMoney.TotalInflow = 100
		if flags := engine.Screen(ctx, app); len(flags) != 0 {
			t.Errorf("expected no hits, got %v", flags)
		}
	})
}

func TestLoadRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	disabled := rule("off", "asset_value > 0.0", "x")
	disabled.Enabled = false

	rules := []*domain.ScreeningRule{
		rule("one", "asset_value > 0.0", "x"),
		rule("two", "requested_cost > 0.0", "y"),
		disabled,
	}
	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	if engine.RulesCount() != 2 {
		t.Errorf("expected 2 loaded rules, got %d", engine.RulesCount())
	}

	loaded := engine.LoadedRules()
	if len(loaded) != 2 || loaded[0].ID != "one" || loaded[1].ID != "two" {
		t.Errorf("unexpected loaded rules: %v", loaded)
	}
}

func TestReloadRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	ctx := context.Background()

	if err := engine.LoadRule(rule("old", "asset_value > 0.0", "Old flag")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if err := engine.ReloadRules([]*domain.ScreeningRule{
		rule("new", "requested_cost > 0.0", "New flag"),
	}); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Fatalf("expected 1 rule after reload, got %d", engine.RulesCount())
	}

	flags := engine.Screen(ctx, testApplication())
	if len(flags) != 1 || flags[0] != "New flag" {
		t.Errorf("expected only the reloaded rule to fire, got %v", flags)
	}
}

func TestReloadRulesKeepsOldOnError(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	ctx := context.Background()

	if err := engine.LoadRule(rule("keep", "asset_value > 0.0", "Kept flag")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if err := engine.ReloadRules([]*domain.ScreeningRule{
		rule("bad", "not valid cel ((", "x"),
	}); err == nil {
		t.Fatal("expected reload to fail on a bad rule")
	}

	flags := engine.Screen(ctx, testApplication())
	if len(flags) != 1 || flags[0] != "Kept flag" {
		t.Errorf("failed reload must leave the old rule set intact, got %v", flags)
	}
}

func TestClose(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := engine.LoadRule(rule("r", "asset_value > 0.0", "x")); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("expected no rules after Close, got %d", engine.RulesCount())
	}
}
