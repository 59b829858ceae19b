// Package screening provides the CEL-Go based supplemental indicator engine.
// Tenants define anomaly predicates over the raw applicant signals; hits are
// appended to the built-in fraud indicator catalog, after the fixed flags so
// catalog order stays deterministic.
package screening

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/caduceus/internal/domain"
)

// Engine compiles and evaluates screening rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ScreeningRule
	Program cel.Program
}

// NewEngine creates a screening engine with the applicant signal variables
// declared in its CEL environment.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("asset_value", cel.DoubleType),
		cel.Variable("requested_cost", cel.DoubleType),
		cel.Variable("coverage_ratio", cel.DoubleType),
		cel.Variable("bank", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("calls", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("mpesa", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.ScreeningRule) error {
	if cfg == nil {
		return fmt.Errorf("screening rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.ScreeningRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces all loaded rules atomically (hot reload).
func (e *Engine) ReloadRules(configs []*domain.ScreeningRule) error {
	newRules := make(map[string]*CompiledRule)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.ScreeningRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScreeningRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Screen evaluates every loaded rule against the application and returns
// the flags of the rules whose predicates held. Rules run in ID order so
// output is deterministic; a rule that errors contributes nothing.
func (e *Engine) Screen(ctx context.Context, app *domain.Application) []domain.FraudFlag {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].Config.ID < rules[j].Config.ID })

	activation := activationFor(app)

	var flags []domain.FraudFlag
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if hit, ok := out.(types.Bool); ok && bool(hit) {
			flags = append(flags, domain.FraudFlag(rule.Config.Flag))
		}
	}
	return flags
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.ScreeningRule) (*CompiledRule, error) {
	if cfg.Flag == "" {
		return nil, fmt.Errorf("screening rule %s: flag is required", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile screening rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("screening rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for screening rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}

// activationFor flattens the applicant signal bundles into CEL variables.
func activationFor(app *domain.Application) map[string]any {
	return map[string]any{
		"asset_value":    app.Asset.Value,
		"requested_cost": app.Medication.Cost,
		"coverage_ratio": app.CoverageRatio(),
		"bank": map[string]any{
			"count_deposits":              app.Bank.CountDeposits,
			"total_deposits_amount":       app.Bank.TotalDepositsAmount,
			"average_balance":             app.Bank.AverageBalance,
			"net_cash_flow":               app.Bank.NetCashFlow,
			"turnover":                    app.Bank.Turnover,
			"balance_volatility_std_dev":  app.Bank.BalanceVolatilityStdDev,
			"percentage_active_days":      app.Bank.PercentageActiveDays,
			"days_since_last_transaction": app.Bank.DaysSinceLastTransaction,
			"has_salary_inflow":           app.Bank.HasSalaryInflow,
			"has_loan_repayment":          app.Bank.HasLoanRepayment,
			"has_betting_transactions":    app.Bank.HasBettingTransactions,
			"has_bounced_cheques":         app.Bank.HasBouncedCheques,
		},
		"calls": map[string]any{
			"call_frequency":        app.Calls.CallFrequency,
			"call_duration":         app.Calls.CallDuration,
			"stable_contacts_ratio": app.Calls.StableContactsRatio,
			"night_vs_day":          app.Calls.NightToDayRatio,
			"missed_only":           app.Calls.MissedCallRatio,
			"geographic_pattern":    app.Calls.GeographicSpread,
		},
		"mpesa": map[string]any{
			"total_transactions":   app.MobileMoney.TotalTransactions,
			"total_inflow":         app.MobileMoney.TotalInflow,
			"total_outflow":        app.MobileMoney.TotalOutflow,
			"avg_balance":          app.MobileMoney.AvgBalance,
			"balance_volatility":   app.MobileMoney.BalanceVolatility,
			"inflow_outflow_ratio": app.MobileMoney.InflowOutflowRatio,
			"unique_recipients":    app.MobileMoney.UniqueRecipients,
			"recurring_payments":   app.MobileMoney.RecurringPayments,
		},
	}
}
