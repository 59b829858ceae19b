package scoring

import (
	"testing"

	"github.com/opensource-finance/caduceus/internal/domain"
)

func TestAssetCoverage(t *testing.T) {
	calc := NewCalculator(nil)
	med := domain.MedicationRequest{Cost: 1000}

	tests := []struct {
		name  string
		asset float64
		want  float64
	}{
		{"DoubleCoverage", 2000, 40},
		{"ExactlyDoubleBoundary", 2000.00, 40},
		{"JustBelowDouble", 1999.99, 32},
		{"OneAndHalfCoverage", 1500, 32},
		{"FullCoverage", 1000, 25},
		{"HalfCoverage", 500, 15},
		{"BelowEveryTier", 100, 5},
		{"ZeroAsset", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.AssetCoverage(domain.AssetProfile{Value: tt.asset}, med)
			if got != tt.want {
				t.Errorf("AssetCoverage(%v) = %v, want %v", tt.asset, got, tt.want)
			}
		})
	}

	t.Run("ZeroCost", func(t *testing.T) {
		got := calc.AssetCoverage(domain.AssetProfile{Value: 2000}, domain.MedicationRequest{Cost: 0})
		if got != 0 {
			t.Errorf("expected 0 for zero cost, got %v", got)
		}
	})
}

func TestIncome(t *testing.T) {
	calc := NewCalculator(nil)
	med := domain.MedicationRequest{Cost: 1000}

	t.Run("SalaryInflowDominates", func(t *testing.T) {
		bank := domain.BankProfile{HasSalaryInflow: true}
		mm := domain.MobileMoneyProfile{TotalInflow: 0}
		if got := calc.Income(bank, mm, med); got != 25 {
			t.Errorf("expected 25 for salary inflow, got %v", got)
		}
	})

	tests := []struct {
		name   string
		inflow float64
		want   float64
	}{
		{"TripleCost", 3500, 22},
		{"ExactlyTripleFallsThrough", 3000, 18},
		{"AboveCost", 1500, 18},
		{"ExactlyCostFallsThrough", 1000, 12},
		{"AnyPositiveInflow", 1, 12},
		{"NoInflow", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm := domain.MobileMoneyProfile{TotalInflow: tt.inflow}
			got := calc.Income(domain.BankProfile{}, mm, med)
			if got != tt.want {
				t.Errorf("Income(inflow=%v) = %v, want %v", tt.inflow, got, tt.want)
			}
		})
	}
}

func TestBehavior(t *testing.T) {
	calc := NewCalculator(nil)

	tests := []struct {
		name    string
		bounced bool
		betting bool
		loan    bool
		want    float64
	}{
		{"CleanBase", false, false, false, 20},
		{"LoanRepaymentBonus", false, false, true, 25},
		{"BouncedCheques", true, false, false, 5},
		{"Betting", false, true, false, 10},
		{"BothPenaltiesFloorAtZero", true, true, false, 0},
		{"BothPenaltiesPlusBonus", true, true, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := domain.BankProfile{
				HasBouncedCheques:      tt.bounced,
				HasBettingTransactions: tt.betting,
				HasLoanRepayment:       tt.loan,
			}
			if got := calc.Behavior(bank); got != tt.want {
				t.Errorf("Behavior() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActivity(t *testing.T) {
	calc := NewCalculator(nil)

	t.Run("CappedWithRecentBonus", func(t *testing.T) {
		bank := domain.BankProfile{PercentageActiveDays: 1.0, DaysSinceLastTransaction: 3}
		if got := calc.Activity(bank); got != 10 {
			t.Errorf("expected cap 10, got %v", got)
		}
	})

	t.Run("BonusBelowCap", func(t *testing.T) {
		bank := domain.BankProfile{PercentageActiveDays: 0.5, DaysSinceLastTransaction: 7}
		if got := calc.Activity(bank); got != 7 {
			t.Errorf("expected 7 (5 + recency bonus 2), got %v", got)
		}
	})

	t.Run("NoBonusWhenStale", func(t *testing.T) {
		bank := domain.BankProfile{PercentageActiveDays: 0.5, DaysSinceLastTransaction: 8}
		if got := calc.Activity(bank); got != 5 {
			t.Errorf("expected 5 without recency bonus, got %v", got)
		}
	})
}

func TestSocial(t *testing.T) {
	calc := NewCalculator(nil)

	t.Run("CappedWithActiveCallerBonus", func(t *testing.T) {
		calls := domain.CallLogProfile{StableContactsRatio: 1.0, CallFrequency: 20}
		if got := calc.Social(calls); got != 5 {
			t.Errorf("expected cap 5, got %v", got)
		}
	})

	t.Run("BonusBelowCap", func(t *testing.T) {
		calls := domain.CallLogProfile{StableContactsRatio: 0.4, CallFrequency: 16}
		if got := calc.Social(calls); got != 3 {
			t.Errorf("expected 3 (2 + active caller bonus 1), got %v", got)
		}
	})

	t.Run("ExactlyMinCallsNoBonus", func(t *testing.T) {
		calls := domain.CallLogProfile{StableContactsRatio: 0.4, CallFrequency: 15}
		if got := calc.Social(calls); got != 2 {
			t.Errorf("expected 2 without bonus at exactly 15 calls, got %v", got)
		}
	})
}

func TestScore(t *testing.T) {
	calc := NewCalculator(nil)

	t.Run("ClampedAtMax", func(t *testing.T) {
		// Strong applicant: every sub-score at its maximum sums past 100.
		app := &domain.Application{
			Bank: domain.BankProfile{
				HasSalaryInflow:          true,
				HasLoanRepayment:         true,
				PercentageActiveDays:     1.0,
				DaysSinceLastTransaction: 1,
			},
			Calls:      domain.CallLogProfile{StableContactsRatio: 1.0, CallFrequency: 30},
			Asset:      domain.AssetProfile{Value: 2000},
			Medication: domain.MedicationRequest{Cost: 1000},
		}

		score, breakdown := calc.Score(app)
		if score != 100 {
			t.Errorf("expected clamped score 100, got %d", score)
		}
		if breakdown.Sum() <= 100 {
			t.Errorf("expected unclamped breakdown above 100, got %v", breakdown.Sum())
		}
	})

	t.Run("ZeroFloor", func(t *testing.T) {
		app := &domain.Application{
			Bank:       domain.BankProfile{HasBouncedCheques: true, HasBettingTransactions: true},
			Medication: domain.MedicationRequest{Cost: 1000},
		}

		score, _ := calc.Score(app)
		if score != 0 {
			t.Errorf("expected floor score 0, got %d", score)
		}
	})

	t.Run("BreakdownSumsToScore", func(t *testing.T) {
		app := &domain.Application{
			Bank: domain.BankProfile{
				PercentageActiveDays:     0.5,
				DaysSinceLastTransaction: 30,
			},
			Calls:       domain.CallLogProfile{StableContactsRatio: 0.5},
			MobileMoney: domain.MobileMoneyProfile{TotalInflow: 1500},
			Asset:       domain.AssetProfile{Value: 500},
			Medication:  domain.MedicationRequest{Cost: 1000},
		}

		score, breakdown := calc.Score(app)
		// 15 asset + 18 income + 20 behavior + 5 activity + 2.5 social = 60.5
		if score != 60 {
			t.Errorf("expected score 60, got %d", score)
		}
		if breakdown.Asset != 15 || breakdown.Income != 18 || breakdown.Behavior != 20 {
			t.Errorf("unexpected breakdown: %+v", breakdown)
		}
	})

	t.Run("Monotonicity", func(t *testing.T) {
		// Raising only the asset value never lowers the score.
		base := &domain.Application{
			MobileMoney: domain.MobileMoneyProfile{TotalInflow: 1500},
			Asset:       domain.AssetProfile{Value: 400},
			Medication:  domain.MedicationRequest{Cost: 1000},
		}
		better := *base
		better.Asset.Value = 1600

		low, _ := calc.Score(base)
		high, _ := calc.Score(&better)
		if high < low {
			t.Errorf("score decreased with larger asset: %d -> %d", low, high)
		}
	})
}
