// Package scoring implements the five sub-score calculators and their
// aggregation into a single bounded credit score.
package scoring

import (
	"math"

	"github.com/opensource-finance/caduceus/internal/domain"
)

// Calculator computes sub-scores from one profile's threshold tables.
// It is a pure function container: no state, safe for concurrent use.
type Calculator struct {
	profile *domain.ScoringProfile
}

// NewCalculator creates a calculator bound to a scoring profile.
func NewCalculator(profile *domain.ScoringProfile) *Calculator {
	if profile == nil {
		profile = domain.DefaultScoringProfile()
	}
	return &Calculator{profile: profile}
}

// Profile returns the bound scoring profile.
func (c *Calculator) Profile() *domain.ScoringProfile {
	return c.profile
}

// AssetCoverage scores the collateral-to-cost ratio. The tier table is
// evaluated top to bottom, first match wins; a positive asset below every
// tier still earns the floor points. A non-positive asset contributes 0.
func (c *Calculator) AssetCoverage(asset domain.AssetProfile, med domain.MedicationRequest) float64 {
	if asset.Value <= 0 || med.Cost <= 0 {
		return 0
	}

	ratio := asset.Value / med.Cost
	for _, tier := range c.profile.AssetTiers {
		if ratio >= tier.MinRatio {
			return tier.Points
		}
	}
	return c.profile.FloorPoints
}

// Income scores income stability as an ordered waterfall: the first matching
// branch wins, branches never sum. Salary inflow dominates; otherwise mobile
// money inflow is compared against strict multiples of the requested cost.
func (c *Calculator) Income(bank domain.BankProfile, mm domain.MobileMoneyProfile, med domain.MedicationRequest) float64 {
	if bank.HasSalaryInflow {
		return c.profile.SalaryInflowPoints
	}
	for _, band := range c.profile.IncomeBands {
		if mm.TotalInflow > med.Cost*band.Multiple {
			return band.Points
		}
	}
	return 0
}

// Behavior scores financial conduct: a fixed base eroded by penalties and
// raised by a loan repayment bonus, floored at zero so the contribution is
// never negative.
func (c *Calculator) Behavior(bank domain.BankProfile) float64 {
	score := c.profile.BehaviorBase
	if bank.HasBouncedCheques {
		score -= c.profile.BouncedChequePenalty
	}
	if bank.HasBettingTransactions {
		score -= c.profile.BettingPenalty
	}
	if bank.HasLoanRepayment {
		score += c.profile.LoanRepaymentBonus
	}
	return math.Max(0, score)
}

// Activity scores account liveliness from the active-day percentage, with a
// recency bonus, capped both before and after the bonus.
func (c *Calculator) Activity(bank domain.BankProfile) float64 {
	score := math.Min(bank.PercentageActiveDays*c.profile.ActivityCap, c.profile.ActivityCap)
	if bank.DaysSinceLastTransaction <= c.profile.RecentActivityDays {
		score += c.profile.RecentActivityBonus
	}
	return math.Min(c.profile.ActivityCap, score)
}

// Social scores contact stability from call log aggregates, with an active
// caller bonus, capped after the bonus.
func (c *Calculator) Social(calls domain.CallLogProfile) float64 {
	score := math.Min(calls.StableContactsRatio*c.profile.SocialCap, c.profile.SocialCap)
	if calls.CallFrequency > c.profile.ActiveCallerMinCalls {
		score += c.profile.ActiveCallerBonus
	}
	return math.Min(c.profile.SocialCap, score)
}

// Score sums all sub-scores and clamps to [0, MaxScore]. The breakdown
// records the unclamped contributions for auditability.
func (c *Calculator) Score(app *domain.Application) (int, domain.ScoreBreakdown) {
	breakdown := domain.ScoreBreakdown{
		Asset:    c.AssetCoverage(app.Asset, app.Medication),
		Income:   c.Income(app.Bank, app.MobileMoney, app.Medication),
		Behavior: c.Behavior(app.Bank),
		Activity: c.Activity(app.Bank),
		Social:   c.Social(app.Calls),
	}

	total := breakdown.Sum()
	if total > float64(c.profile.MaxScore) {
		total = float64(c.profile.MaxScore)
	}
	if total < 0 {
		total = 0
	}
	return int(total), breakdown
}
