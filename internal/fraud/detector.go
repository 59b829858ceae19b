// Package fraud implements the built-in fraud indicator detector.
package fraud

import (
	"github.com/opensource-finance/caduceus/internal/domain"
)

// Detector inspects raw applicant signals for anomaly patterns. It never
// consults the credit score: indicators are evaluated independently of
// scoring, and only their count feeds into the decision policy.
type Detector struct {
	thresholds domain.FraudThresholds
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(thresholds domain.FraudThresholds) *Detector {
	return &Detector{thresholds: thresholds}
}

// Detect evaluates every predicate in the fixed catalog against the
// application. All six checks always run; emission order matches catalog
// order so output is deterministic. Duplicates cannot occur because each
// predicate emits at most one flag.
func (d *Detector) Detect(app *domain.Application) []domain.FraudFlag {
	t := d.thresholds
	flags := []domain.FraudFlag{}

	if app.Calls.NightToDayRatio > t.NightCallRatio {
		flags = append(flags, domain.FlagHighNightCallRatio)
	}

	if app.Calls.GeographicSpread > t.GeographicSpread {
		flags = append(flags, domain.FlagWideGeographicPattern)
	}

	// No bank deposits but heavy mobile money inflow relative to the wallet
	// balance suggests income routed to evade the statement analyzer.
	if app.Bank.CountDeposits == 0 &&
		app.MobileMoney.TotalInflow > app.MobileMoney.AvgBalance*t.InflowToBalanceMultiple {
		flags = append(flags, domain.FlagSuspiciousIncomeSource)
	}

	if app.Calls.MissedCallRatio > t.MissedCallRatio {
		flags = append(flags, domain.FlagHighMissedCallRatio)
	}

	if app.MobileMoney.InflowOutflowRatio > t.InflowOutflowRatio {
		flags = append(flags, domain.FlagHighInflowOutflowRatio)
	}

	if app.MobileMoney.BalanceVolatility > app.MobileMoney.AvgBalance*t.VolatilityMultiple &&
		app.MobileMoney.AvgBalance > 0 {
		flags = append(flags, domain.FlagHighBalanceVolatility)
	}

	return flags
}
