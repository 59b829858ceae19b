package domain

// FraudFlag is a named anomaly indicator from the fixed catalog below.
// Flag identity is reported to the caller; flag count drives the decision
// policy. Flags never feed back into sub-scores.
type FraudFlag string

// Built-in fraud indicator catalog. Detection order matches declaration
// order and is fixed for deterministic output.
const (
	FlagHighNightCallRatio     FraudFlag = "High night call ratio"
	FlagWideGeographicPattern  FraudFlag = "Unusually wide geographic pattern"
	FlagSuspiciousIncomeSource FraudFlag = "Suspicious income source pattern"
	FlagHighMissedCallRatio    FraudFlag = "High missed call ratio"
	FlagHighInflowOutflowRatio FraudFlag = "Abnormally high inflow to outflow ratio"
	FlagHighBalanceVolatility  FraudFlag = "Extremely high balance volatility"
)

// RiskTier classifies the requested medication cost and carries the minimum
// qualifying credit score for that cost band.
type RiskTier struct {
	Category    string `json:"category"`
	MinScore    int    `json:"min_score"`
	Description string `json:"description"`
}

// Risk tier categories.
const (
	TierLow    = "low"
	TierMedium = "medium"
	TierHigh   = "high"
)

// Decision policy reasons. Denial reasons are terminal states of the limit
// state machine, not errors.
const (
	ReasonApproved                  = "Credit approved"
	ReasonMultipleFraudIndicators   = "Multiple fraud indicators detected"
	ReasonScoreTooLow               = "Credit score too low"
	ReasonInsufficientAssetCoverage = "Insufficient asset coverage"
	ReasonAmountTooLow              = "Approved amount too low to be useful"
)

// ScoreBreakdown records the per-signal contributions that summed into the
// final credit score, before the [0,100] clamp.
type ScoreBreakdown struct {
	Asset    float64 `json:"asset"`
	Income   float64 `json:"income"`
	Behavior float64 `json:"behavior"`
	Activity float64 `json:"activity"`
	Social   float64 `json:"social"`
}

// Sum returns the unclamped total of all contributions.
func (b ScoreBreakdown) Sum() float64 {
	return b.Asset + b.Income + b.Behavior + b.Activity + b.Social
}

// Decision is the complete evaluation result returned to the caller.
// It is created once per evaluation and never mutated afterwards.
// The amount fields are present only on approval.
type Decision struct {
	Approved           bool        `json:"approved"`
	CreditScore        int         `json:"credit_score"`
	ApprovedAmount     *float64    `json:"approved_amount,omitempty"`
	RequestedAmount    *float64    `json:"requested_amount,omitempty"`
	CoveragePercentage *float64    `json:"coverage_percentage,omitempty"`
	Reason             string      `json:"reason"`
	FraudFlags         []FraudFlag `json:"fraud_flags"`
	MedicationProfile  RiskTier    `json:"medication_profile"`
	AssetCoverageRatio *float64    `json:"asset_coverage_ratio,omitempty"`
}

// Denied builds a terminal denial decision.
func Denied(score int, reason string, flags []FraudFlag, tier RiskTier) *Decision {
	if flags == nil {
		flags = []FraudFlag{}
	}
	return &Decision{
		Approved:          false,
		CreditScore:       score,
		Reason:            reason,
		FraudFlags:        flags,
		MedicationProfile: tier,
	}
}
