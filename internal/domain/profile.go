package domain

// ScoringProfile is the complete threshold table set driving one tenant's
// evaluations: sub-score rule tables, fraud thresholds, risk tiers, and the
// limit policy bands. Profiles are immutable once handed to a scorer; a
// regulatory or tier change is expressed as a new profile, never as an edit
// of a live one.
type ScoringProfile struct {
	TenantID string `json:"tenantId,omitempty"`
	Version  string `json:"version"`

	// Asset coverage sub-score: ordered descending by MinRatio, first match
	// wins. FloorPoints applies when the asset is positive but below every
	// tier. A non-positive asset contributes nothing.
	AssetTiers  []AssetTier `json:"assetTiers"`
	FloorPoints float64     `json:"floorPoints"`

	// Income sub-score: a waterfall. Salary inflow short-circuits at
	// SalaryInflowPoints; otherwise IncomeBands are checked in order against
	// mobile money inflow as a strict multiple of the requested cost.
	SalaryInflowPoints float64      `json:"salaryInflowPoints"`
	IncomeBands        []IncomeBand `json:"incomeBands"`

	// Behavior sub-score: additive with a zero floor.
	BehaviorBase         float64 `json:"behaviorBase"`
	BouncedChequePenalty float64 `json:"bouncedChequePenalty"`
	BettingPenalty       float64 `json:"bettingPenalty"`
	LoanRepaymentBonus   float64 `json:"loanRepaymentBonus"`

	// Activity sub-score.
	ActivityCap         float64 `json:"activityCap"`
	RecentActivityBonus float64 `json:"recentActivityBonus"`
	RecentActivityDays  int     `json:"recentActivityDays"`

	// Social sub-score.
	SocialCap            float64 `json:"socialCap"`
	ActiveCallerBonus    float64 `json:"activeCallerBonus"`
	ActiveCallerMinCalls int     `json:"activeCallerMinCalls"`

	// Fraud detector thresholds.
	Fraud FraudThresholds `json:"fraud"`

	// Risk tiers: ordered descending by MinCost, strict greater-than match,
	// last entry is the catch-all.
	RiskTiers []RiskTierBand `json:"riskTiers"`

	// Limit policy: ordered descending by MinScore.
	LimitBands []LimitBand `json:"limitBands"`

	MinScore          int     `json:"minScore"`          // absolute denial floor
	MinAssetCoverage  float64 `json:"minAssetCoverage"`  // asset < cost*this denies
	MinUsefulFraction float64 `json:"minUsefulFraction"` // approved < cost*this denies
	SingleFlagPenalty float64 `json:"singleFlagPenalty"` // ratio multiplier at one flag
	MaxFraudFlags     int     `json:"maxFraudFlags"`     // flag count at which denial is automatic

	MaxScore int `json:"maxScore"`
}

// AssetTier maps a minimum coverage ratio to sub-score points.
type AssetTier struct {
	MinRatio float64 `json:"minRatio"`
	Points   float64 `json:"points"`
}

// IncomeBand awards points when mobile money inflow strictly exceeds
// Multiple times the requested cost.
type IncomeBand struct {
	Multiple float64 `json:"multiple"`
	Points   float64 `json:"points"`
}

// FraudThresholds parameterizes the built-in fraud indicator catalog.
type FraudThresholds struct {
	NightCallRatio          float64 `json:"nightCallRatio"`
	GeographicSpread        int     `json:"geographicSpread"`
	InflowToBalanceMultiple float64 `json:"inflowToBalanceMultiple"`
	MissedCallRatio         float64 `json:"missedCallRatio"`
	InflowOutflowRatio      float64 `json:"inflowOutflowRatio"`
	VolatilityMultiple      float64 `json:"volatilityMultiple"`
}

// RiskTierBand binds a strict cost threshold to a risk tier.
type RiskTierBand struct {
	MinCost float64  `json:"minCost"`
	Tier    RiskTier `json:"tier"`
}

// LimitBand maps a score band to the asset and medication ratio ceilings.
type LimitBand struct {
	MinScore           int     `json:"minScore"`
	MaxAssetRatio      float64 `json:"maxAssetRatio"`
	MaxMedicationRatio float64 `json:"maxMedicationRatio"`
}

// DefaultScoringProfile returns the baseline threshold tables. These are the
// production defaults; per-tenant overrides are stored in the repository and
// hot-reloaded via the API.
func DefaultScoringProfile() *ScoringProfile {
	return &ScoringProfile{
		Version: "1",

		AssetTiers: []AssetTier{
			{MinRatio: 2.0, Points: 40},
			{MinRatio: 1.5, Points: 32},
			{MinRatio: 1.0, Points: 25},
			{MinRatio: 0.5, Points: 15},
		},
		FloorPoints: 5,

		SalaryInflowPoints: 25,
		IncomeBands: []IncomeBand{
			{Multiple: 3, Points: 22},
			{Multiple: 1, Points: 18},
			{Multiple: 0, Points: 12},
		},

		BehaviorBase:         20,
		BouncedChequePenalty: 15,
		BettingPenalty:       10,
		LoanRepaymentBonus:   5,

		ActivityCap:         10,
		RecentActivityBonus: 2,
		RecentActivityDays:  7,

		SocialCap:            5,
		ActiveCallerBonus:    1,
		ActiveCallerMinCalls: 15,

		Fraud: FraudThresholds{
			NightCallRatio:          0.7,
			GeographicSpread:        300,
			InflowToBalanceMultiple: 5,
			MissedCallRatio:         0.8,
			InflowOutflowRatio:      5.0,
			VolatilityMultiple:      2,
		},

		RiskTiers: []RiskTierBand{
			{MinCost: 5000, Tier: RiskTier{Category: TierHigh, MinScore: 70, Description: "High-cost medication"}},
			{MinCost: 2000, Tier: RiskTier{Category: TierMedium, MinScore: 50, Description: "Medium-cost medication"}},
			{MinCost: 0, Tier: RiskTier{Category: TierLow, MinScore: 40, Description: "Low-cost medication"}},
		},

		LimitBands: []LimitBand{
			{MinScore: 80, MaxAssetRatio: 0.9, MaxMedicationRatio: 1.0},
			{MinScore: 65, MaxAssetRatio: 0.7, MaxMedicationRatio: 0.9},
			{MinScore: 50, MaxAssetRatio: 0.5, MaxMedicationRatio: 0.7},
			{MinScore: 40, MaxAssetRatio: 0.4, MaxMedicationRatio: 0.5},
			{MinScore: 0, MaxAssetRatio: 0.3, MaxMedicationRatio: 0.3},
		},

		MinScore:          30,
		MinAssetCoverage:  0.3,
		MinUsefulFraction: 0.2,
		SingleFlagPenalty: 0.8,
		MaxFraudFlags:     2,

		MaxScore: 100,
	}
}
