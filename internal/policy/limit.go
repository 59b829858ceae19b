// Package policy implements the tiered credit limit decision state machine.
// It aggregates the credit score, fraud indicator count, and collateral
// position into a final approval or denial.
package policy

import (
	"math"

	"github.com/opensource-finance/caduceus/internal/domain"
)

// Policy decides the approved amount for a qualified application.
type Policy struct {
	profile *domain.ScoringProfile
}

// NewPolicy creates a policy bound to a scoring profile.
func NewPolicy(profile *domain.ScoringProfile) *Policy {
	if profile == nil {
		profile = domain.DefaultScoringProfile()
	}
	return &Policy{profile: profile}
}

// Input carries everything the state machine needs. The fraud flag count
// matters, not flag identity.
type Input struct {
	Score          int
	RequestedCost  float64
	AssetValue     float64
	FraudFlagCount int
}

// Outcome is a terminal state of the decision machine. A denial carries a
// zero amount and a human-readable reason; it is not an error.
type Outcome struct {
	Approved bool
	Amount   float64
	Reason   string
}

// Decide runs the ordered guards and, if none trip, selects the ratio band
// for the score, applies the single-flag penalty, and bounds the approved
// amount by the asset limit, the medication limit, and the request itself.
//
// Guard order is part of the contract: a multi-flag applicant is denied for
// fraud even when the score would also fail, so the reported reason is
// stable.
func (p *Policy) Decide(in Input) Outcome {
	cfg := p.profile

	if in.FraudFlagCount >= cfg.MaxFraudFlags {
		return Outcome{Reason: domain.ReasonMultipleFraudIndicators}
	}

	if in.Score < cfg.MinScore {
		return Outcome{Reason: domain.ReasonScoreTooLow}
	}

	// Strict less-than: an asset exactly at the coverage floor qualifies.
	if in.AssetValue < in.RequestedCost*cfg.MinAssetCoverage {
		return Outcome{Reason: domain.ReasonInsufficientAssetCoverage}
	}

	band := p.bandFor(in.Score)
	maxAssetRatio := band.MaxAssetRatio
	maxMedicationRatio := band.MaxMedicationRatio

	// A single indicator shrinks both ceilings; two or more were already
	// denied by the first guard.
	if in.FraudFlagCount == 1 {
		maxAssetRatio *= cfg.SingleFlagPenalty
		maxMedicationRatio *= cfg.SingleFlagPenalty
	}

	assetLimit := in.AssetValue * maxAssetRatio
	medicationLimit := in.RequestedCost * maxMedicationRatio

	approved := math.Min(assetLimit, math.Min(medicationLimit, in.RequestedCost))

	if approved < in.RequestedCost*cfg.MinUsefulFraction {
		return Outcome{Reason: domain.ReasonAmountTooLow}
	}

	return Outcome{
		Approved: true,
		Amount:   approved,
		Reason:   domain.ReasonApproved,
	}
}

// bandFor selects the first limit band whose MinScore the score meets.
// Bands are ordered descending; the last band is the floor band for scores
// that passed the MinScore guard.
func (p *Policy) bandFor(score int) domain.LimitBand {
	for _, band := range p.profile.LimitBands {
		if score >= band.MinScore {
			return band
		}
	}
	return p.profile.LimitBands[len(p.profile.LimitBands)-1]
}
