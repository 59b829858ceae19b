package domain

import "context"

// Scorer evaluates one application into a Decision. Implementations are
// stateless and safe for concurrent use across requests; the only error
// condition is invalid input (ErrInvalidInput), every other outcome is a
// complete Decision, denial or approval.
type Scorer interface {
	Evaluate(ctx context.Context, app *Application) (*Decision, error)
	Mode() ScorerMode
}

// ScorerMode selects one of the scoring strategies. The upstream source
// shipped three conflicting models under one name; they are exposed here as
// named, independently testable variants.
type ScorerMode string

const (
	// ModeComposite is the full five-signal model (bank, calls, mobile
	// money, asset, medication). This is the default.
	ModeComposite ScorerMode = "composite"

	// ModeAppraisal discounts the declared asset value by an appraisal
	// confidence factor before running the composite pipeline. Used where
	// asset values come from automated image appraisal.
	ModeAppraisal ScorerMode = "appraisal"

	// ModeRatio scores purely from the asset coverage ratio.
	ModeRatio ScorerMode = "ratio"
)

// Valid reports whether the mode names a known strategy.
func (m ScorerMode) Valid() bool {
	switch m {
	case ModeComposite, ModeAppraisal, ModeRatio:
		return true
	}
	return false
}
