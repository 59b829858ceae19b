package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/opensource-finance/caduceus/internal/domain"
)

// NewScorer builds the scorer for a mode. The three variants come from the
// upstream system, which shipped three conflicting models; none supersedes
// the others, so all are exposed as named strategies.
func NewScorer(mode domain.ScorerMode, profile *domain.ScoringProfile, opts ...Option) (domain.Scorer, error) {
	switch mode {
	case domain.ModeComposite, "":
		return New(profile, opts...), nil
	case domain.ModeAppraisal:
		return &AppraisalScorer{engine: New(profile, opts...)}, nil
	case domain.ModeRatio:
		return &RatioScorer{engine: New(profile, opts...)}, nil
	default:
		return nil, fmt.Errorf("unknown scorer mode: %s", mode)
	}
}

// AppraisalScorer discounts the declared asset value by the appraisal
// confidence supplied with the application, then runs the composite
// pipeline over the discounted collateral. Used where asset values come
// from automated image appraisal rather than declared figures.
type AppraisalScorer struct {
	engine *Engine
}

// Mode identifies the appraisal strategy.
func (s *AppraisalScorer) Mode() domain.ScorerMode {
	return domain.ModeAppraisal
}

// Evaluate scores the application against its appraisal-discounted asset
// value. A zero confidence means "not supplied" and is treated as full
// confidence.
func (s *AppraisalScorer) Evaluate(ctx context.Context, app *domain.Application) (*domain.Decision, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}

	confidence := app.AppraisalConfidence
	if confidence == 0 {
		confidence = 1
	}

	discounted := *app
	discounted.Asset.Value = app.Asset.Value * confidence

	score, _ := s.engine.calc.Score(&discounted)
	return s.engine.decide(ctx, &discounted, score)
}

// RatioScorer scores purely from the asset coverage ratio, mapped linearly
// onto the score range: full marks at twice coverage, zero at none. The
// fraud detector, tier gate, and limit policy run unchanged.
type RatioScorer struct {
	engine *Engine
}

// Mode identifies the ratio strategy.
func (s *RatioScorer) Mode() domain.ScorerMode {
	return domain.ModeRatio
}

// Evaluate scores the application from its coverage ratio alone.
func (s *RatioScorer) Evaluate(ctx context.Context, app *domain.Application) (*domain.Decision, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}

	maxScore := float64(s.engine.profile.MaxScore)

	// ratio 2.0 saturates the scale, mirroring the top asset tier of the
	// composite model.
	score := app.CoverageRatio() / 2 * maxScore
	score = math.Min(maxScore, math.Max(0, score))

	return s.engine.decide(ctx, app, int(score))
}
