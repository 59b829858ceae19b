// Package engine orchestrates a full credit evaluation: sub-scores, fraud
// indicators, the risk tier gate, and the limit policy, assembled into one
// immutable Decision.
package engine

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/caduceus/internal/domain"
	"github.com/opensource-finance/caduceus/internal/fraud"
	"github.com/opensource-finance/caduceus/internal/policy"
	"github.com/opensource-finance/caduceus/internal/risk"
	"github.com/opensource-finance/caduceus/internal/scoring"
	"github.com/opensource-finance/caduceus/internal/screening"
)

var tracer = otel.Tracer("caduceus-engine")

// Engine is the composite five-signal scorer. The appraisal and ratio
// variants in variants.go delegate their gating and limit logic here.
type Engine struct {
	profile    *domain.ScoringProfile
	calc       *scoring.Calculator
	detector   *fraud.Detector
	classifier *risk.Classifier
	policy     *policy.Policy
	screener   *screening.Engine
}

// Option configures an Engine.
type Option func(*Engine)

// WithScreening attaches a supplemental screening engine. Screening hits
// are appended after the built-in fraud flags.
func WithScreening(s *screening.Engine) Option {
	return func(e *Engine) { e.screener = s }
}

// New creates a composite engine over a scoring profile. A nil profile
// falls back to the defaults.
func New(profile *domain.ScoringProfile, opts ...Option) *Engine {
	if profile == nil {
		profile = domain.DefaultScoringProfile()
	}
	e := &Engine{
		profile:    profile,
		calc:       scoring.NewCalculator(profile),
		detector:   fraud.NewDetector(profile.Fraud),
		classifier: risk.NewClassifier(profile.RiskTiers),
		policy:     policy.NewPolicy(profile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode identifies the composite strategy.
func (e *Engine) Mode() domain.ScorerMode {
	return domain.ModeComposite
}

// Evaluate runs the full pipeline. It returns an error only for invalid
// input; every other outcome is a complete Decision.
func (e *Engine) Evaluate(ctx context.Context, app *domain.Application) (*domain.Decision, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}

	score, _ := e.calc.Score(app)
	return e.decide(ctx, app, score)
}

// decide runs the shared tail of every variant: fraud detection, the risk
// tier gate, and the limit policy.
func (e *Engine) decide(ctx context.Context, app *domain.Application, score int) (*domain.Decision, error) {
	_, span := tracer.Start(ctx, "engine.decide",
		trace.WithAttributes(
			attribute.Int("credit.score", score),
			attribute.Float64("credit.requested_cost", app.Medication.Cost),
		),
	)
	defer span.End()

	// Fraud indicators are computed independently of the score and never
	// alter sub-scores; only the decision policy sees them.
	flags := e.detector.Detect(app)
	if e.screener != nil {
		flags = append(flags, e.screener.Screen(ctx, app)...)
	}

	tier := e.classifier.Classify(app.Medication.Cost)

	// Risk tier gate: fail fast before the limit policy runs.
	if score < tier.MinScore {
		reason := fmt.Sprintf("Credit score %d below minimum %d for %s", score, tier.MinScore, tier.Description)
		span.SetAttributes(attribute.Bool("credit.approved", false))
		return domain.Denied(score, reason, flags, tier), nil
	}

	outcome := e.policy.Decide(policy.Input{
		Score:          score,
		RequestedCost:  app.Medication.Cost,
		AssetValue:     app.Asset.Value,
		FraudFlagCount: len(flags),
	})

	span.SetAttributes(attribute.Bool("credit.approved", outcome.Approved))

	if !outcome.Approved {
		return domain.Denied(score, outcome.Reason, flags, tier), nil
	}

	return approvedDecision(score, outcome, app, flags, tier), nil
}

// approvedDecision assembles the approval record with its derived,
// presentation-rounded fields.
func approvedDecision(score int, outcome policy.Outcome, app *domain.Application, flags []domain.FraudFlag, tier domain.RiskTier) *domain.Decision {
	cost := app.Medication.Cost

	amount := round2(outcome.Amount)
	requested := cost
	coverage := round1(outcome.Amount / cost * 100)
	assetRatio := round2(app.Asset.Value / cost)

	if flags == nil {
		flags = []domain.FraudFlag{}
	}

	return &domain.Decision{
		Approved:           true,
		CreditScore:        score,
		ApprovedAmount:     &amount,
		RequestedAmount:    &requested,
		CoveragePercentage: &coverage,
		Reason:             outcome.Reason,
		FraudFlags:         flags,
		MedicationProfile:  tier,
		AssetCoverageRatio: &assetRatio,
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
