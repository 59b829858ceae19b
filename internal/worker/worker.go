// Package worker provides async application processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/caduceus/internal/domain"
	"github.com/opensource-finance/caduceus/internal/engine"
	"github.com/opensource-finance/caduceus/internal/screening"
)

// profileTTL matches the API's cache horizon for scoring profiles.
const profileTTL = 5 * time.Minute

// Worker evaluates applications consumed from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	screener *screening.Engine
	mode     domain.ScorerMode

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, screener *screening.Engine, mode domain.ScorerMode) *Worker {
	if mode == "" {
		mode = domain.ModeComposite
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		screener: screener,
		mode:     mode,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing applications for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicApplicationSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processApplication(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicApplicationSubmitted,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processApplication(ctx, msg.TenantID, msg)
}

// DecisionEvent is the payload published on the decision topics.
type DecisionEvent struct {
	EvaluationID string           `json:"evaluation_id"`
	TenantID     string           `json:"tenant_id"`
	ScorerMode   string           `json:"scorer_mode"`
	Decision     *domain.Decision `json:"decision"`
	Timestamp    time.Time        `json:"timestamp"`
}

// processApplication evaluates one queued application through the pipeline
// and publishes the decision.
func (w *Worker) processApplication(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var app domain.Application
	if err := json.Unmarshal(msg.Payload, &app); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if app.TenantID != "" {
		tenantID = app.TenantID
	}

	scorer, err := engine.NewScorer(w.mode, w.profileFor(ctx, tenantID), engine.WithScreening(w.screener))
	if err != nil {
		slog.Error("failed to build scorer", "mode", w.mode, "error", err)
		return err
	}

	decision, err := scorer.Evaluate(ctx, &app)
	if err != nil {
		// Invalid input is terminal for this message; retrying cannot fix it.
		if errors.Is(err, domain.ErrInvalidInput) {
			slog.Warn("discarding invalid application",
				"message_id", msg.ID,
				"tenant_id", tenantID,
				"error", err,
			)
			return nil
		}
		slog.Error("evaluation failed",
			"message_id", msg.ID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	event := DecisionEvent{
		EvaluationID: uuid.New().String(),
		TenantID:     tenantID,
		ScorerMode:   string(w.mode),
		Decision:     decision,
		Timestamp:    time.Now().UTC(),
	}

	payload, _ := json.Marshal(event)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision",
			"evaluation_id", event.EvaluationID,
			"error", err,
		)
	}

	if !decision.Approved {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicDenial, payload); err != nil {
			slog.Error("failed to publish denial",
				"evaluation_id", event.EvaluationID,
				"error", err,
			)
		}
	}

	slog.Info("application processed",
		"evaluation_id", event.EvaluationID,
		"tenant_id", tenantID,
		"approved", decision.Approved,
		"credit_score", decision.CreditScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// profileFor resolves the effective scoring profile for a tenant:
// cache, then repository, then the built-in defaults.
func (w *Worker) profileFor(ctx context.Context, tenantID string) *domain.ScoringProfile {
	if w.cache != nil {
		if profile, err := w.cache.GetScoringProfile(ctx, tenantID); err == nil && profile != nil {
			return profile
		}
	}

	if w.repo != nil {
		profile, err := w.repo.GetScoringProfile(ctx, tenantID)
		if err == nil {
			if w.cache != nil {
				_ = w.cache.SetScoringProfile(ctx, tenantID, profile, profileTTL)
			}
			return profile
		}
	}

	return domain.DefaultScoringProfile()
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
