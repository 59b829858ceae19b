package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/caduceus/internal/domain"
	"github.com/opensource-finance/caduceus/internal/engine"
	"github.com/opensource-finance/caduceus/internal/screening"
)

// profileTTL bounds how long a cached scoring profile may lag behind a
// repository update.
const profileTTL = 5 * time.Minute

// counterWindow is the rolling window for the per-tenant evaluation counter.
const counterWindow = time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	screener *screening.Engine
	mode     domain.ScorerMode
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, screener *screening.Engine, mode domain.ScorerMode, version string) *Handler {
	if mode == "" {
		mode = domain.ModeComposite
	}
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		screener: screener,
		mode:     mode,
		version:  version,
	}
}

// CreditRequest is the request body for POST /evaluate and POST /applications.
// The envelope mirrors what the upstream statement and call-log analyzers
// emit: call log and mobile money features arrive nested one level down.
type CreditRequest struct {
	Bank        domain.BankProfile       `json:"bank_data"`
	Calls       CallLogsPayload          `json:"call_logs"`
	MobileMoney MobileMoneyPayload       `json:"mpesa_data"`
	Asset       domain.AssetProfile      `json:"asset_data"`
	Medication  domain.MedicationRequest `json:"medication_data"`

	// AppraisalConfidence is only consulted by the appraisal scorer.
	AppraisalConfidence float64 `json:"appraisal_confidence,omitempty"`
}

// CallLogsPayload wraps the call log analysis block.
type CallLogsPayload struct {
	Analysis domain.CallLogProfile `json:"analysis"`
}

// MobileMoneyPayload wraps the mobile money feature block.
type MobileMoneyPayload struct {
	Features domain.MobileMoneyProfile `json:"features"`
}

// toApplication flattens the request envelope into the domain record.
func (req *CreditRequest) toApplication(tenantID string) *domain.Application {
	return &domain.Application{
		TenantID:            tenantID,
		Bank:                req.Bank,
		Calls:               req.Calls.Analysis,
		MobileMoney:         req.MobileMoney.Features,
		Asset:               req.Asset,
		Medication:          req.Medication,
		AppraisalConfidence: req.AppraisalConfidence,
	}
}

// DecisionEvent is the payload published on the decision topics.
type DecisionEvent struct {
	EvaluationID string           `json:"evaluation_id"`
	TenantID     string           `json:"tenant_id"`
	ScorerMode   string           `json:"scorer_mode"`
	Decision     *domain.Decision `json:"decision"`
	Timestamp    time.Time        `json:"timestamp"`
}

// profileFor resolves the effective scoring profile for a tenant:
// cache, then repository, then the built-in defaults.
func (h *Handler) profileFor(r *http.Request, tenantID string) *domain.ScoringProfile {
	ctx := r.Context()

	if h.cache != nil {
		if profile, err := h.cache.GetScoringProfile(ctx, tenantID); err == nil && profile != nil {
			return profile
		}
	}

	if h.repo != nil {
		profile, err := h.repo.GetScoringProfile(ctx, tenantID)
		if err == nil {
			if h.cache != nil {
				_ = h.cache.SetScoringProfile(ctx, tenantID, profile, profileTTL)
			}
			return profile
		}
	}

	return domain.DefaultScoringProfile()
}

// Evaluate handles POST /evaluate: a full synchronous credit evaluation.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	app := req.toApplication(tenantID)

	scorer, err := engine.NewScorer(h.mode, h.profileFor(r, tenantID), engine.WithScreening(h.screener))
	if err != nil {
		slog.Error("failed to build scorer", "mode", h.mode, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scorer unavailable",
		})
		return
	}

	decision, err := scorer.Evaluate(ctx, app)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("evaluation failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	evaluationID := uuid.New().String()

	if h.cache != nil {
		if _, err := h.cache.IncrementCounter(ctx, tenantID, "evaluations", counterWindow); err != nil {
			slog.Warn("failed to increment evaluation counter", "error", err)
		}
	}

	h.publishDecision(r, evaluationID, tenantID, decision)

	slog.Info("credit evaluation",
		"tenant_id", tenantID,
		"trace_id", traceID,
		"evaluation_id", evaluationID,
		"scorer_mode", string(h.mode),
		"approved", decision.Approved,
		"credit_score", decision.CreditScore,
		"fraud_flags", len(decision.FraudFlags),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, decision)
}

// SubmitApplication handles POST /applications: the application is queued on
// the event bus and evaluated by the worker; the decision comes back on the
// decision topics.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	app := req.toApplication(tenantID)

	// Reject invalid input at the door rather than dead-lettering it.
	if err := app.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	payload, err := json.Marshal(app)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode application",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicApplicationSubmitted, payload); err != nil {
		slog.Error("failed to publish application", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue application",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
	})
}

// publishDecision emits the decision on the bus. Denials are additionally
// published on the denial topic for downstream review queues.
func (h *Handler) publishDecision(r *http.Request, evaluationID, tenantID string, decision *domain.Decision) {
	if h.bus == nil {
		return
	}

	event := DecisionEvent{
		EvaluationID: evaluationID,
		TenantID:     tenantID,
		ScorerMode:   string(h.mode),
		Decision:     decision,
		Timestamp:    time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode decision event", "error", err)
		return
	}

	ctx := r.Context()
	if err := h.bus.Publish(ctx, tenantID, domain.TopicDecision, payload); err != nil {
		slog.Warn("failed to publish decision", "error", err)
	}
	if !decision.Approved {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicDenial, payload); err != nil {
			slog.Warn("failed to publish denial", "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{}
	ready := true

	check := func(name string, ping func() error) {
		if ping == nil {
			return
		}
		if err := ping(); err != nil {
			components[name] = "down"
			ready = false
			return
		}
		components[name] = "up"
	}

	ctx := r.Context()
	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("bus", func() error { return h.bus.Ping(ctx) })
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"ready":      ready,
		"components": components,
	})
}

// GetProfile returns the effective scoring profile for the tenant and where
// it came from.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.cache != nil {
		if profile, err := h.cache.GetScoringProfile(ctx, tenantID); err == nil && profile != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"profile": profile,
				"source":  "cache",
			})
			return
		}
	}

	if h.repo != nil {
		if profile, err := h.repo.GetScoringProfile(ctx, tenantID); err == nil {
			if h.cache != nil {
				_ = h.cache.SetScoringProfile(ctx, tenantID, profile, profileTTL)
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"profile": profile,
				"source":  "database",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": domain.DefaultScoringProfile(),
		"source":  "default",
	})
}

// PutProfile stores a new scoring profile for the tenant and refreshes the
// cache so the next evaluation picks it up.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var profile domain.ScoringProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(profile.RiskTiers) == 0 || len(profile.LimitBands) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "riskTiers and limitBands are required",
		})
		return
	}
	if profile.MaxScore <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "maxScore must be positive",
		})
		return
	}

	profile.TenantID = tenantID

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveScoringProfile(ctx, tenantID, &profile); err != nil {
		slog.Error("failed to save scoring profile", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save profile",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetScoringProfile(ctx, tenantID, &profile, profileTTL)
	}

	slog.Info("scoring profile updated", "tenant_id", tenantID, "version", profile.Version)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": profile,
	})
}

// DeleteProfile removes the tenant's profile; evaluations fall back to the
// built-in defaults.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteScoringProfile(ctx, tenantID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "profile not found",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.Delete(ctx, tenantID, "scoring-profile")
	}

	slog.Info("scoring profile deleted", "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "profile deleted",
	})
}

// ListScreeningRules returns the rules currently loaded in the screening engine.
func (h *Handler) ListScreeningRules(w http.ResponseWriter, r *http.Request) {
	if h.screener == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	rules := h.screener.LoadedRules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  rules,
		"count":  len(rules),
		"source": "database",
	})
}

// GetScreeningRule retrieves a loaded screening rule by ID.
func (h *Handler) GetScreeningRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.screener == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	for _, rule := range h.screener.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// GlobalTenantID is used for screening rules that apply to all tenants.
// The screening engine is shared across tenants, so rules are stored globally.
const GlobalTenantID = "*"

// CreateScreeningRuleRequest is the request body for creating a screening rule.
type CreateScreeningRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Flag        string `json:"flag"`
	Enabled     bool   `json:"enabled"`
}

// CreateScreeningRule validates, persists, and loads a screening rule.
func (h *Handler) CreateScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.screener == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	var req CreateScreeningRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Flag == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and flag are required",
		})
		return
	}

	rule := &domain.ScreeningRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression by loading it into the engine.
	if err := h.screener.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid screening rule: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveScreeningRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": rule,
	})
}

// DeleteScreeningRule disables a rule and reloads the engine.
func (h *Handler) DeleteScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteScreeningRule(ctx, GlobalTenantID, ruleID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	if h.screener != nil {
		rules, err := h.repo.ListScreeningRules(ctx, GlobalTenantID)
		if err != nil {
			slog.Error("failed to reload screening rules after delete", "error", err)
		} else if err := h.screener.ReloadRules(rules); err != nil {
			slog.Error("failed to reload screening rules after delete", "error", err)
		}
	}

	slog.Info("screening rule deleted", "id", ruleID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReloadScreeningRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadScreeningRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.screener == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening engine not available",
		})
		return
	}

	rules, err := h.repo.ListScreeningRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.screener.ReloadRules(rules); err != nil {
		slog.Error("failed to reload screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded", "count", len(rules), "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(rules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
