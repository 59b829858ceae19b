// Package integration exercises the full evaluation stack: HTTP API,
// repository, cache, event bus, screening engine, and the async worker,
// wired together the way cmd/caduceus wires them for the Community tier.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/caduceus/internal/api"
	"github.com/opensource-finance/caduceus/internal/bus"
	"github.com/opensource-finance/caduceus/internal/cache"
	"github.com/opensource-finance/caduceus/internal/domain"
	"github.com/opensource-finance/caduceus/internal/repository"
	"github.com/opensource-finance/caduceus/internal/screening"
	"github.com/opensource-finance/caduceus/internal/worker"
)

type stack struct {
	server *api.Server
	bus    *bus.ChannelBus
	worker *worker.Worker
}

func newStack(t *testing.T, tenants []string) *stack {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "integration.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	screener, err := screening.NewEngine()
	if err != nil {
		t.Fatalf("failed to create screening engine: %v", err)
	}

	c := cache.NewLRUCache(1000)
	b := bus.NewChannelBus(100)
	t.Cleanup(func() { b.Close() })

	w := worker.NewWorker(b, repo, c, screener, domain.ModeComposite)
	if err := w.Start(worker.Config{TenantIDs: tenants}); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	srv := api.NewServer(domain.ServerConfig{}, repo, c, b, screener, domain.ModeComposite, "integration-test")

	return &stack{server: srv, bus: b, worker: w}
}

func (s *stack) request(t *testing.T, method, path, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)
	return rec
}

func creditRequest() api.CreditRequest {
	return api.CreditRequest{
		Bank: domain.BankProfile{
			HasSalaryInflow:          true,
			HasLoanRepayment:         true,
			PercentageActiveDays:     1.0,
			DaysSinceLastTransaction: 1,
		},
		Calls: api.CallLogsPayload{
			Analysis: domain.CallLogProfile{StableContactsRatio: 1.0, CallFrequency: 30},
		},
		Asset:      domain.AssetProfile{UserID: 7, Value: 2000},
		Medication: domain.MedicationRequest{UserID: 7, Cost: 1000},
	}
}

type decisionSink struct {
	mu     sync.Mutex
	events []api.DecisionEvent
}

func (s *decisionSink) handler(ctx context.Context, msg *domain.Message) error {
	var event api.DecisionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *decisionSink) wait(t *testing.T, n int) []api.DecisionEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.events) >= n {
			out := make([]api.DecisionEvent, len(s.events))
			copy(out, s.events)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Fatalf("timed out waiting for %d decision events, got %d", n, len(s.events))
	return nil
}

func TestSynchronousEvaluation(t *testing.T) {
	s := newStack(t, []string{"tenant-1"})

	rec := s.request(t, http.MethodPost, "/evaluate", "tenant-1", creditRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var dec domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&dec); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}

	if !dec.Approved {
		t.Fatalf("expected approval, got: %s", dec.Reason)
	}
	if dec.CreditScore != 100 {
		t.Errorf("score = %d, want 100", dec.CreditScore)
	}
	if dec.ApprovedAmount == nil || *dec.ApprovedAmount != 1000 {
		t.Errorf("approved amount = %v, want 1000", dec.ApprovedAmount)
	}
	if dec.MedicationProfile.Category != domain.TierLow {
		t.Errorf("tier = %q, want low", dec.MedicationProfile.Category)
	}
}

func TestEvaluatePublishesDecisionEvents(t *testing.T) {
	s := newStack(t, []string{"tenant-1"})
	ctx := context.Background()

	sink := &decisionSink{}
	if _, err := s.bus.Subscribe(ctx, "tenant-1", domain.TopicDecision, sink.handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	rec := s.request(t, http.MethodPost, "/evaluate", "tenant-1", creditRequest())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	events := sink.wait(t, 1)
	if events[0].Decision == nil || !events[0].Decision.Approved {
		t.Errorf("expected the approval on the decision topic, got %+v", events[0].Decision)
	}
	if events[0].TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want tenant-1", events[0].TenantID)
	}
}

func TestAsyncSubmissionFlow(t *testing.T) {
	s := newStack(t, []string{"tenant-1"})
	ctx := context.Background()

	sink := &decisionSink{}
	if _, err := s.bus.Subscribe(ctx, "tenant-1", domain.TopicDecision, sink.handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	rec := s.request(t, http.MethodPost, "/applications", "tenant-1", creditRequest())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}

	events := sink.wait(t, 1)
	event := events[0]

	if event.Decision == nil || !event.Decision.Approved {
		t.Fatalf("expected an approval from the worker, got %+v", event.Decision)
	}
	if event.Decision.CreditScore != 100 {
		t.Errorf("score = %d, want 100", event.Decision.CreditScore)
	}
	if event.ScorerMode != string(domain.ModeComposite) {
		t.Errorf("scorer mode = %q, want composite", event.ScorerMode)
	}
}

func TestProfileHotReloadChangesDecisions(t *testing.T) {
	s := newStack(t, []string{"tenant-1"})

	// Baseline: approved under the defaults.
	rec := s.request(t, http.MethodPost, "/evaluate", "tenant-1", creditRequest())
	var before domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&before); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if !before.Approved {
		t.Fatalf("expected baseline approval, got: %s", before.Reason)
	}

	// Tighten the profile: no score can clear the floor anymore.
	profile := domain.DefaultScoringProfile()
	profile.Version = "strict"
	profile.MinScore = 101
	for i := range profile.RiskTiers {
		profile.RiskTiers[i].Tier.MinScore = 0
	}

	rec = s.request(t, http.MethodPut, "/profile", "tenant-1", profile)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /profile status = %d, want 200: %s", rec.Code, rec.Body)
	}

	// The very next evaluation must see the new profile.
	rec = s.request(t, http.MethodPost, "/evaluate", "tenant-1", creditRequest())
	var after domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&after); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if after.Approved {
		t.Error("expected denial under the tightened profile")
	}
	if after.Reason != domain.ReasonScoreTooLow {
		t.Errorf("reason = %q, want %q", after.Reason, domain.ReasonScoreTooLow)
	}

	// Deleting the profile restores the defaults.
	rec = s.request(t, http.MethodDelete, "/profile", "tenant-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /profile status = %d, want 200", rec.Code)
	}

	rec = s.request(t, http.MethodPost, "/evaluate", "tenant-1", creditRequest())
	var restored domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&restored); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if !restored.Approved {
		t.Errorf("expected approval after restoring defaults, got: %s", restored.Reason)
	}
}

func TestScreeningRuleEndToEnd(t *testing.T) {
	s := newStack(t, []string{"tenant-1"})

	// Without the rule: one built-in flag at most, approval stands.
	req := creditRequest()
	req.MobileMoney.Features.UniqueRecipients = 500

	rec := s.request(t, http.MethodPost, "/evaluate", "tenant-1", req)
	var before domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&before); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if len(before.FraudFlags) != 0 {
		t.Fatalf("expected no flags before the rule exists, got %v", before.FraudFlags)
	}

	rec = s.request(t, http.MethodPost, "/screening", "tenant-1", api.CreateScreeningRuleRequest{
		ID:         "fan-out",
		Name:       "Payment fan-out",
		Expression: "mpesa.unique_recipients > 200",
		Flag:       "Payment fan-out pattern",
		Enabled:    true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule status = %d, want 201: %s", rec.Code, rec.Body)
	}

	rec = s.request(t, http.MethodPost, "/evaluate", "tenant-1", req)
	var after domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&after); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if len(after.FraudFlags) != 1 || after.FraudFlags[0] != "Payment fan-out pattern" {
		t.Fatalf("expected the screening flag, got %v", after.FraudFlags)
	}
	// One flag penalizes but does not deny: 0.72/0.8 ceilings.
	if !after.Approved {
		t.Fatalf("expected penalized approval, got: %s", after.Reason)
	}
	if after.ApprovedAmount == nil || *after.ApprovedAmount != 800 {
		t.Errorf("approved amount = %v, want 800 after single-flag penalty", after.ApprovedAmount)
	}

	// Deleting the rule removes the flag from subsequent evaluations.
	rec = s.request(t, http.MethodDelete, "/screening/fan-out", "tenant-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete rule status = %d, want 200", rec.Code)
	}

	rec = s.request(t, http.MethodPost, "/evaluate", "tenant-1", req)
	var restored domain.Decision
	if err := json.NewDecoder(rec.Body).Decode(&restored); err != nil {
		t.Fatalf("failed to decode decision: %v", err)
	}
	if len(restored.FraudFlags) != 0 {
		t.Errorf("expected no flags after rule deletion, got %v", restored.FraudFlags)
	}
}

func TestDenialFlowsToDenialTopic(t *testing.T) {
	s := newStack(t, []string{"tenant-1"})
	ctx := context.Background()

	sink := &decisionSink{}
	if _, err := s.bus.Subscribe(ctx, "tenant-1", domain.TopicDenial, sink.handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	req := creditRequest()
	req.Asset.Value = 100

	rec := s.request(t, http.MethodPost, "/evaluate", "tenant-1", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	events := sink.wait(t, 1)
	if events[0].Decision.Approved {
		t.Error("denial topic received an approval")
	}
}
