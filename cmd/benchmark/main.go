// Benchmark tool for load-testing Caduceus with synthetic credit applications.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 10000
//
// This tool:
//   1. Generates randomized applicant profiles across the full signal space
//   2. Sends each application to Caduceus for evaluation
//   3. Tracks approval rates, denial reasons, and score distribution
//   4. Reports latency percentiles and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Application mirrors the Caduceus /evaluate request envelope.
type Application struct {
	BankData       BankData       `json:"bank_data"`
	CallLogs       CallLogs       `json:"call_logs"`
	MpesaData      MpesaData      `json:"mpesa_data"`
	AssetData      AssetData      `json:"asset_data"`
	MedicationData MedicationData `json:"medication_data"`
}

type BankData struct {
	OpeningBalance           float64 `json:"opening_balance"`
	ClosingBalance           float64 `json:"closing_balance"`
	AverageBalance           float64 `json:"average_balance"`
	StatementPeriodDays      int     `json:"statement_period_days"`
	Turnover                 float64 `json:"turnover"`
	NetCashFlow              float64 `json:"net_cash_flow"`
	TotalDepositsAmount      float64 `json:"total_deposits_amount"`
	CountDeposits            int     `json:"count_deposits"`
	PercentageActiveDays     float64 `json:"percentage_active_days"`
	DaysSinceLastTransaction int     `json:"days_since_last_transaction"`
	HasSalaryInflow          bool    `json:"has_salary_inflow"`
	HasLoanRepayment         bool    `json:"has_loan_repayment"`
	HasBettingTransactions   bool    `json:"has_betting_transactions"`
	HasBouncedCheques        bool    `json:"has_bounced_cheques"`
	BalanceVolatilityStdDev  float64 `json:"balance_volatility_std_dev"`
}

type CallLogs struct {
	Analysis CallLogAnalysis `json:"analysis"`
}

type CallLogAnalysis struct {
	CallFrequency       int     `json:"call_frequency"`
	CallDuration        float64 `json:"call_duration"`
	StableContactsRatio float64 `json:"stable_contacts_ratio"`
	NightVsDay          float64 `json:"night_vs_day"`
	MissedOnly          float64 `json:"missed_only"`
	GeographicPattern   int     `json:"geographic_pattern"`
}

type MpesaData struct {
	Features MpesaFeatures `json:"features"`
}

type MpesaFeatures struct {
	TotalTransactions  int     `json:"total_transactions"`
	TotalInflow        float64 `json:"total_inflow"`
	TotalOutflow       float64 `json:"total_outflow"`
	AvgBalance         float64 `json:"avg_balance"`
	BalanceVolatility  float64 `json:"balance_volatility"`
	InflowOutflowRatio float64 `json:"inflow_outflow_ratio"`
	UniqueRecipients   int     `json:"unique_recipients"`
	RecurringPayments  int     `json:"recurring_payments"`
}

type AssetData struct {
	UserID     int64   `json:"user_id"`
	AssetValue float64 `json:"asset_value"`
}

type MedicationData struct {
	UserID     int64   `json:"user_id"`
	Medication float64 `json:"medication"`
}

// Decision mirrors the Caduceus /evaluate response.
type Decision struct {
	Approved       bool     `json:"approved"`
	CreditScore    int      `json:"credit_score"`
	ApprovedAmount *float64 `json:"approved_amount,omitempty"`
	Reason         string   `json:"reason"`
	FraudFlags     []string `json:"fraud_flags"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalApproved  int64
	TotalDenied    int64
	TotalErrors    int64
	ScoreSum       int64

	mu        sync.Mutex
	latencies []time.Duration
	reasons   map[string]int64
}

func (m *Metrics) record(latency time.Duration, d *Decision) {
	atomic.AddInt64(&m.TotalProcessed, 1)
	atomic.AddInt64(&m.ScoreSum, int64(d.CreditScore))
	if d.Approved {
		atomic.AddInt64(&m.TotalApproved, 1)
	} else {
		atomic.AddInt64(&m.TotalDenied, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.reasons[d.Reason]++
	m.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Caduceus base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	count := flag.Int("count", 10000, "Number of applications to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", 42, "Random seed for applicant generation")
	verbose := flag.Bool("verbose", false, "Print each decision")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        CADUCEUS BENCHMARK - Synthetic Applications            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCaduceus URL:  %s\n", *baseURL)
	fmt.Printf("Tenant ID:     %s\n", *tenantID)
	fmt.Printf("Applications:  %d\n", *count)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Seed:          %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Caduceus not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Caduceus is running:")
		fmt.Println("  go run cmd/caduceus/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Caduceus is healthy")

	fmt.Printf("\nGenerating %d synthetic applications...\n", *count)
	rng := rand.New(rand.NewSource(*seed))
	apps := make([]Application, *count)
	for i := range apps {
		apps[i] = generateApplication(rng, int64(i+1))
	}
	fmt.Printf("✓ Generated %d applications\n", len(apps))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(apps, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateApplication builds one randomized applicant. Profiles span the
// whole spectrum: strong salaried applicants with solid collateral, thin-file
// applicants, and a deliberate slice with fraud-indicator patterns.
func generateApplication(rng *rand.Rand, userID int64) Application {
	cost := 500 + rng.Float64()*9500           // 500..10000
	coverage := rng.Float64() * 2.5            // asset 0..2.5x cost
	assetValue := cost * coverage
	avgBalance := 1000 + rng.Float64()*50000
	inflow := avgBalance * (0.5 + rng.Float64()*4)

	app := Application{
		BankData: BankData{
			OpeningBalance:           avgBalance * 0.9,
			ClosingBalance:           avgBalance * 1.1,
			AverageBalance:           avgBalance,
			StatementPeriodDays:      90,
			Turnover:                 inflow * 1.8,
			NetCashFlow:              inflow * 0.1,
			TotalDepositsAmount:      inflow,
			CountDeposits:            rng.Intn(40),
			PercentageActiveDays:     rng.Float64(),
			DaysSinceLastTransaction: rng.Intn(30),
			HasSalaryInflow:          rng.Float64() < 0.4,
			HasLoanRepayment:         rng.Float64() < 0.3,
			HasBettingTransactions:   rng.Float64() < 0.2,
			HasBouncedCheques:        rng.Float64() < 0.1,
			BalanceVolatilityStdDev:  avgBalance * rng.Float64() * 0.5,
		},
		CallLogs: CallLogs{
			Analysis: CallLogAnalysis{
				CallFrequency:       rng.Intn(40),
				CallDuration:        rng.Float64() * 300,
				StableContactsRatio: rng.Float64(),
				NightVsDay:          rng.Float64(),
				MissedOnly:          rng.Float64(),
				GeographicPattern:   rng.Intn(400),
			},
		},
		MpesaData: MpesaData{
			Features: MpesaFeatures{
				TotalTransactions:  rng.Intn(500),
				TotalInflow:        inflow,
				TotalOutflow:       inflow * (0.3 + rng.Float64()),
				AvgBalance:         avgBalance * 0.3,
				BalanceVolatility:  avgBalance * rng.Float64(),
				InflowOutflowRatio: 0.5 + rng.Float64()*6,
				UniqueRecipients:   rng.Intn(250),
				RecurringPayments:  rng.Intn(10),
			},
		},
		AssetData: AssetData{
			UserID:     userID,
			AssetValue: assetValue,
		},
		MedicationData: MedicationData{
			UserID:     userID,
			Medication: cost,
		},
	}

	return app
}

func runBenchmark(apps []Application, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{reasons: make(map[string]int64)}

	work := make(chan Application, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				decision, err := evaluate(client, baseURL, tenantID, app)
				elapsed := time.Since(start)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: user %d -> %v\n", app.AssetData.UserID, err)
					}
					continue
				}

				metrics.record(elapsed, decision)

				if verbose {
					mark := "✗"
					if decision.Approved {
						mark = "✓"
					}
					fmt.Printf("%s user %-6d | score: %3d | cost: %8.2f | coverage: %4.2f | flags: %d | %s\n",
						mark,
						app.AssetData.UserID,
						decision.CreditScore,
						app.MedicationData.Medication,
						app.AssetData.AssetValue/app.MedicationData.Medication,
						len(decision.FraudFlags),
						decision.Reason,
					)
				}
			}
		}()
	}

	for _, app := range apps {
		work <- app
	}
	close(work)

	wg.Wait()

	return metrics
}

func evaluate(client *http.Client, baseURL, tenantID string, app Application) (*Decision, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var decision Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return nil, err
	}

	return &decision, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DECISIONS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Approved:         %d\n", m.TotalApproved)
	fmt.Printf("   Denied:           %d\n", m.TotalDenied)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	if m.TotalProcessed > 0 {
		fmt.Printf("   Approval Rate:    %.2f%%\n", 100*float64(m.TotalApproved)/float64(m.TotalProcessed))
		fmt.Printf("   Avg Score:        %.1f\n", float64(m.ScoreSum)/float64(m.TotalProcessed))
	}

	fmt.Printf("\n📋 DECISION REASONS\n")
	m.mu.Lock()
	type reasonCount struct {
		reason string
		count  int64
	}
	var counts []reasonCount
	for reason, count := range m.reasons {
		counts = append(counts, reasonCount{reason, count})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	for _, rc := range counts {
		fmt.Printf("   %-45s %8d\n", rc.reason, rc.count)
	}

	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.Unlock()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(latencies) > 0 {
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("   Avg Latency:      %v\n", (sum / time.Duration(len(latencies))).Round(time.Microsecond))
		fmt.Printf("   p50 Latency:      %v\n", percentile(latencies, 0.50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", percentile(latencies, 0.95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", percentile(latencies, 0.99).Round(time.Microsecond))
		fmt.Printf("   Throughput:       %.2f req/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Println()
}
