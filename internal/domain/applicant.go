// Package domain defines the core interfaces and types for Caduceus.
package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks applicant data the engine refuses to score.
var ErrInvalidInput = errors.New("invalid applicant input")

// BankProfile holds pre-aggregated bank statement features for one applicant.
// All values are computed upstream by the statement analyzer and are
// immutable for the lifetime of an evaluation.
type BankProfile struct {
	OpeningBalance       float64 `json:"opening_balance"`
	ClosingBalance       float64 `json:"closing_balance"`
	AverageBalance       float64 `json:"average_balance"`
	StatementPeriodDays  int     `json:"statement_period_days"`
	Turnover             float64 `json:"turnover"`
	NetCashFlow          float64 `json:"net_cash_flow"`
	TotalDepositsAmount  float64 `json:"total_deposits_amount"`
	CountDeposits        int     `json:"count_deposits"`
	AverageDepositAmount float64 `json:"average_deposit_amount"`
	MaxDepositAmount     float64 `json:"max_deposit_amount"`
	MinDepositAmount     float64 `json:"min_deposit_amount"`
	StdDevDeposits       float64 `json:"std_dev_deposits"`

	TotalWithdrawalsAmount     float64 `json:"total_withdrawals_amount"`
	TotalMainWithdrawalsAmount float64 `json:"total_main_withdrawals_amount"`
	TotalChargesAmount         float64 `json:"total_charges_amount"`
	CountMainWithdrawals       int     `json:"count_main_withdrawals"`
	CountDebitTransactions     int     `json:"count_debit_transactions"`
	AverageMainWithdrawal      float64 `json:"average_main_withdrawal_amount"`
	MaxMainWithdrawal          float64 `json:"max_main_withdrawal_amount"`
	MinMainWithdrawal          float64 `json:"min_main_withdrawal_amount"`
	StdDevMainWithdrawals      float64 `json:"std_dev_main_withdrawals"`

	ClosingToOpeningRatio        float64 `json:"closing_to_opening_ratio"`
	AverageToClosingBalanceRatio float64 `json:"average_to_closing_balance_ratio"`
	WithdrawalsToOpeningRatio    float64 `json:"total_withdrawals_to_opening_balance_ratio"`
	BalanceVolatilityStdDev      float64 `json:"balance_volatility_std_dev"`

	ActiveDaysInPeriod       int     `json:"active_days_in_period"`
	DaysSinceLastTransaction int     `json:"days_since_last_transaction"`
	PercentageActiveDays     float64 `json:"percentage_active_days"`
	AvgTransactionsPerDay    float64 `json:"average_transactions_per_active_day"`

	HasSalaryInflow bool `json:"has_salary_inflow"`
	IsLikelyStudent bool `json:"is_likely_student"`

	CountMobileMoneyTransfersOut  int     `json:"count_mobile_money_transfers_out"`
	TotalMobileMoneyTransfersOut  float64 `json:"total_mobile_money_transfers_out_amount"`
	HasSingleDominantBeneficiary  bool    `json:"has_single_dominant_beneficiary"`
	PctToDominantBeneficiary      float64 `json:"percentage_withdrawals_to_dominant_beneficiary"`
	HasLoanRepayment              bool    `json:"has_loan_repayment"`
	HasBettingTransactions        bool    `json:"has_betting_transactions"`
	HasBouncedCheques             bool    `json:"has_bounced_cheques"`
	AvgDaysBetweenLargeDeposits   float64 `json:"avg_days_between_large_deposits"`
	AvgDaysBetweenLargeWithdrawal float64 `json:"avg_days_between_large_withdrawals"`
}

// CallLogProfile holds aggregated call behavior features.
type CallLogProfile struct {
	CallFrequency       int     `json:"call_frequency"`
	CallDuration        float64 `json:"call_duration"`
	ActiveBehavior      float64 `json:"active_behavior"`
	StableContactsRatio float64 `json:"stable_contacts_ratio"`
	NightToDayRatio     float64 `json:"night_vs_day"`
	MissedCallRatio     float64 `json:"missed_only"`
	PatternRegularity   float64 `json:"regular_patterns_std"`
	GeographicSpread    int     `json:"geographic_pattern"`
}

// MobileMoneyProfile holds aggregated mobile money wallet features.
type MobileMoneyProfile struct {
	TotalTransactions    int     `json:"total_transactions"`
	NumPaybill           int     `json:"num_paybill"`
	NumMerchant          int     `json:"num_merchant"`
	NumCustomerTransfers int     `json:"num_customer_transfers"`
	NumAirtimePurchases  int     `json:"num_airtime_purchases"`
	TotalInflow          float64 `json:"total_inflow"`
	TotalOutflow         float64 `json:"total_outflow"`
	AvgTransactionSize   float64 `json:"avg_transaction_size"`
	MaxTransactionSize   float64 `json:"max_transaction_size"`
	MinTransactionSize   float64 `json:"min_transaction_size"`
	MerchantSpendTotal   float64 `json:"merchant_spend_total"`
	PaybillSpendTotal    float64 `json:"paybill_spend_total"`
	AirtimeSpendTotal    float64 `json:"airtime_spend_total"`
	AvgBalance           float64 `json:"avg_balance"`
	MinBalance           float64 `json:"min_balance"`
	MaxBalance           float64 `json:"max_balance"`
	BalanceVolatility    float64 `json:"balance_volatility"`
	EndBalance           float64 `json:"end_balance"`
	InflowOutflowRatio   float64 `json:"inflow_outflow_ratio"`
	MerchantRatio        float64 `json:"merchant_ratio"`
	AirtimeRatio         float64 `json:"airtime_ratio"`
	PaybillRatio         float64 `json:"paybill_ratio"`
	UniqueRecipients     int     `json:"unique_recipients"`
	RecurringPayments    int     `json:"recurring_payments"`
	AvgSecsBetweenLarge  float64 `json:"avg_time_between_large_balances_sec"`
	AvgSecsBetweenInflow float64 `json:"avg_time_between_inflows_sec"`
}

// AssetProfile holds the declared collateral value.
type AssetProfile struct {
	UserID int64   `json:"user_id"`
	Value  float64 `json:"asset_value"`
}

// MedicationRequest holds the requested medication cost.
type MedicationRequest struct {
	UserID int64   `json:"user_id"`
	Cost   float64 `json:"medication"`
}

// Application is one complete, validated credit application. It is the
// immutable input record of every scorer; no component mutates it.
type Application struct {
	TenantID    string             `json:"tenantId"`
	Bank        BankProfile        `json:"bank_data"`
	Calls       CallLogProfile     `json:"call_logs"`
	MobileMoney MobileMoneyProfile `json:"mpesa_data"`
	Asset       AssetProfile       `json:"asset_data"`
	Medication  MedicationRequest  `json:"medication_data"`

	// AppraisalConfidence discounts the declared asset value under the
	// appraisal scorer variant. 0 means "not supplied" and is treated as
	// full confidence.
	AppraisalConfidence float64 `json:"appraisal_confidence,omitempty"`
}

// Validate rejects applications the engine cannot score. The requested cost
// is a denominator throughout the pipeline and must be strictly positive;
// the asset value may be zero but never negative.
func (a *Application) Validate() error {
	if a.Medication.Cost <= 0 {
		return fmt.Errorf("%w: requested medication cost must be positive, got %v", ErrInvalidInput, a.Medication.Cost)
	}
	if a.Asset.Value < 0 {
		return fmt.Errorf("%w: asset value must not be negative, got %v", ErrInvalidInput, a.Asset.Value)
	}
	if a.AppraisalConfidence < 0 || a.AppraisalConfidence > 1 {
		return fmt.Errorf("%w: appraisal confidence must be in [0,1], got %v", ErrInvalidInput, a.AppraisalConfidence)
	}
	return nil
}

// CoverageRatio is the declared asset value divided by the requested cost.
// Callers must validate the application first; a non-positive cost yields 0.
func (a *Application) CoverageRatio() float64 {
	if a.Medication.Cost <= 0 {
		return 0
	}
	return a.Asset.Value / a.Medication.Cost
}
