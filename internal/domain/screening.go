package domain

import "time"

// ScreeningRule is a tenant-defined anomaly predicate evaluated alongside
// the built-in fraud catalog. The expression is CEL over the application
// signals and must return bool; a true result appends Flag to the
// evaluation's fraud indicators, after the built-in flags so that catalog
// order stays deterministic.
type ScreeningRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is the CEL predicate, e.g.
	// "mpesa.unique_recipients > 200 && bank.count_deposits == 0".
	Expression string `json:"expression"`

	// Flag is the indicator string reported when the predicate holds.
	Flag string `json:"flag"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
