package domain

import (
	"context"
	"time"
)

// Repository persists tenant configuration: scoring profiles and screening
// rules. Applications and decisions are deliberately never stored; an
// evaluation is stateless and leaves no record behind. All methods require
// tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Scoring profile operations
	SaveScoringProfile(ctx context.Context, tenantID string, profile *ScoringProfile) error
	GetScoringProfile(ctx context.Context, tenantID string) (*ScoringProfile, error)
	DeleteScoringProfile(ctx context.Context, tenantID string) error

	// Screening rule operations
	SaveScreeningRule(ctx context.Context, tenantID string, rule *ScreeningRule) error
	GetScreeningRule(ctx context.Context, tenantID string, ruleID string) (*ScreeningRule, error)
	ListScreeningRules(ctx context.Context, tenantID string) ([]*ScreeningRule, error)
	DeleteScreeningRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
