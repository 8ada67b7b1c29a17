// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
// Missing records are reported as ErrNotFound.
type Repository interface {
	// Applicant operations
	SaveApplicant(ctx context.Context, tenantID string, a *Applicant) error
	GetApplicant(ctx context.Context, tenantID string, applicantID string) (*Applicant, error)
	FindApplicantByName(ctx context.Context, tenantID string, fullName string) (*Applicant, error)
	ListApplicants(ctx context.Context, tenantID string) ([]*Applicant, error)

	// Application operations
	SaveApplication(ctx context.Context, tenantID string, app *Application) error
	GetApplication(ctx context.Context, tenantID string, appID string) (*Application, error)
	ListApplications(ctx context.Context, tenantID string, status ApplicationStatus) ([]*Application, error)
	ListApplicationsByApplicant(ctx context.Context, tenantID string, applicantID string) ([]*Application, error)
	CountApplicationsSince(ctx context.Context, tenantID string, applicantID string, since time.Time) (int, error)

	// UpdateApplication persists app if the stored version equals
	// app.Version, then increments app.Version. A mismatch returns ErrConflict.
	UpdateApplication(ctx context.Context, tenantID string, app *Application) error
	DeleteApplication(ctx context.Context, tenantID string, appID string) error

	// Rule configuration operations
	SaveRuleConfig(ctx context.Context, tenantID string, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*RuleConfig, error)

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
