// Package domain defines the core interfaces and types for Red-Flag.
package domain

import (
	"context"
	"time"
)

// Repository stores assessments and their paid reports. A saved result is
// never rewritten; payment status is the only field that moves afterwards.
// Lookups of unknown ids return repository.ErrNotFound.
type Repository interface {
	SaveAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, id string) (*Assessment, error)
	ListAssessments(ctx context.Context, filter AssessmentFilter) ([]*Assessment, error)
	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) error

	SaveReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, assessmentID string) (*Report, error)

	Ping(ctx context.Context) error
	Close() error
}

// AssessmentFilter narrows ListAssessments. Zero values match everything.
type AssessmentFilter struct {
	Industry string
	Band     Band
	Limit    int
}

// RepositoryConfig selects the SQL driver and its connection settings.
type RepositoryConfig struct {
	Driver string // sqlite, postgres

	SQLitePath string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string // defaults to disable

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
