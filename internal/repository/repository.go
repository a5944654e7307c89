// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/redflag/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultListLimit caps ListAssessments when the filter sets no limit.
const DefaultListLimit = 100

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const assessmentColumns = `
	id, email, tax_year, industry, report_type, score, band,
	input, result, ruleset_version, payment_status, created_at, updated_at`

// SaveAssessment stores a scored assessment. Assessments are write-once, so
// saving an existing id fails.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}
	if a.Result == nil {
		return fmt.Errorf("%w: assessment %s has no result", ErrInvalidInput, a.ID)
	}

	input, err := json.Marshal(a.Input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	status := a.PaymentStatus
	if status == "" {
		status = domain.PaymentPending
	}

	query := `INSERT INTO assessments (` + assessmentColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.Email, string(a.Input.TaxYear), a.Result.Industry, string(a.Input.ReportType),
		a.Result.Score, string(a.Result.Band),
		string(input), string(result), a.Result.RulesetVersion,
		string(status), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment %s: %w", a.ID, err)
	}
	return nil
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = ?`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssessments returns assessments matching filter, newest first.
func (r *SQLRepository) ListAssessments(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	var (
		where []string
		args  []any
	)
	if filter.Industry != "" {
		where = append(where, "industry = ?")
		args = append(args, filter.Industry)
	}
	if filter.Band != "" {
		where = append(where, "band = ?")
		args = append(args, string(filter.Band))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ` + strconv.Itoa(limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdatePaymentStatus changes the payment status of an assessment. It is the
// only mutation a stored assessment allows.
func (r *SQLRepository) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, status)
	}

	query := `UPDATE assessments SET payment_status = ?, updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveReport stores a generated report, replacing any earlier one for the
// same assessment.
func (r *SQLRepository) SaveReport(ctx context.Context, rep *domain.Report) error {
	if rep == nil || rep.AssessmentID == "" {
		return fmt.Errorf("%w: report assessment id is required", ErrInvalidInput)
	}

	doc, err := json.Marshal(rep.Document)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := `
		INSERT INTO reports (assessment_id, report_type, document, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(assessment_id) DO UPDATE SET
			report_type = excluded.report_type,
			document = excluded.document,
			generated_at = excluded.generated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rep.AssessmentID, string(rep.ReportType), string(doc), rep.GeneratedAt.UTC(),
	)
	return err
}

// GetReport retrieves the report generated for an assessment.
func (r *SQLRepository) GetReport(ctx context.Context, assessmentID string) (*domain.Report, error) {
	query := `
		SELECT assessment_id, report_type, document, generated_at
		FROM reports
		WHERE assessment_id = ?
	`

	var (
		rep        domain.Report
		reportType string
		doc        string
	)
	err := r.db.QueryRowContext(ctx, r.rebind(query), assessmentID).Scan(
		&rep.AssessmentID, &reportType, &doc, &rep.GeneratedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rep.ReportType = domain.ReportType(reportType)
	if err := json.Unmarshal([]byte(doc), &rep.Document); err != nil {
		return nil, fmt.Errorf("failed to parse report for %s: %w", assessmentID, err)
	}
	return &rep, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.Assessment, error) {
	var (
		a                                   domain.Assessment
		taxYear, industry, reportType, band string
		score                               int
		input, result, version, status      string
	)

	if err := row.Scan(
		&a.ID, &a.Email, &taxYear, &industry, &reportType, &score, &band,
		&input, &result, &version, &status, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(input), &a.Input); err != nil {
		return nil, fmt.Errorf("failed to parse input for %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
		return nil, fmt.Errorf("failed to parse result for %s: %w", a.ID, err)
	}
	a.PaymentStatus = domain.PaymentStatus(status)

	return &a, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
