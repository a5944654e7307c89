package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/repository"
)

var (
	// ErrNotPaid is returned when a report is asked for before payment.
	ErrNotPaid = errors.New("report has not been paid for")

	// ErrPending is returned when a paid report is still being generated.
	ErrPending = errors.New("report is being generated")
)

// Service generates and serves stored reports.
type Service struct {
	repo domain.Repository
	bus  domain.EventBus
	now  func() time.Time
}

// NewService creates a report service. bus may be nil, in which case
// purchases generate the report inline.
func NewService(repo domain.Repository, bus domain.EventBus) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds and stores the report for a paid assessment.
func (s *Service) Generate(ctx context.Context, assessmentID string) (*domain.Report, error) {
	a, err := s.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if a.PaymentStatus != domain.PaymentPaid {
		return nil, ErrNotPaid
	}

	doc, err := Build(a)
	if err != nil {
		return nil, fmt.Errorf("failed to build report for %s: %w", assessmentID, err)
	}

	rep := &domain.Report{
		AssessmentID: a.ID,
		ReportType:   a.Input.ReportType,
		Document:     *doc,
		GeneratedAt:  s.now(),
	}
	if err := s.repo.SaveReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to save report for %s: %w", assessmentID, err)
	}

	slog.Info("report generated",
		"assessment_id", a.ID,
		"report_type", rep.ReportType,
		"score", doc.Score,
		"band", doc.Band,
	)
	return rep, nil
}

// Purchase marks an assessment paid and requests its report. With a bus the
// report is generated asynchronously and nil is returned.
func (s *Service) Purchase(ctx context.Context, assessmentID string) (*domain.Report, error) {
	if err := s.repo.UpdatePaymentStatus(ctx, assessmentID, domain.PaymentPaid); err != nil {
		return nil, err
	}

	if s.bus == nil {
		return s.Generate(ctx, assessmentID)
	}

	payload, err := json.Marshal(domain.AssessmentEvent{AssessmentID: assessmentID})
	if err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, domain.TopicReportRequested, payload); err != nil {
		return nil, fmt.Errorf("failed to request report for %s: %w", assessmentID, err)
	}
	return nil, nil
}

// Fetch returns the stored report, ErrNotPaid before payment or ErrPending
// while generation has not finished.
func (s *Service) Fetch(ctx context.Context, assessmentID string) (*domain.Report, error) {
	a, err := s.repo.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if a.PaymentStatus != domain.PaymentPaid {
		return nil, ErrNotPaid
	}

	rep, err := s.repo.GetReport(ctx, assessmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPending
	}
	return rep, err
}
