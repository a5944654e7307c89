package report

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/repository"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "£0.00"},
		{5, "£5.00"},
		{1234.56, "£1,234.56"},
		{1234.567, "£1,234.57"},
		{1000000, "£1,000,000.00"},
		{-2500.5, "-£2,500.50"},
		{0.05, "£0.05"},
		{123, "£123.00"},
		{1234.565, "£1,234.57"},
		{999999.999, "£1,000,000.00"},
		{domain.MaxAmount, "£1,000,000,000,000.00"},
		{1e20, "£100,000,000,000,000,000,000.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in), "Money(%v)", tt.in)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "26.7%", Percent(0.26666))
	assert.Equal(t, "0.0%", Percent(0))
	assert.Equal(t, "100.0%", Percent(1))
	assert.Equal(t, "-20.0%", Percent(-0.2))
}

func TestMiles(t *testing.T) {
	assert.Equal(t, "12,000 miles", Miles(12000))
}

func scoredAssessment(reportType domain.ReportType) *domain.Assessment {
	return &domain.Assessment{
		ID: "a-100",
		Input: domain.AssessmentInput{
			TaxYear:        domain.TaxYear2024,
			Industry:       "phv_taxi",
			Turnover:       30000,
			TotalExpenses:  24000,
			MotorCosts:     8000,
			MileageClaimed: 12000,
			ReportType:     reportType,
		},
		Result: &domain.ScoreResult{
			Score: 25,
			Band:  domain.BandModerate,
			TriggeredIndicators: []domain.TriggeredIndicator{
				{ID: "high_expense_ratio", Name: "High expense ratio", Weight: domain.WeightMedium, Points: 10,
					Explanation: "Expenses are high", HMRCContext: "HMRC compares", DocumentationTips: "Keep receipts"},
				{ID: "large_mileage_claim", Name: "Large mileage claim", Weight: domain.WeightHigh, Points: 15,
					Explanation: "Mileage is high", HMRCContext: "HMRC checks logs", DocumentationTips: "Keep a log"},
			},
			ContextualNotes: []domain.ContextualNote{
				{ID: "phv_motor_costs", Name: "PHV motor costs", Explanation: "Normal for drivers", HMRCContext: "ctx", DocumentationTips: "tips"},
			},
			DerivedMetrics: domain.DerivedMetrics{
				Profit:       6000,
				ExpenseRatio: 0.8,
				MotorRatio:   0.26666,
				ProfitRatio:  0.2,
				MileageValue: 5000,
			},
			Industry:       "phv_taxi",
			IndustryName:   "Private hire and taxi",
			RulesetVersion: "2024.1",
		},
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2025, 1, 20, 9, 30, 0, 0, time.UTC),
	}
}

func figureValue(doc *domain.ReportDocument, label string) string {
	for _, f := range doc.Figures {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

func TestBuildBasic(t *testing.T) {
	doc, err := Build(scoredAssessment(domain.ReportBasic))
	require.NoError(t, err)

	assert.Equal(t, Title, doc.Title)
	assert.Equal(t, 25, doc.Score)
	assert.Equal(t, domain.BandModerate, doc.Band)
	assert.NotEmpty(t, doc.BandSummary)
	assert.Equal(t, "Private hire and taxi", doc.Industry)
	assert.Equal(t, "2024.1", doc.RulesetVersion)

	assert.Equal(t, "£30,000.00", figureValue(doc, "Turnover"))
	assert.Equal(t, "£6,000.00", figureValue(doc, "Profit"))
	assert.Equal(t, "80.0%", figureValue(doc, "Expenses to turnover"))
	assert.Equal(t, "26.7%", figureValue(doc, "Motor costs to turnover"))
	assert.Equal(t, "12,000 miles", figureValue(doc, "Business mileage"))
	assert.Empty(t, figureValue(doc, "Use of home to turnover"))

	require.Len(t, doc.Indicators, 2)
	assert.Equal(t, "high_expense_ratio", doc.Indicators[0].ID, "indicators keep result order")
	require.Len(t, doc.TopDrivers, 2)
	assert.Equal(t, "large_mileage_claim", doc.TopDrivers[0].ID, "drivers sort by points")

	for _, ind := range doc.Indicators {
		assert.Empty(t, ind.HMRCContext)
		assert.Empty(t, ind.DocumentationTips)
	}
	require.Len(t, doc.Notes, 1)
	assert.Empty(t, doc.Notes[0].HMRCContext)
}

func TestBuildPro(t *testing.T) {
	doc, err := Build(scoredAssessment(domain.ReportPro))
	require.NoError(t, err)

	for _, ind := range doc.Indicators {
		assert.NotEmpty(t, ind.HMRCContext, ind.ID)
		assert.NotEmpty(t, ind.DocumentationTips, ind.ID)
	}
	assert.Equal(t, "ctx", doc.Notes[0].HMRCContext)
}

func TestBuildUsesStoredResultOnly(t *testing.T) {
	a := scoredAssessment(domain.ReportBasic)
	// Input that would score differently today must not change the report.
	a.Input.TotalExpenses = 0
	a.Input.MileageClaimed = 0

	doc, err := Build(a)
	require.NoError(t, err)
	assert.Equal(t, 25, doc.Score)
	assert.Len(t, doc.Indicators, 2)
}

func TestBuildUndefinedRatios(t *testing.T) {
	a := scoredAssessment(domain.ReportBasic)
	a.Result.DerivedMetrics.TurnoverUndefined = true
	a.Result.DerivedMetrics.ExpenseRatio = domain.UndefinedRatio

	doc, err := Build(a)
	require.NoError(t, err)
	assert.Equal(t, "n/a", figureValue(doc, "Expenses to turnover"))
}

func TestBuildWithoutResult(t *testing.T) {
	_, err := Build(&domain.Assessment{ID: "x"})
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = Build(nil)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "redflag_report_a-100.json", Filename(&domain.Assessment{ID: "a-100"}))
}

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "report.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

type recordingBus struct {
	mu        sync.Mutex
	published []string
}

func (b *recordingBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, topic)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	return nil, nil
}

func (b *recordingBus) QueueSubscribe(ctx context.Context, topic, queue string, handler domain.MessageHandler) (domain.Subscription, error) {
	return nil, nil
}

func (b *recordingBus) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	return nil, nil
}

func (b *recordingBus) Ping(ctx context.Context) error { return nil }
func (b *recordingBus) Close() error                   { return nil }

func TestServiceInline(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewService(repo, nil)

	a := scoredAssessment(domain.ReportPro)
	require.NoError(t, repo.SaveAssessment(ctx, a))

	_, err := svc.Fetch(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotPaid)

	_, err = svc.Generate(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotPaid)

	rep, err := svc.Purchase(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Equal(t, domain.ReportPro, rep.ReportType)

	got, err := svc.Fetch(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Document.Score)
	assert.Equal(t, "HMRC checks logs", got.Document.TopDrivers[0].HMRCContext)
}

func TestServiceAsync(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	bus := &recordingBus{}
	svc := NewService(repo, bus)

	a := scoredAssessment(domain.ReportBasic)
	require.NoError(t, repo.SaveAssessment(ctx, a))

	rep, err := svc.Purchase(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, rep)
	assert.Equal(t, []string{domain.TopicReportRequested}, bus.published)

	_, err = svc.Fetch(ctx, a.ID)
	assert.ErrorIs(t, err, ErrPending)

	_, err = svc.Generate(ctx, a.ID)
	require.NoError(t, err)

	got, err := svc.Fetch(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportBasic, got.ReportType)
}

func TestServiceUnknownAssessment(t *testing.T) {
	svc := NewService(newTestRepo(t), nil)

	_, err := svc.Purchase(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = svc.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
