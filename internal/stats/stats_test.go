package stats

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/repository"
)

func assessment(id, industry string, score int, band domain.Band, paid bool, indicators ...string) *domain.Assessment {
	a := &domain.Assessment{
		ID:            id,
		Input:         domain.AssessmentInput{Industry: industry},
		PaymentStatus: domain.PaymentPending,
		Result: &domain.ScoreResult{
			Score:    score,
			Band:     band,
			Industry: industry,
		},
	}
	if paid {
		a.PaymentStatus = domain.PaymentPaid
	}
	for _, id := range indicators {
		a.Result.TriggeredIndicators = append(a.Result.TriggeredIndicators, domain.TriggeredIndicator{ID: id})
	}
	return a
}

func TestSummarize(t *testing.T) {
	list := []*domain.Assessment{
		assessment("a1", "phv_taxi", 10, domain.BandLow, false, "high_motor_costs"),
		assessment("a2", "phv_taxi", 25, domain.BandModerate, true, "high_motor_costs", "declared_loss"),
		assessment("a3", "retail", 55, domain.BandHigh, false, "declared_loss", "high_motor_costs"),
	}

	s := Summarize(list)

	assert.Equal(t, 3, s.TotalAssessments)
	assert.Equal(t, 1, s.PaidAssessments)
	assert.Equal(t, 33.33, s.ConversionRate)
	assert.Equal(t, map[domain.Band]int{
		domain.BandLow:      1,
		domain.BandModerate: 1,
		domain.BandHigh:     1,
	}, s.BandBreakdown)
	assert.Equal(t, map[string]int{"phv_taxi": 2, "retail": 1}, s.IndustryBreakdown)
	assert.Equal(t, 30.0, s.MeanScore)
	assert.Equal(t, 25.0, s.MedianScore)
	assert.Equal(t, 22.91, s.ScoreStdDev)

	require.Len(t, s.TopIndicators, 2)
	assert.Equal(t, IndicatorCount{ID: "high_motor_costs", Count: 3}, s.TopIndicators[0])
	assert.Equal(t, IndicatorCount{ID: "declared_loss", Count: 2}, s.TopIndicators[1])
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.TotalAssessments)
	assert.Zero(t, s.ConversionRate)
	assert.Zero(t, s.MeanScore)
	assert.Zero(t, s.ScoreStdDev)
	assert.Len(t, s.BandBreakdown, 3, "every band is always reported")
	assert.Empty(t, s.TopIndicators)
}

func TestSummarizeSingleScore(t *testing.T) {
	s := Summarize([]*domain.Assessment{assessment("a1", "other", 40, domain.BandModerate, true)})

	assert.Equal(t, 100.0, s.ConversionRate)
	assert.Equal(t, 40.0, s.MedianScore)
	assert.Zero(t, s.ScoreStdDev, "no spread from one score")
}

func TestSummarizeMedianOfEvenCount(t *testing.T) {
	s := Summarize([]*domain.Assessment{
		assessment("a1", "other", 20, domain.BandLow, false),
		assessment("a2", "other", 10, domain.BandLow, false),
	})
	assert.Equal(t, 15.0, s.MedianScore)

	s = Summarize([]*domain.Assessment{
		assessment("b1", "other", 5, domain.BandLow, false),
		assessment("b2", "other", 30, domain.BandModerate, false),
		assessment("b3", "other", 60, domain.BandHigh, false),
		assessment("b4", "other", 15, domain.BandLow, false),
	})
	assert.Equal(t, 22.5, s.MedianScore)
}

func TestSummarizeSkipsMissingResults(t *testing.T) {
	a := assessment("a1", "other", 0, domain.BandLow, false)
	a.Result = nil

	s := Summarize([]*domain.Assessment{a})
	assert.Equal(t, 1, s.TotalAssessments)
	assert.Zero(t, s.BandBreakdown[domain.BandLow])
}

func TestServiceSummary(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "stats.db"),
	})
	require.NoError(t, err)
	defer repo.Close()

	now := time.Now().UTC()
	for i, a := range []*domain.Assessment{
		assessment("s1", "phv_taxi", 10, domain.BandLow, false),
		assessment("s2", "phv_taxi", 60, domain.BandHigh, true),
		assessment("s3", "cleaning", 30, domain.BandModerate, false),
	} {
		a.CreatedAt = now.Add(time.Duration(i) * time.Second)
		a.UpdatedAt = a.CreatedAt
		require.NoError(t, repo.SaveAssessment(ctx, a), fmt.Sprintf("save %s", a.ID))
	}

	svc := NewService(repo)

	all, err := svc.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalAssessments)
	assert.Equal(t, 1, all.PaidAssessments)

	phv, err := svc.Summary(ctx, "phv_taxi")
	require.NoError(t, err)
	assert.Equal(t, 2, phv.TotalAssessments)
	assert.Equal(t, 50.0, phv.ConversionRate)
	assert.Equal(t, 35.0, phv.MeanScore)
}
