// Package stats computes dashboard aggregates over stored assessments.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/redflag/internal/domain"
)

// SampleLimit bounds how many recent assessments one summary reads.
const SampleLimit = 10000

// Summary is the dashboard view of stored assessments.
type Summary struct {
	TotalAssessments  int                 `json:"totalAssessments"`
	PaidAssessments   int                 `json:"paidAssessments"`
	ConversionRate    float64             `json:"conversionRate"` // percent, two decimals
	BandBreakdown     map[domain.Band]int `json:"bandBreakdown"`
	IndustryBreakdown map[string]int      `json:"industryBreakdown"`
	MeanScore         float64             `json:"meanScore"`
	MedianScore       float64             `json:"medianScore"`
	ScoreStdDev       float64             `json:"scoreStdDev"`
	TopIndicators     []IndicatorCount    `json:"topIndicators"`
}

// IndicatorCount is how often an indicator fired across the sample.
type IndicatorCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Service reads assessments from the repository and aggregates them.
type Service struct {
	repo domain.Repository
}

// NewService creates a stats service.
func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// Summary aggregates the most recent assessments, optionally narrowed by
// industry.
func (s *Service) Summary(ctx context.Context, industry string) (*Summary, error) {
	list, err := s.repo.ListAssessments(ctx, domain.AssessmentFilter{
		Industry: industry,
		Limit:    SampleLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return Summarize(list), nil
}

// Summarize aggregates list. Assessments without a stored result count
// towards the totals only.
func Summarize(list []*domain.Assessment) *Summary {
	sum := &Summary{
		BandBreakdown: map[domain.Band]int{
			domain.BandLow:      0,
			domain.BandModerate: 0,
			domain.BandHigh:     0,
		},
		IndustryBreakdown: make(map[string]int),
		TopIndicators:     []IndicatorCount{},
	}

	scores := make([]float64, 0, len(list))
	fired := make(map[string]int)

	for _, a := range list {
		sum.TotalAssessments++
		if a.PaymentStatus == domain.PaymentPaid {
			sum.PaidAssessments++
		}
		if a.Result == nil {
			continue
		}
		sum.BandBreakdown[a.Result.Band]++
		sum.IndustryBreakdown[a.Result.Industry]++
		scores = append(scores, float64(a.Result.Score))
		for _, ind := range a.Result.TriggeredIndicators {
			fired[ind.ID]++
		}
	}

	if sum.TotalAssessments > 0 {
		sum.ConversionRate = round2(float64(sum.PaidAssessments) / float64(sum.TotalAssessments) * 100)
	}

	if len(scores) > 0 {
		sort.Float64s(scores)
		sum.MeanScore = round2(stat.Mean(scores, nil))
		sum.MedianScore = median(scores)
		if len(scores) > 1 {
			sum.ScoreStdDev = round2(stat.StdDev(scores, nil))
		}
	}

	for id, n := range fired {
		sum.TopIndicators = append(sum.TopIndicators, IndicatorCount{ID: id, Count: n})
	}
	sort.Slice(sum.TopIndicators, func(i, j int) bool {
		if sum.TopIndicators[i].Count != sum.TopIndicators[j].Count {
			return sum.TopIndicators[i].Count > sum.TopIndicators[j].Count
		}
		return sum.TopIndicators[i].ID < sum.TopIndicators[j].ID
	})

	return sum
}

// median expects sorted scores. An even count averages the middle pair;
// stat.Quantile with stat.Empirical would return the lower one.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return round2(stat.Mean(sorted[n/2-1:n/2+1], nil))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
