package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opensource-finance/redflag/internal/domain"
)

func testCalculator() *Calculator {
	return NewCalculator(domain.MileageRates{FirstRate: 0.45, FirstBandMiles: 10000, AfterRate: 0.25}, 500)
}

func TestComputeRatios(t *testing.T) {
	m := testCalculator().Compute(domain.AssessmentInput{
		Turnover:          30000,
		TotalExpenses:     24000,
		MotorCosts:        8000,
		HomeOfficeAmount:  600,
		TravelSubsistence: 1500,
		MileageClaimed:    12000,
	})

	assert.Equal(t, 6000.0, m.Profit)
	assert.InDelta(t, 0.8, m.ExpenseRatio, 1e-9)
	assert.InDelta(t, 0.2667, m.MotorRatio, 1e-4)
	assert.InDelta(t, 0.2, m.ProfitRatio, 1e-9)
	assert.InDelta(t, 0.02, m.HomeOfficeRatio, 1e-9)
	assert.InDelta(t, 0.05, m.TravelRatio, 1e-9)
	assert.False(t, m.TurnoverUndefined)
}

func TestComputeMileageValue(t *testing.T) {
	calc := testCalculator()

	tests := []struct {
		miles int
		want  float64
	}{
		{0, 0},
		{1000, 450},
		{10000, 4500},
		{12000, 5000},
	}

	for _, tt := range tests {
		m := calc.Compute(domain.AssessmentInput{Turnover: 10000, MileageClaimed: tt.miles})
		assert.InDelta(t, tt.want, m.MileageValue, 1e-9, "miles=%d", tt.miles)
		assert.InDelta(t, tt.want/10000, m.MileageValueRatio, 1e-9, "miles=%d", tt.miles)
	}
}

func TestComputeZeroTurnover(t *testing.T) {
	calc := testCalculator()

	t.Run("costs with no turnover", func(t *testing.T) {
		m := calc.Compute(domain.AssessmentInput{TotalExpenses: 500, MotorCosts: 200})

		assert.True(t, m.TurnoverUndefined)
		assert.Equal(t, domain.UndefinedRatio, m.ExpenseRatio)
		assert.Equal(t, domain.UndefinedRatio, m.MotorRatio)
		assert.Equal(t, 0.0, m.HomeOfficeRatio)
		assert.Equal(t, -domain.UndefinedRatio, m.ProfitRatio)
		assert.Equal(t, -500.0, m.Profit)
	})

	t.Run("nothing at all", func(t *testing.T) {
		m := calc.Compute(domain.AssessmentInput{})

		assert.Equal(t, 0.0, m.ExpenseRatio)
		assert.Equal(t, 0.0, m.MotorRatio)
		assert.Equal(t, -domain.UndefinedRatio, m.ProfitRatio)
	})
}

func TestComputeOtherIncome(t *testing.T) {
	m := testCalculator().Compute(domain.AssessmentInput{
		Turnover:         1000,
		EmploymentIncome: 100,
		RentalIncome:     200,
		DividendIncome:   300,
		InterestIncome:   4,
		ForeignIncome:    9999,
	})

	assert.Equal(t, 604.0, m.OtherIncomeTotal)
}

func TestComputeRoundedFigures(t *testing.T) {
	calc := testCalculator()

	m := calc.Compute(domain.AssessmentInput{
		Turnover:      30000,
		TotalExpenses: 24000,
		MotorCosts:    8000,
		Marketing:     1234.56,
	})
	assert.Equal(t, 3, m.RoundedFigures)

	m = NewCalculator(domain.MileageRates{}, 0).Compute(domain.AssessmentInput{Turnover: 30000})
	assert.Equal(t, 0, m.RoundedFigures)
}
