package scoring

import (
	"math"

	"github.com/opensource-finance/redflag/internal/domain"
)

// Calculator derives ratios from an AssessmentInput.
type Calculator struct {
	mileage   domain.MileageRates
	roundUnit float64
}

// NewCalculator creates a calculator using the given mileage rates.
// Figures that are exact multiples of roundUnit count as rounded;
// a roundUnit of zero disables the count.
func NewCalculator(mileage domain.MileageRates, roundUnit float64) *Calculator {
	return &Calculator{mileage: mileage, roundUnit: roundUnit}
}

// Compute returns the derived metrics for in. It never fails: turnover of
// zero or less is handled through domain.UndefinedRatio.
func (c *Calculator) Compute(in domain.AssessmentInput) domain.DerivedMetrics {
	m := domain.DerivedMetrics{
		Profit:            in.Profit(),
		ExpenseRatio:      ratio(in.TotalExpenses, in.Turnover),
		MotorRatio:        ratio(in.MotorCosts, in.Turnover),
		HomeOfficeRatio:   ratio(in.HomeOfficeAmount, in.Turnover),
		TravelRatio:       ratio(in.TravelSubsistence, in.Turnover),
		MileageValue:      c.mileage.Value(in.MileageClaimed),
		OtherIncomeTotal:  in.EmploymentIncome + in.RentalIncome + in.DividendIncome + in.InterestIncome,
		RoundedFigures:    c.roundedFigures(in),
		TurnoverUndefined: in.Turnover <= 0,
	}
	m.MileageValueRatio = ratio(m.MileageValue, in.Turnover)

	if m.TurnoverUndefined {
		m.ProfitRatio = -domain.UndefinedRatio
	} else {
		m.ProfitRatio = m.Profit / in.Turnover
	}
	return m
}

// ratio divides a cost by turnover. With no turnover a positive cost is
// UndefinedRatio and a zero cost is 0.
func ratio(num, turnover float64) float64 {
	if turnover <= 0 {
		if num > 0 {
			return domain.UndefinedRatio
		}
		return 0
	}
	return num / turnover
}

func (c *Calculator) roundedFigures(in domain.AssessmentInput) int {
	if c.roundUnit <= 0 {
		return 0
	}
	count := 0
	for _, v := range []float64{
		in.Turnover,
		in.TotalExpenses,
		in.MotorCosts,
		in.HomeOfficeAmount,
		in.TravelSubsistence,
		in.Marketing,
	} {
		if v > 0 && math.Mod(v, c.roundUnit) == 0 {
			count++
		}
	}
	return count
}
