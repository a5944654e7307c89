package domain

// UndefinedRatio stands in for any ratio whose denominator (turnover) is
// zero or negative. A positive numerator over no turnover becomes
// UndefinedRatio so that "high ratio" indicators fire; profit ratio becomes
// -UndefinedRatio so that the low-margin indicator can fire and the
// high-margin note cannot.
const UndefinedRatio = 10.0

// DerivedMetrics holds the ratios computed from an AssessmentInput.
// Never stored apart from the input that produced it.
type DerivedMetrics struct {
	Profit            float64 `json:"profit"`
	ExpenseRatio      float64 `json:"expenseRatio"`
	MotorRatio        float64 `json:"motorRatio"`
	ProfitRatio       float64 `json:"profitRatio"`
	HomeOfficeRatio   float64 `json:"homeOfficeRatio"`
	TravelRatio       float64 `json:"travelRatio"`
	MileageValue      float64 `json:"mileageValue"`
	MileageValueRatio float64 `json:"mileageValueRatio"`
	OtherIncomeTotal  float64 `json:"otherIncomeTotal"`
	RoundedFigures    int     `json:"roundedFigures"`
	TurnoverUndefined bool    `json:"turnoverUndefined"`
}

// MileageRates are the approved mileage allowance rates per mile.
type MileageRates struct {
	FirstRate      float64 `json:"firstRate" yaml:"first_rate"`
	FirstBandMiles int     `json:"firstBandMiles" yaml:"first_band_miles"`
	AfterRate      float64 `json:"afterRate" yaml:"after_rate"`
}

// Value returns the allowance for the given number of miles.
func (r MileageRates) Value(miles int) float64 {
	if miles <= 0 {
		return 0
	}
	if miles <= r.FirstBandMiles {
		return float64(miles) * r.FirstRate
	}
	return float64(r.FirstBandMiles)*r.FirstRate + float64(miles-r.FirstBandMiles)*r.AfterRate
}
