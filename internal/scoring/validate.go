package scoring

import (
	"fmt"
	"math"

	"github.com/opensource-finance/redflag/internal/domain"
)

// ValidateInput rejects values the calculator cannot score meaningfully.
// in is expected to be normalized. The error, if any, is a
// *domain.MalformedInputError listing every bad field.
func ValidateInput(in domain.AssessmentInput) error {
	merr := &domain.MalformedInputError{}

	money := []struct {
		field string
		value float64
	}{
		{"turnover", in.Turnover},
		{"totalExpenses", in.TotalExpenses},
		{"motorCosts", in.MotorCosts},
		{"homeOfficeAmount", in.HomeOfficeAmount},
		{"phoneInternet", in.PhoneInternet},
		{"travelSubsistence", in.TravelSubsistence},
		{"marketing", in.Marketing},
		{"employmentIncome", in.EmploymentIncome},
		{"rentalIncome", in.RentalIncome},
		{"dividendIncome", in.DividendIncome},
		{"interestIncome", in.InterestIncome},
		{"foreignIncome", in.ForeignIncome},
		{"capitalAllowancesAmount", in.CapitalAllowancesAmount},
		{"lossCarryForwardAmount", in.LossCarryForwardAmount},
	}
	for _, f := range money {
		checkAmount(merr, f.field, f.value)
	}

	checkMileage(merr, in.MileageClaimed)
	if !in.Method.Valid() {
		merr.Add("method", fmt.Sprintf("unknown method %q", in.Method))
	}
	if !in.ReportType.Valid() {
		merr.Add("reportType", fmt.Sprintf("unknown report type %q", in.ReportType))
	}
	if in.TaxYear != "" && !in.TaxYear.Valid() {
		merr.Add("taxYear", fmt.Sprintf("unsupported tax year %q", in.TaxYear))
	}
	switch in.CapitalAllowancesMethod {
	case domain.AllowanceNone, domain.AllowanceAIA, domain.AllowanceWDA:
	default:
		merr.Add("capitalAllowancesMethod", fmt.Sprintf("unknown method %q", in.CapitalAllowancesMethod))
	}

	return merr.ErrOrNil()
}

// ValidateOverrides applies the same bounds to simulation overrides.
func ValidateOverrides(o domain.SimulationOverrides) error {
	merr := &domain.MalformedInputError{}

	if o.TotalExpenses != nil {
		checkAmount(merr, "totalExpenses", *o.TotalExpenses)
	}
	if o.MotorCosts != nil {
		checkAmount(merr, "motorCosts", *o.MotorCosts)
	}
	if o.HomeOfficeAmount != nil {
		checkAmount(merr, "homeOfficeAmount", *o.HomeOfficeAmount)
	}
	if o.TravelSubsistence != nil {
		checkAmount(merr, "travelSubsistence", *o.TravelSubsistence)
	}
	if o.MileageClaimed != nil {
		checkMileage(merr, *o.MileageClaimed)
	}
	if o.Method != nil && !o.Method.Valid() {
		merr.Add("method", fmt.Sprintf("unknown method %q", *o.Method))
	}

	return merr.ErrOrNil()
}

func checkAmount(merr *domain.MalformedInputError, field string, v float64) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		merr.Add(field, "must be a finite number")
	case v < 0:
		merr.Add(field, "must not be negative")
	case v > domain.MaxAmount:
		merr.Add(field, fmt.Sprintf("must not exceed %.0f", domain.MaxAmount))
	}
}

func checkMileage(merr *domain.MalformedInputError, miles int) {
	switch {
	case miles < 0:
		merr.Add("mileageClaimed", "must not be negative")
	case miles > domain.MaxMileage:
		merr.Add("mileageClaimed", fmt.Sprintf("must not exceed %d", domain.MaxMileage))
	}
}

// CheckConsistency rejects a declared loss when the figures show a profit.
// The error, if any, is a *domain.ConsistencyError.
func CheckConsistency(in domain.AssessmentInput) error {
	profit := in.Profit()
	if in.LossThisYear && profit > 0 {
		return &domain.ConsistencyError{
			Field:   "lossThisYear",
			Message: fmt.Sprintf("a loss is declared but turnover exceeds expenses by %.2f", profit),
			Profit:  profit,
		}
	}
	return nil
}
