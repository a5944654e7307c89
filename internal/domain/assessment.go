package domain

import (
	"time"
)

// TaxYear identifies a supported UK self-assessment year.
type TaxYear string

const (
	TaxYear2021 TaxYear = "2021-22"
	TaxYear2022 TaxYear = "2022-23"
	TaxYear2023 TaxYear = "2023-24"
	TaxYear2024 TaxYear = "2024-25"
	TaxYear2025 TaxYear = "2025-26"
)

// SupportedTaxYears lists the tax years accepted at submission, oldest first.
var SupportedTaxYears = []TaxYear{TaxYear2021, TaxYear2022, TaxYear2023, TaxYear2024, TaxYear2025}

// Valid reports whether y is a supported tax year.
func (y TaxYear) Valid() bool {
	for _, s := range SupportedTaxYears {
		if y == s {
			return true
		}
	}
	return false
}

// Method is how vehicle costs were claimed.
type Method string

const (
	MethodActual  Method = "actual"
	MethodMileage Method = "mileage"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == MethodActual || m == MethodMileage
}

// ReportType selects the paid report variant.
type ReportType string

const (
	ReportBasic ReportType = "v1_basic"
	ReportPro   ReportType = "v2_pro"
)

// Valid reports whether r is a known report type.
func (r ReportType) Valid() bool {
	return r == ReportBasic || r == ReportPro
}

// CapitalAllowancesMethod is the allowance regime claimed.
type CapitalAllowancesMethod string

const (
	AllowanceNone CapitalAllowancesMethod = ""
	AllowanceAIA  CapitalAllowancesMethod = "aia"
	AllowanceWDA  CapitalAllowancesMethod = "wda"
)

// DefaultIndustry is the profile used when no industry is given.
const DefaultIndustry = "other"

// MaxAmount bounds every money field (one trillion pounds). Larger figures
// are rejected as malformed instead of being scored and reported.
const MaxAmount = 1e12

// MaxMileage bounds MileageClaimed.
const MaxMileage = 10_000_000

// AssessmentInput is the set of figures submitted for one assessment.
// It is a value type: Normalize and the simulation path return copies.
type AssessmentInput struct {
	TaxYear  TaxYear `json:"taxYear"`
	Industry string  `json:"industry"`

	// Money, GBP
	Turnover          float64 `json:"turnover"`
	TotalExpenses     float64 `json:"totalExpenses"`
	MotorCosts        float64 `json:"motorCosts"`
	HomeOfficeAmount  float64 `json:"homeOfficeAmount"`
	PhoneInternet     float64 `json:"phoneInternet"`
	TravelSubsistence float64 `json:"travelSubsistence"`
	Marketing         float64 `json:"marketing"`

	MileageClaimed int    `json:"mileageClaimed"`
	Method         Method `json:"method"`

	LossThisYear         bool `json:"lossThisYear"`
	LossLastYear         bool `json:"lossLastYear"`
	HasOtherIncome       bool `json:"hasOtherIncome"`
	HasForeignIncome     bool `json:"hasForeignIncome"`
	HasCapitalAllowances bool `json:"hasCapitalAllowances"`
	HasLossCarryForward  bool `json:"hasLossCarryForward"`

	// Optional income breakdown
	EmploymentIncome        float64                 `json:"employmentIncome,omitempty"`
	RentalIncome            float64                 `json:"rentalIncome,omitempty"`
	DividendIncome          float64                 `json:"dividendIncome,omitempty"`
	InterestIncome          float64                 `json:"interestIncome,omitempty"`
	ForeignIncome           float64                 `json:"foreignIncome,omitempty"`
	CapitalAllowancesAmount float64                 `json:"capitalAllowancesAmount,omitempty"`
	CapitalAllowancesMethod CapitalAllowancesMethod `json:"capitalAllowancesMethod,omitempty"`
	LossCarryForwardAmount  float64                 `json:"lossCarryForwardAmount,omitempty"`

	ReportType ReportType `json:"reportType"`
}

// Normalize returns a copy with defaults applied to empty enum fields.
func (in AssessmentInput) Normalize() AssessmentInput {
	if in.Industry == "" {
		in.Industry = DefaultIndustry
	}
	if in.Method == "" {
		in.Method = MethodActual
	}
	if in.ReportType == "" {
		in.ReportType = ReportBasic
	}
	return in
}

// Profit is turnover less total expenses. It may be negative.
func (in AssessmentInput) Profit() float64 {
	return in.Turnover - in.TotalExpenses
}

// PaymentStatus tracks whether the paid report has been purchased.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// Assessment is a persisted submission with its canonical result.
// Result is written once and never recomputed.
type Assessment struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Input         AssessmentInput `json:"input"`
	Result        *ScoreResult    `json:"result"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// AssessmentRequest is the API request payload for a new assessment.
type AssessmentRequest struct {
	Email string `json:"email"`
	AssessmentInput
}

// AssessmentSummary is the free-tier view of a persisted assessment.
type AssessmentSummary struct {
	ID             string        `json:"id"`
	TaxYear        TaxYear       `json:"taxYear"`
	Industry       string        `json:"industry"`
	IndustryName   string        `json:"industryName"`
	Score          int           `json:"score"`
	Band           Band          `json:"band"`
	IndicatorCount int           `json:"indicatorCount"`
	NoteCount      int           `json:"noteCount"`
	TopDrivers     []string      `json:"topDrivers"`
	ReportType     ReportType    `json:"reportType"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	RulesetVersion string        `json:"rulesetVersion"`
	Warnings       []Warning     `json:"warnings,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// SummaryTopDrivers is how many driver names the free summary shows.
const SummaryTopDrivers = 3

// ToSummary converts an Assessment to its free-tier summary.
func (a *Assessment) ToSummary() *AssessmentSummary {
	s := &AssessmentSummary{
		ID:            a.ID,
		TaxYear:       a.Input.TaxYear,
		Industry:      a.Input.Industry,
		ReportType:    a.Input.ReportType,
		PaymentStatus: a.PaymentStatus,
		CreatedAt:     a.CreatedAt,
	}
	if a.Result == nil {
		return s
	}

	s.IndustryName = a.Result.IndustryName
	s.Score = a.Result.Score
	s.Band = a.Result.Band
	s.IndicatorCount = len(a.Result.TriggeredIndicators)
	s.NoteCount = len(a.Result.ContextualNotes)
	s.RulesetVersion = a.Result.RulesetVersion
	s.Warnings = a.Result.Warnings
	for _, d := range a.Result.TopDrivers(SummaryTopDrivers) {
		s.TopDrivers = append(s.TopDrivers, d.Name)
	}
	return s
}
