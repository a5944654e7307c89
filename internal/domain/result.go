package domain

import (
	"sort"
)

// Band is the risk classification of a score.
type Band string

const (
	BandLow      Band = "LOW"
	BandModerate Band = "MODERATE"
	BandHigh     Band = "HIGH"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Warning is a non-fatal condition observed while scoring.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarningUnknownIndustry marks a fallback to the default industry profile.
const WarningUnknownIndustry = "unknown_industry"

// ScoreResult is the deterministic output of one evaluation.
// It carries no timestamps or identifiers so repeated evaluations of the
// same input compare equal.
type ScoreResult struct {
	Score               int                  `json:"score"`
	Band                Band                 `json:"band"`
	TriggeredIndicators []TriggeredIndicator `json:"triggeredIndicators"`
	ContextualNotes     []ContextualNote     `json:"contextualNotes"`
	DerivedMetrics      DerivedMetrics       `json:"derivedMetrics"`
	Industry            string               `json:"industry"`
	IndustryName        string               `json:"industryName"`
	RulesetVersion      string               `json:"rulesetVersion"`
	Warnings            []Warning            `json:"warnings,omitempty"`
}

// TopDrivers returns up to n triggered indicators ordered by points,
// highest first. Ties keep declaration order. n <= 0 returns all.
func (r *ScoreResult) TopDrivers(n int) []TriggeredIndicator {
	drivers := make([]TriggeredIndicator, len(r.TriggeredIndicators))
	copy(drivers, r.TriggeredIndicators)
	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].Points > drivers[j].Points
	})
	if n > 0 && len(drivers) > n {
		drivers = drivers[:n]
	}
	return drivers
}

// HasWarning reports whether the result carries a warning with code.
func (r *ScoreResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// SimulationOverrides names the fields a what-if run may change.
// Nil fields keep the baseline value.
type SimulationOverrides struct {
	TotalExpenses     *float64 `json:"totalExpenses,omitempty"`
	MotorCosts        *float64 `json:"motorCosts,omitempty"`
	MileageClaimed    *int     `json:"mileageClaimed,omitempty"`
	LossThisYear      *bool    `json:"lossThisYear,omitempty"`
	HomeOfficeAmount  *float64 `json:"homeOfficeAmount,omitempty"`
	TravelSubsistence *float64 `json:"travelSubsistence,omitempty"`
	Method            *Method  `json:"method,omitempty"`
}

// Apply returns a copy of in with the non-nil overrides set.
func (o SimulationOverrides) Apply(in AssessmentInput) AssessmentInput {
	if o.TotalExpenses != nil {
		in.TotalExpenses = *o.TotalExpenses
	}
	if o.MotorCosts != nil {
		in.MotorCosts = *o.MotorCosts
	}
	if o.MileageClaimed != nil {
		in.MileageClaimed = *o.MileageClaimed
	}
	if o.LossThisYear != nil {
		in.LossThisYear = *o.LossThisYear
	}
	if o.HomeOfficeAmount != nil {
		in.HomeOfficeAmount = *o.HomeOfficeAmount
	}
	if o.TravelSubsistence != nil {
		in.TravelSubsistence = *o.TravelSubsistence
	}
	if o.Method != nil {
		in.Method = *o.Method
	}
	return in
}

// SimulationResult pairs a baseline with an ephemeral what-if result.
type SimulationResult struct {
	Baseline    *ScoreResult        `json:"baseline"`
	Simulated   *ScoreResult        `json:"simulated"`
	ScoreChange int                 `json:"scoreChange"`
	BandChanged bool                `json:"bandChanged"`
	Overrides   SimulationOverrides `json:"overrides"`
}

// SimulationRequest is the API payload for an ad hoc simulation.
type SimulationRequest struct {
	Baseline  AssessmentInput     `json:"baseline"`
	Overrides SimulationOverrides `json:"overrides"`
}
