// Package report turns persisted assessments into paid report documents.
// Reports read the stored result only; they never rescore.
package report

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/redflag/internal/domain"
)

// ErrNoResult is returned for an assessment without a stored result.
var ErrNoResult = errors.New("assessment has no stored result")

// TopDriverCount is the number of drivers summarised at the top of a report.
const TopDriverCount = 3

// Title heads every report.
const Title = "Self Assessment Risk Report"

// Disclaimer closes every report.
const Disclaimer = "This report is an automated risk indicator based on the figures you entered " +
	"and published HMRC compliance patterns. It is not tax advice and does not submit or amend " +
	"a tax return. Consult a qualified tax adviser about your own affairs."

var bandSummaries = map[domain.Band]string{
	domain.BandLow:      "Your return shows few of the patterns HMRC compliance checks look for.",
	domain.BandModerate: "Some figures stand out against typical returns. Keep records that support them.",
	domain.BandHigh:     "Several figures match patterns HMRC commonly enquires into. Review them before filing.",
}

// Build renders the report document for a. The report type comes from the
// submitted input; v2_pro adds HMRC context and documentation tips.
func Build(a *domain.Assessment) (*domain.ReportDocument, error) {
	if a == nil || a.Result == nil {
		return nil, ErrNoResult
	}

	res := a.Result
	pro := a.Input.ReportType == domain.ReportPro

	doc := &domain.ReportDocument{
		Title:          Title,
		TaxYear:        a.Input.TaxYear,
		Industry:       industryLabel(res),
		Score:          res.Score,
		Band:           res.Band,
		BandSummary:    bandSummaries[res.Band],
		RulesetVersion: res.RulesetVersion,
		Figures:        figures(a.Input, res.DerivedMetrics),
		TopDrivers:     indicators(res.TopDrivers(TopDriverCount), pro),
		Indicators:     indicators(res.TriggeredIndicators, pro),
		Notes:          notes(res.ContextualNotes, pro),
		Disclaimer:     Disclaimer,
	}
	return doc, nil
}

func industryLabel(res *domain.ScoreResult) string {
	if res.IndustryName != "" {
		return res.IndustryName
	}
	return res.Industry
}

func figures(in domain.AssessmentInput, m domain.DerivedMetrics) []domain.ReportFigure {
	ratio := func(r float64) string {
		if m.TurnoverUndefined {
			return "n/a"
		}
		return Percent(r)
	}

	out := []domain.ReportFigure{
		{Label: "Turnover", Value: Money(in.Turnover)},
		{Label: "Total expenses", Value: Money(in.TotalExpenses)},
		{Label: "Profit", Value: Money(m.Profit)},
		{Label: "Profit margin", Value: ratio(m.ProfitRatio)},
		{Label: "Expenses to turnover", Value: ratio(m.ExpenseRatio)},
	}
	if in.MotorCosts > 0 {
		out = append(out,
			domain.ReportFigure{Label: "Motor costs", Value: Money(in.MotorCosts)},
			domain.ReportFigure{Label: "Motor costs to turnover", Value: ratio(m.MotorRatio)},
		)
	}
	if in.MileageClaimed > 0 {
		out = append(out,
			domain.ReportFigure{Label: "Business mileage", Value: Miles(in.MileageClaimed)},
			domain.ReportFigure{Label: "Mileage allowance value", Value: Money(m.MileageValue)},
		)
	}
	if in.HomeOfficeAmount > 0 {
		out = append(out, domain.ReportFigure{Label: "Use of home to turnover", Value: ratio(m.HomeOfficeRatio)})
	}
	if in.TravelSubsistence > 0 {
		out = append(out, domain.ReportFigure{Label: "Travel and subsistence to turnover", Value: ratio(m.TravelRatio)})
	}
	if m.OtherIncomeTotal > 0 {
		out = append(out, domain.ReportFigure{Label: "Other UK income", Value: Money(m.OtherIncomeTotal)})
	}
	return out
}

func indicators(src []domain.TriggeredIndicator, pro bool) []domain.ReportIndicator {
	out := make([]domain.ReportIndicator, 0, len(src))
	for _, ind := range src {
		ri := domain.ReportIndicator{
			ID:          ind.ID,
			Name:        ind.Name,
			Points:      ind.Points,
			Explanation: ind.Explanation,
		}
		if pro {
			ri.HMRCContext = ind.HMRCContext
			ri.DocumentationTips = ind.DocumentationTips
		}
		out = append(out, ri)
	}
	return out
}

func notes(src []domain.ContextualNote, pro bool) []domain.ContextualNote {
	out := make([]domain.ContextualNote, 0, len(src))
	for _, n := range src {
		if !pro {
			n.HMRCContext = ""
			n.DocumentationTips = ""
		}
		out = append(out, n)
	}
	return out
}

// Filename returns the download name of a's report.
func Filename(a *domain.Assessment) string {
	return fmt.Sprintf("redflag_report_%s.json", a.ID)
}
