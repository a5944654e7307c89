package domain

import "time"

// Report is a generated paid report, stored per assessment.
type Report struct {
	AssessmentID string         `json:"assessmentId"`
	ReportType   ReportType     `json:"reportType"`
	Document     ReportDocument `json:"document"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}

// ReportDocument is the renderable content of a report. It is built from
// the persisted ScoreResult only.
type ReportDocument struct {
	Title          string            `json:"title"`
	TaxYear        TaxYear           `json:"taxYear"`
	Industry       string            `json:"industry"`
	Score          int               `json:"score"`
	Band           Band              `json:"band"`
	BandSummary    string            `json:"bandSummary"`
	RulesetVersion string            `json:"rulesetVersion"`
	Figures        []ReportFigure    `json:"figures"`
	TopDrivers     []ReportIndicator `json:"topDrivers"`
	Indicators     []ReportIndicator `json:"indicators"`
	Notes          []ContextualNote  `json:"notes"`
	Disclaimer     string            `json:"disclaimer"`
}

// ReportFigure is one formatted line of the figures table.
type ReportFigure struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReportIndicator is a triggered indicator as shown in a report.
// HMRCContext and DocumentationTips are only filled for the pro report.
type ReportIndicator struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Points            int    `json:"points"`
	Explanation       string `json:"explanation"`
	HMRCContext       string `json:"hmrcContext,omitempty"`
	DocumentationTips string `json:"documentationTips,omitempty"`
}
