package domain

import "fmt"

// Weight is the severity class of an indicator.
type Weight string

const (
	WeightLow    Weight = "low"
	WeightMedium Weight = "medium"
	WeightHigh   Weight = "high"
)

// weightPoints is the only place weights map to points.
var weightPoints = map[Weight]int{
	WeightLow:    5,
	WeightMedium: 10,
	WeightHigh:   15,
}

// Points returns the fixed score contribution for w, or 0 if w is unknown.
func (w Weight) Points() int {
	return weightPoints[w]
}

// Valid reports whether w is one of the known weights.
func (w Weight) Valid() bool {
	_, ok := weightPoints[w]
	return ok
}

// ParseWeight converts a raw string to a Weight.
func ParseWeight(s string) (Weight, error) {
	w := Weight(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown weight %q", s)
	}
	return w, nil
}

// Indicator is a scoring rule. Condition is a CEL expression that must
// evaluate to bool.
type Indicator struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	Weight            Weight `json:"weight" yaml:"weight"`
	Condition         string `json:"condition" yaml:"condition"`
	Explanation       string `json:"explanation" yaml:"explanation"`
	HMRCContext       string `json:"hmrcContext" yaml:"hmrc_context"`
	DocumentationTips string `json:"documentationTips" yaml:"documentation_tips"`
}

// NoteRule produces a contextual note. It never adds points.
type NoteRule struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	Condition         string `json:"condition" yaml:"condition"`
	Explanation       string `json:"explanation" yaml:"explanation"`
	HMRCContext       string `json:"hmrcContext" yaml:"hmrc_context"`
	DocumentationTips string `json:"documentationTips" yaml:"documentation_tips"`
}

// TriggeredIndicator is an indicator whose condition held, with its points.
type TriggeredIndicator struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Weight            Weight `json:"weight"`
	Points            int    `json:"points"`
	Explanation       string `json:"explanation"`
	HMRCContext       string `json:"hmrcContext"`
	DocumentationTips string `json:"documentationTips"`
}

// Trigger builds the TriggeredIndicator for ind.
func (ind *Indicator) Trigger() TriggeredIndicator {
	return TriggeredIndicator{
		ID:                ind.ID,
		Name:              ind.Name,
		Weight:            ind.Weight,
		Points:            ind.Weight.Points(),
		Explanation:       ind.Explanation,
		HMRCContext:       ind.HMRCContext,
		DocumentationTips: ind.DocumentationTips,
	}
}

// ContextualNote is a non-scoring explanation attached to a result.
type ContextualNote struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Explanation       string `json:"explanation"`
	HMRCContext       string `json:"hmrcContext"`
	DocumentationTips string `json:"documentationTips"`
}

// Note builds the ContextualNote for n.
func (n *NoteRule) Note() ContextualNote {
	return ContextualNote{
		ID:                n.ID,
		Name:              n.Name,
		Explanation:       n.Explanation,
		HMRCContext:       n.HMRCContext,
		DocumentationTips: n.DocumentationTips,
	}
}
