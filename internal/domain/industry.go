package domain

// IndustryProfile adjusts thresholds and adds exceptions for one trade.
type IndustryProfile struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Thresholds replaces ruleset defaults by key.
	Thresholds map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds"`

	// Exceptions are resolved before any generic indicator.
	Exceptions []IndustryException `json:"exceptions,omitempty" yaml:"exceptions"`
}

// IndustryException emits a note when its condition holds and suppresses
// the generic indicators or notes named in Suppresses. Suppresses may be
// empty for a note-only rule.
type IndustryException struct {
	ID         string   `json:"id" yaml:"id"`
	Suppresses []string `json:"suppresses,omitempty" yaml:"suppresses"`
	Condition  string   `json:"condition" yaml:"condition"`
	Note       NoteRule `json:"note" yaml:"note"`
}

// IndustryInfo is the API listing view of a profile.
type IndustryInfo struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Thresholds  map[string]float64 `json:"thresholds"`
	Exceptions  []string           `json:"exceptions"`
	Fallback    bool               `json:"fallback,omitempty"`
}
