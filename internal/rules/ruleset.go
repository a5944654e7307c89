// Package rules provides the versioned rule table, industry profiles and the
// CEL-Go based rule evaluator.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/redflag/internal/domain"
)

// Ruleset is the complete scoring configuration for one deployment.
// It is loaded once at startup and treated as read-only afterwards.
type Ruleset struct {
	Version         string                   `json:"version" yaml:"version"`
	DefaultIndustry string                   `json:"defaultIndustry" yaml:"default_industry"`
	Mileage         domain.MileageRates      `json:"mileage" yaml:"mileage"`
	RoundFigureUnit float64                  `json:"roundFigureUnit" yaml:"round_figure_unit"`
	Thresholds      map[string]float64       `json:"thresholds" yaml:"thresholds"`
	Indicators      []domain.Indicator       `json:"indicators" yaml:"indicators"`
	Notes           []domain.NoteRule        `json:"notes" yaml:"notes"`
	Industries      []domain.IndustryProfile `json:"industries" yaml:"industries"`
}

// Validate reports every structural problem in the ruleset at once.
// Expression compilation is checked separately by NewEvaluator.
func (rs *Ruleset) Validate() error {
	var errs []error
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if rs.Version == "" {
		addf("version is required")
	}
	if rs.DefaultIndustry == "" {
		addf("default_industry is required")
	}
	if rs.Mileage.FirstRate < 0 || rs.Mileage.AfterRate < 0 || rs.Mileage.FirstBandMiles < 0 {
		addf("mileage rates must be non-negative")
	}
	if rs.RoundFigureUnit < 0 {
		addf("round_figure_unit must be non-negative")
	}
	if len(rs.Indicators) == 0 {
		addf("at least one indicator is required")
	}

	for key := range rs.Thresholds {
		if _, taken := inputVariables[key]; taken {
			addf("threshold %q shadows an input variable", key)
		}
		if strings.HasPrefix(key, basePrefix) {
			addf("threshold %q uses the reserved prefix %q", key, basePrefix)
		}
	}

	ids := make(map[string]bool)
	for i, ind := range rs.Indicators {
		if ind.ID == "" {
			addf("indicator %d: id is required", i)
			continue
		}
		if ids[ind.ID] {
			addf("indicator %s: duplicate id", ind.ID)
		}
		ids[ind.ID] = true
		if !ind.Weight.Valid() {
			addf("indicator %s: unknown weight %q", ind.ID, ind.Weight)
		}
		if ind.Condition == "" {
			addf("indicator %s: condition is required", ind.ID)
		}
	}

	for i, n := range rs.Notes {
		if n.ID == "" {
			addf("note %d: id is required", i)
			continue
		}
		if ids[n.ID] {
			addf("note %s: duplicate id", n.ID)
		}
		ids[n.ID] = true
		if n.Condition == "" {
			addf("note %s: condition is required", n.ID)
		}
	}

	profiles := make(map[string]bool)
	for i, p := range rs.Industries {
		if p.ID == "" {
			addf("industry %d: id is required", i)
			continue
		}
		if profiles[p.ID] {
			addf("industry %s: duplicate id", p.ID)
		}
		profiles[p.ID] = true

		for key := range p.Thresholds {
			if _, ok := rs.Thresholds[key]; !ok {
				addf("industry %s: unknown threshold %q", p.ID, key)
			}
		}
		for _, ex := range p.Exceptions {
			if ex.Condition == "" {
				addf("industry %s exception %s: condition is required", p.ID, ex.ID)
			}
			if ex.Note.ID == "" {
				addf("industry %s exception %s: note id is required", p.ID, ex.ID)
			}
			for _, s := range ex.Suppresses {
				if !ids[s] {
					addf("industry %s exception %s: suppresses unknown indicator or note %q", p.ID, ex.ID, s)
				}
			}
		}
	}
	if rs.DefaultIndustry != "" && !profiles[rs.DefaultIndustry] {
		addf("default industry %q has no profile", rs.DefaultIndustry)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid ruleset: %w", errors.Join(errs...))
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a ruleset in use.
func (rs *Ruleset) Clone() *Ruleset {
	c := *rs
	c.Thresholds = cloneThresholds(rs.Thresholds)
	c.Indicators = append([]domain.Indicator(nil), rs.Indicators...)
	c.Notes = append([]domain.NoteRule(nil), rs.Notes...)
	c.Industries = make([]domain.IndustryProfile, len(rs.Industries))
	for i, p := range rs.Industries {
		c.Industries[i] = cloneProfile(p)
	}
	return &c
}

// Industry returns the declared profile for id.
func (rs *Ruleset) Industry(id string) (domain.IndustryProfile, bool) {
	for _, p := range rs.Industries {
		if p.ID == id {
			return cloneProfile(p), true
		}
	}
	return domain.IndustryProfile{}, false
}

// ThresholdsFor returns the ruleset defaults with the profile's overrides applied.
func (rs *Ruleset) ThresholdsFor(p domain.IndustryProfile) map[string]float64 {
	merged := cloneThresholds(rs.Thresholds)
	for k, v := range p.Thresholds {
		merged[k] = v
	}
	return merged
}

func cloneThresholds(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneProfile(p domain.IndustryProfile) domain.IndustryProfile {
	c := p
	if p.Thresholds != nil {
		c.Thresholds = cloneThresholds(p.Thresholds)
	}
	c.Exceptions = make([]domain.IndustryException, len(p.Exceptions))
	for i, ex := range p.Exceptions {
		ex.Suppresses = append([]string(nil), ex.Suppresses...)
		c.Exceptions[i] = ex
	}
	return c
}
