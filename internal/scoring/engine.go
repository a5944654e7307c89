// Package scoring composes derived metrics, rule evaluation and banding into
// the deterministic assessment score.
package scoring

import (
	"errors"
	"fmt"

	"github.com/opensource-finance/redflag/internal/domain"
	"github.com/opensource-finance/redflag/internal/rules"
)

// Engine scores assessment inputs against one immutable ruleset.
// It does no I/O and keeps no state between calls, so it is safe for
// concurrent use.
type Engine struct {
	evaluator *rules.Evaluator
	calc      *Calculator
}

// NewEngine compiles rs and returns an engine bound to it.
func NewEngine(rs *rules.Ruleset) (*Engine, error) {
	ev, err := rules.NewEvaluator(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluator: %w", err)
	}
	return &Engine{
		evaluator: ev,
		calc:      NewCalculator(ev.Mileage(), ev.RoundFigureUnit()),
	}, nil
}

// Evaluator returns the compiled rule evaluator.
func (e *Engine) Evaluator() *rules.Evaluator {
	return e.evaluator
}

// RulesetVersion returns the version stamped on every result.
func (e *Engine) RulesetVersion() string {
	return e.evaluator.Version()
}

// ResolveIndustryProfile returns the profile for id, falling back to the
// default profile. It never fails.
func (e *Engine) ResolveIndustryProfile(id string) (domain.IndustryProfile, bool) {
	return e.evaluator.ResolveIndustryProfile(id)
}

// Evaluate scores a submitted input.
//
// Malformed input returns a *domain.MalformedInputError and a declared loss
// with a positive profit returns a *domain.ConsistencyError. No partial
// result is returned alongside an error.
func (e *Engine) Evaluate(in domain.AssessmentInput) (*domain.ScoreResult, error) {
	norm := in.Normalize()
	if err := ValidateInput(norm); err != nil {
		return nil, err
	}
	if err := CheckConsistency(norm); err != nil {
		return nil, err
	}
	return e.score(in, norm)
}

// Simulate scores baseline and a copy of it with overrides applied.
// Neither run is subject to the consistency check, so what-if states such
// as a loss alongside a profit are scored normally.
func (e *Engine) Simulate(baseline domain.AssessmentInput, overrides domain.SimulationOverrides) (*domain.SimulationResult, error) {
	norm := baseline.Normalize()
	if err := ValidateInput(norm); err != nil {
		return nil, err
	}
	base, err := e.score(baseline, norm)
	if err != nil {
		return nil, err
	}
	return e.SimulateAgainst(baseline, base, overrides)
}

// SimulateAgainst runs a what-if on baseline but reports the change against
// an already computed result, normally the persisted canonical one.
func (e *Engine) SimulateAgainst(baseline domain.AssessmentInput, baseResult *domain.ScoreResult, overrides domain.SimulationOverrides) (*domain.SimulationResult, error) {
	if baseResult == nil {
		return nil, errors.New("baseline result is required")
	}
	if err := ValidateOverrides(overrides); err != nil {
		return nil, err
	}

	modified := overrides.Apply(baseline)
	norm := modified.Normalize()
	if err := ValidateInput(norm); err != nil {
		return nil, err
	}
	sim, err := e.score(modified, norm)
	if err != nil {
		return nil, err
	}

	return &domain.SimulationResult{
		Baseline:    baseResult,
		Simulated:   sim,
		ScoreChange: sim.Score - baseResult.Score,
		BandChanged: sim.Band != baseResult.Band,
		Overrides:   overrides,
	}, nil
}

// score runs metrics, rules and banding. raw is the input as submitted and
// is only consulted for the industry warning.
func (e *Engine) score(raw, norm domain.AssessmentInput) (*domain.ScoreResult, error) {
	metrics := e.calc.Compute(norm)

	out, err := e.evaluator.Evaluate(norm, metrics)
	if err != nil {
		return nil, fmt.Errorf("rule evaluation failed: %w", err)
	}

	score := Clamp(out.Points())
	result := &domain.ScoreResult{
		Score:               score,
		Band:                Classify(score),
		TriggeredIndicators: out.Triggered,
		ContextualNotes:     out.Notes,
		DerivedMetrics:      metrics,
		Industry:            out.Profile.ID,
		IndustryName:        out.Profile.Name,
		RulesetVersion:      e.evaluator.Version(),
	}

	switch {
	case raw.Industry == "":
		result.Warnings = append(result.Warnings, domain.Warning{
			Code:    domain.WarningUnknownIndustry,
			Message: fmt.Sprintf("no industry given, using %q", out.Profile.ID),
		})
	case out.Fallback:
		result.Warnings = append(result.Warnings, domain.Warning{
			Code:    domain.WarningUnknownIndustry,
			Message: fmt.Sprintf("unknown industry %q, using %q", raw.Industry, out.Profile.ID),
		})
	}

	return result, nil
}
