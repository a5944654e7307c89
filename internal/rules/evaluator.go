package rules

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/redflag/internal/domain"
)

// basePrefix names the ruleset-level value of a threshold, before any
// industry override. Industry conditions use it to refer to the general
// limit, e.g. base_max_motor_ratio.
const basePrefix = "base_"

// inputVariables are the CEL variables bound from the input and its metrics.
// Thresholds are declared alongside them as double variables, each twice:
// the effective value under its own name and the ruleset value under
// basePrefix.
var inputVariables = map[string]*cel.Type{
	// Raw figures
	"turnover":           cel.DoubleType,
	"total_expenses":     cel.DoubleType,
	"motor_costs":        cel.DoubleType,
	"home_office_amount": cel.DoubleType,
	"phone_internet":     cel.DoubleType,
	"travel_subsistence": cel.DoubleType,
	"marketing":          cel.DoubleType,
	"mileage_claimed":    cel.DoubleType,
	"method":             cel.StringType,
	"industry":           cel.StringType,
	"tax_year":           cel.StringType,

	// Flags
	"loss_this_year":         cel.BoolType,
	"loss_last_year":         cel.BoolType,
	"has_other_income":       cel.BoolType,
	"has_foreign_income":     cel.BoolType,
	"has_capital_allowances": cel.BoolType,
	"has_loss_carry_forward": cel.BoolType,

	// Income breakdown
	"employment_income":         cel.DoubleType,
	"rental_income":             cel.DoubleType,
	"dividend_income":           cel.DoubleType,
	"interest_income":           cel.DoubleType,
	"foreign_income":            cel.DoubleType,
	"capital_allowances_amount": cel.DoubleType,
	"capital_allowances_method": cel.StringType,
	"loss_carry_forward_amount": cel.DoubleType,

	// Derived metrics
	"profit":              cel.DoubleType,
	"expense_ratio":       cel.DoubleType,
	"motor_ratio":         cel.DoubleType,
	"profit_ratio":        cel.DoubleType,
	"home_office_ratio":   cel.DoubleType,
	"travel_ratio":        cel.DoubleType,
	"mileage_value":       cel.DoubleType,
	"mileage_value_ratio": cel.DoubleType,
	"other_income_total":  cel.DoubleType,
	"rounded_figures":     cel.DoubleType,
	"turnover_undefined":  cel.BoolType,
}

// Outcome is the result of running the rule table against one input.
type Outcome struct {
	Triggered []domain.TriggeredIndicator
	Notes     []domain.ContextualNote
	Profile   domain.IndustryProfile
	Fallback  bool // true when the requested industry was unknown
}

// Points returns the unclamped sum of triggered indicator points.
func (o *Outcome) Points() int {
	total := 0
	for _, t := range o.Triggered {
		total += t.Points
	}
	return total
}

// Evaluator applies a compiled ruleset. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	ruleset        *Ruleset
	indicators     []compiledIndicator
	notes          []compiledNote
	profiles       map[string]*compiledProfile
	defaultProfile *compiledProfile
}

type compiledIndicator struct {
	def     domain.Indicator
	program cel.Program
}

type compiledNote struct {
	def     domain.NoteRule
	program cel.Program
}

type compiledException struct {
	def        domain.IndustryException
	suppresses map[string]bool
	program    cel.Program
}

type compiledProfile struct {
	profile    domain.IndustryProfile
	thresholds map[string]float64
	exceptions []compiledException
}

// NewEvaluator validates and compiles every condition in rs.
// The ruleset is copied; later changes to rs have no effect.
func NewEvaluator(rs *Ruleset) (*Evaluator, error) {
	if rs == nil {
		return nil, fmt.Errorf("ruleset is required")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	rs = rs.Clone()

	env, err := newEnv(rs.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Evaluator{
		ruleset:  rs,
		profiles: make(map[string]*compiledProfile, len(rs.Industries)),
	}

	for _, ind := range rs.Indicators {
		prg, err := compileCondition(env, ind.ID, ind.Condition)
		if err != nil {
			return nil, err
		}
		e.indicators = append(e.indicators, compiledIndicator{def: ind, program: prg})
	}

	for _, n := range rs.Notes {
		prg, err := compileCondition(env, n.ID, n.Condition)
		if err != nil {
			return nil, err
		}
		e.notes = append(e.notes, compiledNote{def: n, program: prg})
	}

	for _, p := range rs.Industries {
		cp := &compiledProfile{
			profile:    p,
			thresholds: rs.ThresholdsFor(p),
		}
		for _, ex := range p.Exceptions {
			prg, err := compileCondition(env, p.ID+"/"+ex.ID, ex.Condition)
			if err != nil {
				return nil, err
			}
			suppresses := make(map[string]bool, len(ex.Suppresses))
			for _, id := range ex.Suppresses {
				suppresses[id] = true
			}
			cp.exceptions = append(cp.exceptions, compiledException{def: ex, suppresses: suppresses, program: prg})
		}
		e.profiles[p.ID] = cp
	}
	e.defaultProfile = e.profiles[rs.DefaultIndustry]

	return e, nil
}

func newEnv(thresholds map[string]float64) (*cel.Env, error) {
	names := make([]string, 0, len(inputVariables)+len(thresholds))
	for name := range inputVariables {
		names = append(names, name)
	}
	for name := range thresholds {
		names = append(names, name, basePrefix+name)
	}
	sort.Strings(names)

	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	for _, name := range names {
		t, ok := inputVariables[name]
		if !ok {
			t = cel.DoubleType
		}
		opts = append(opts, cel.Variable(name, t))
	}
	return cel.NewEnv(opts...)
}

func compileCondition(env *cel.Env, id, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile condition %s: %w", id, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition %s: expression must return bool, got %s", id, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for condition %s: %w", id, err)
	}
	return prg, nil
}

// Ruleset returns a copy of the compiled ruleset.
func (e *Evaluator) Ruleset() *Ruleset {
	return e.ruleset.Clone()
}

// Version returns the ruleset version.
func (e *Evaluator) Version() string {
	return e.ruleset.Version
}

// Mileage returns the mileage allowance rates.
func (e *Evaluator) Mileage() domain.MileageRates {
	return e.ruleset.Mileage
}

// RoundFigureUnit returns the unit a figure must be a multiple of to count as rounded.
func (e *Evaluator) RoundFigureUnit() float64 {
	return e.ruleset.RoundFigureUnit
}

// ResolveIndustryProfile returns the profile for id. Unknown or empty ids
// resolve to the default profile with found == false. It never fails.
func (e *Evaluator) ResolveIndustryProfile(id string) (profile domain.IndustryProfile, found bool) {
	cp, found := e.resolve(id)
	return cloneProfile(cp.profile), found
}

// EffectiveThresholds returns the merged thresholds used for industry id.
func (e *Evaluator) EffectiveThresholds(id string) map[string]float64 {
	cp, _ := e.resolve(id)
	return cloneThresholds(cp.thresholds)
}

func (e *Evaluator) resolve(id string) (*compiledProfile, bool) {
	if cp, ok := e.profiles[id]; ok {
		return cp, true
	}
	return e.defaultProfile, false
}

// Evaluate runs the ruleset against in and m.
//
// Industry exceptions are resolved first into a suppression set, then
// indicators run in declaration order skipping suppressed ids, then the
// generic notes run, also skipping suppressed ids. Exception notes precede
// generic notes in the output.
// Any evaluation error aborts the whole run.
func (e *Evaluator) Evaluate(in domain.AssessmentInput, m domain.DerivedMetrics) (*Outcome, error) {
	cp, found := e.resolve(in.Industry)
	activation := buildActivation(in, m, e.ruleset.Thresholds, cp.thresholds)

	out := &Outcome{
		Triggered: []domain.TriggeredIndicator{},
		Notes:     []domain.ContextualNote{},
		Profile:   cloneProfile(cp.profile),
		Fallback:  !found,
	}

	suppressed := make(map[string]bool)
	for _, ex := range cp.exceptions {
		hit, err := evalBool(ex.program, activation)
		if err != nil {
			return nil, fmt.Errorf("industry %s exception %s: %w", cp.profile.ID, ex.def.ID, err)
		}
		if !hit {
			continue
		}
		for id := range ex.suppresses {
			suppressed[id] = true
		}
		out.Notes = append(out.Notes, ex.def.Note.Note())
	}

	for i := range e.indicators {
		ind := &e.indicators[i]
		if suppressed[ind.def.ID] {
			continue
		}
		hit, err := evalBool(ind.program, activation)
		if err != nil {
			return nil, fmt.Errorf("indicator %s: %w", ind.def.ID, err)
		}
		if hit {
			out.Triggered = append(out.Triggered, ind.def.Trigger())
		}
	}

	for i := range e.notes {
		n := &e.notes[i]
		if suppressed[n.def.ID] {
			continue
		}
		hit, err := evalBool(n.program, activation)
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", n.def.ID, err)
		}
		if hit {
			out.Notes = append(out.Notes, n.def.Note())
		}
	}

	return out, nil
}

func evalBool(prg cel.Program, activation map[string]any) (bool, error) {
	val, _, err := prg.Eval(activation)
	if err != nil {
		return false, err
	}
	b, ok := val.(types.Bool)
	if !ok {
		return false, fmt.Errorf("condition returned %v, want bool", val.Type())
	}
	return bool(b), nil
}

func buildActivation(in domain.AssessmentInput, m domain.DerivedMetrics, base, thresholds map[string]float64) map[string]any {
	activation := map[string]any{
		"turnover":           in.Turnover,
		"total_expenses":     in.TotalExpenses,
		"motor_costs":        in.MotorCosts,
		"home_office_amount": in.HomeOfficeAmount,
		"phone_internet":     in.PhoneInternet,
		"travel_subsistence": in.TravelSubsistence,
		"marketing":          in.Marketing,
		"mileage_claimed":    float64(in.MileageClaimed),
		"method":             string(in.Method),
		"industry":           in.Industry,
		"tax_year":           string(in.TaxYear),

		"loss_this_year":         in.LossThisYear,
		"loss_last_year":         in.LossLastYear,
		"has_other_income":       in.HasOtherIncome,
		"has_foreign_income":     in.HasForeignIncome,
		"has_capital_allowances": in.HasCapitalAllowances,
		"has_loss_carry_forward": in.HasLossCarryForward,

		"employment_income":         in.EmploymentIncome,
		"rental_income":             in.RentalIncome,
		"dividend_income":           in.DividendIncome,
		"interest_income":           in.InterestIncome,
		"foreign_income":            in.ForeignIncome,
		"capital_allowances_amount": in.CapitalAllowancesAmount,
		"capital_allowances_method": string(in.CapitalAllowancesMethod),
		"loss_carry_forward_amount": in.LossCarryForwardAmount,

		"profit":              m.Profit,
		"expense_ratio":       m.ExpenseRatio,
		"motor_ratio":         m.MotorRatio,
		"profit_ratio":        m.ProfitRatio,
		"home_office_ratio":   m.HomeOfficeRatio,
		"travel_ratio":        m.TravelRatio,
		"mileage_value":       m.MileageValue,
		"mileage_value_ratio": m.MileageValueRatio,
		"other_income_total":  m.OtherIncomeTotal,
		"rounded_figures":     float64(m.RoundedFigures),
		"turnover_undefined":  m.TurnoverUndefined,
	}
	for k, v := range base {
		activation[basePrefix+k] = v
	}
	for k, v := range thresholds {
		activation[k] = v
	}
	return activation
}
