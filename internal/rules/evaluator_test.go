package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/redflag/internal/domain"
)

// simpleMetrics derives the turnover ratios used by most tests. With no
// turnover it follows the scoring calculator: a positive cost ratio is
// domain.UndefinedRatio and the profit ratio is its negation.
func simpleMetrics(in domain.AssessmentInput) domain.DerivedMetrics {
	m := domain.DerivedMetrics{
		Profit:            in.Turnover - in.TotalExpenses,
		TurnoverUndefined: in.Turnover <= 0,
	}
	ratio := func(num float64) float64 {
		switch {
		case in.Turnover > 0:
			return num / in.Turnover
		case num > 0:
			return domain.UndefinedRatio
		}
		return 0
	}
	m.ExpenseRatio = ratio(in.TotalExpenses)
	m.MotorRatio = ratio(in.MotorCosts)
	m.HomeOfficeRatio = ratio(in.HomeOfficeAmount)
	m.TravelRatio = ratio(in.TravelSubsistence)
	if m.TurnoverUndefined {
		m.ProfitRatio = -domain.UndefinedRatio
	} else {
		m.ProfitRatio = m.Profit / in.Turnover
	}
	return m
}

func newDefaultEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultRuleset())
	require.NoError(t, err)
	return e
}

func triggeredIDs(o *Outcome) []string {
	ids := make([]string, 0, len(o.Triggered))
	for _, t := range o.Triggered {
		ids = append(ids, t.ID)
	}
	return ids
}

func noteIDs(o *Outcome) []string {
	ids := make([]string, 0, len(o.Notes))
	for _, n := range o.Notes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestNewEvaluatorDefaultRuleset(t *testing.T) {
	e := newDefaultEvaluator(t)

	assert.Equal(t, DefaultVersion, e.Version())
	assert.Equal(t, 0.45, e.Mileage().FirstRate)
	assert.Equal(t, 500.0, e.RoundFigureUnit())
}

func TestNewEvaluatorNilRuleset(t *testing.T) {
	_, err := NewEvaluator(nil)
	require.Error(t, err)
}

func TestEvaluateExpenseAndMotor(t *testing.T) {
	e := newDefaultEvaluator(t)

	in := domain.AssessmentInput{
		Industry:       "other",
		Turnover:       30000,
		TotalExpenses:  24000,
		MotorCosts:     8000,
		MileageClaimed: 12000,
		Method:         domain.MethodActual,
	}

	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)

	assert.Equal(t, []string{IndicatorHighExpenseRatio, IndicatorHighMotorCosts}, triggeredIDs(out))
	assert.Equal(t, 25, out.Points())
	assert.False(t, out.Fallback)
	assert.Equal(t, "other", out.Profile.ID)
}

func TestEvaluateDeclarationOrder(t *testing.T) {
	e := newDefaultEvaluator(t)

	in := domain.AssessmentInput{
		Industry:         "other",
		Turnover:         10000,
		TotalExpenses:    12000,
		MotorCosts:       3000,
		HomeOfficeAmount: 1000,
		LossThisYear:     true,
		LossLastYear:     true,
		HasForeignIncome: true,
		HasOtherIncome:   true,
	}

	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)

	assert.Equal(t, []string{
		IndicatorHighExpenseRatio,
		IndicatorHighMotorCosts,
		IndicatorHomeOffice,
		IndicatorConsecutiveLosses,
		IndicatorDeclaredLoss,
		IndicatorOtherIncome,
		IndicatorForeignIncome,
	}, triggeredIDs(out))
	assert.Equal(t, 15+10+5+15+10+5+10, out.Points())
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := newDefaultEvaluator(t)

	in := domain.AssessmentInput{
		Industry:          "phv_taxi",
		Turnover:          42000,
		TotalExpenses:     30000,
		MotorCosts:        15000,
		TravelSubsistence: 9000,
		MileageClaimed:    31000,
		Method:            domain.MethodMileage,
	}
	m := simpleMetrics(in)

	first, err := e.Evaluate(in, m)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := e.Evaluate(in, m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestIndustryExceptionSuppressesGenericIndicator(t *testing.T) {
	e := newDefaultEvaluator(t)

	base := domain.AssessmentInput{
		Turnover:      40000,
		TotalExpenses: 12000,
		MotorCosts:    12000,
		Method:        domain.MethodActual,
	}

	t.Run("other triggers high motor costs", func(t *testing.T) {
		in := base
		in.Industry = "other"

		out, err := e.Evaluate(in, simpleMetrics(in))
		require.NoError(t, err)

		assert.Contains(t, triggeredIDs(out), IndicatorHighMotorCosts)
		assert.NotContains(t, noteIDs(out), NotePHVMotorCosts)
		assert.Equal(t, domain.WeightMedium.Points(), out.Points())
	})

	t.Run("phv taxi gets a note instead", func(t *testing.T) {
		in := base
		in.Industry = "phv_taxi"

		out, err := e.Evaluate(in, simpleMetrics(in))
		require.NoError(t, err)

		assert.NotContains(t, triggeredIDs(out), IndicatorHighMotorCosts)
		assert.Equal(t, 0, out.Points())
		require.NotEmpty(t, out.Notes)
		assert.Equal(t, NotePHVMotorCosts, out.Notes[0].ID)
	})
}

func TestExceptionNotesPrecedeGenericNotes(t *testing.T) {
	e := newDefaultEvaluator(t)

	in := domain.AssessmentInput{
		Industry:      "phv_taxi",
		Turnover:      40000,
		TotalExpenses: 12000,
		MotorCosts:    12000,
	}

	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)

	// profit ratio 0.7 also fires the generic high margin note
	assert.Equal(t, []string{NotePHVMotorCosts, NoteHighProfitMargin}, noteIDs(out))
}

func TestIndustryExceptionSuppressesGenericNote(t *testing.T) {
	e := newDefaultEvaluator(t)

	// profit ratio 0.9 clears both the generic and the consultant margin
	in := domain.AssessmentInput{Industry: "consultant_it", Turnover: 100000, TotalExpenses: 10000}

	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.Equal(t, []string{NoteConsultantMargin}, noteIDs(out))

	in.Industry = "other"
	out, err = e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.Equal(t, []string{NoteHighProfitMargin}, noteIDs(out))
}

func TestIndustryNotesFollowRulesetThresholds(t *testing.T) {
	rs := DefaultRuleset()
	rs.Thresholds["max_motor_ratio"] = 0.25
	rs.Thresholds["max_expense_ratio"] = 0.80
	e, err := NewEvaluator(rs)
	require.NoError(t, err)

	tests := []struct {
		name     string
		in       domain.AssessmentInput
		note     string
		wantNote bool
	}{
		{
			name:     "courier motor under general limit",
			in:       domain.AssessmentInput{Industry: "delivery_courier", Turnover: 100000, TotalExpenses: 22000, MotorCosts: 22000},
			note:     NoteCourierMotor,
			wantNote: false,
		},
		{
			name:     "courier motor between limits",
			in:       domain.AssessmentInput{Industry: "delivery_courier", Turnover: 100000, TotalExpenses: 30000, MotorCosts: 30000},
			note:     NoteCourierMotor,
			wantNote: true,
		},
		{
			name:     "retail expenses under general limit",
			in:       domain.AssessmentInput{Industry: "retail", Turnover: 100000, TotalExpenses: 78000},
			note:     NoteRetailMargin,
			wantNote: false,
		},
		{
			name:     "retail expenses between limits",
			in:       domain.AssessmentInput{Industry: "retail", Turnover: 100000, TotalExpenses: 82000},
			note:     NoteRetailMargin,
			wantNote: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(tt.in, simpleMetrics(tt.in))
			require.NoError(t, err)
			if tt.wantNote {
				assert.Contains(t, noteIDs(out), tt.note)
			} else {
				assert.NotContains(t, noteIDs(out), tt.note)
			}
		})
	}
}

func TestEvaluateZeroTurnover(t *testing.T) {
	e := newDefaultEvaluator(t)

	in := domain.AssessmentInput{
		Industry:      "other",
		TotalExpenses: 5000,
		MotorCosts:    1000,
	}

	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)

	ids := triggeredIDs(out)
	assert.Contains(t, ids, IndicatorHighExpenseRatio)
	assert.Contains(t, ids, IndicatorHighMotorCosts)
	assert.Contains(t, ids, IndicatorDeclaredLoss)
	assert.NotContains(t, ids, IndicatorLowProfitMargin)
	assert.NotContains(t, ids, IndicatorHomeOffice)
	assert.NotContains(t, ids, IndicatorHighTravel)
	assert.NotContains(t, noteIDs(out), NoteHighProfitMargin)
}

func TestHighProfitMarginIsNoteOnly(t *testing.T) {
	e := newDefaultEvaluator(t)

	low := domain.AssessmentInput{Industry: "other", Turnover: 50000, TotalExpenses: 30000}
	high := domain.AssessmentInput{Industry: "other", Turnover: 50000, TotalExpenses: 5000}

	lowOut, err := e.Evaluate(low, simpleMetrics(low))
	require.NoError(t, err)
	highOut, err := e.Evaluate(high, simpleMetrics(high))
	require.NoError(t, err)

	assert.NotContains(t, noteIDs(lowOut), NoteHighProfitMargin)
	assert.Contains(t, noteIDs(highOut), NoteHighProfitMargin)
	assert.Equal(t, lowOut.Points(), highOut.Points())
}

func TestUnknownIndustryFallsBack(t *testing.T) {
	e := newDefaultEvaluator(t)

	for _, id := range []string{"", "astronaut", "PHV_TAXI"} {
		t.Run("id="+id, func(t *testing.T) {
			in := domain.AssessmentInput{Industry: id, Turnover: 1000, TotalExpenses: 100}

			out, err := e.Evaluate(in, simpleMetrics(in))
			require.NoError(t, err)

			assert.True(t, out.Fallback)
			assert.Equal(t, domain.DefaultIndustry, out.Profile.ID)
		})
	}
}

func TestResolveIndustryProfile(t *testing.T) {
	e := newDefaultEvaluator(t)

	p, found := e.ResolveIndustryProfile("construction_cis")
	assert.True(t, found)
	assert.Equal(t, "Construction / CIS", p.Name)

	p, found = e.ResolveIndustryProfile("unknown")
	assert.False(t, found)
	assert.Equal(t, domain.DefaultIndustry, p.ID)

	// Mutating the returned profile must not leak into the evaluator.
	p, _ = e.ResolveIndustryProfile("retail")
	p.Thresholds["max_expense_ratio"] = 0.01
	assert.Equal(t, 0.85, e.EffectiveThresholds("retail")["max_expense_ratio"])
}

func TestEffectiveThresholds(t *testing.T) {
	e := newDefaultEvaluator(t)

	retail := e.EffectiveThresholds("retail")
	assert.Equal(t, 0.85, retail["max_expense_ratio"])
	assert.Equal(t, 0.05, retail["min_profit_margin"])
	assert.Equal(t, 0.20, retail["max_motor_ratio"])

	other := e.EffectiveThresholds("nope")
	assert.Equal(t, 0.70, other["max_expense_ratio"])
}

func TestIndustryThresholdOverride(t *testing.T) {
	e := newDefaultEvaluator(t)

	// 75% expenses: high for most trades, normal for retail.
	in := domain.AssessmentInput{Turnover: 100000, TotalExpenses: 75000}

	in.Industry = "other"
	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.Contains(t, triggeredIDs(out), IndicatorHighExpenseRatio)

	in.Industry = "retail"
	out, err = e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.NotContains(t, triggeredIDs(out), IndicatorHighExpenseRatio)
	assert.Contains(t, noteIDs(out), NoteRetailMargin)
}

func TestEvaluatorCopiesRuleset(t *testing.T) {
	rs := DefaultRuleset()
	e, err := NewEvaluator(rs)
	require.NoError(t, err)

	rs.Thresholds["max_expense_ratio"] = 0.01
	rs.Indicators[0].Weight = domain.WeightHigh

	in := domain.AssessmentInput{Industry: "other", Turnover: 1000, TotalExpenses: 100}
	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.NotContains(t, triggeredIDs(out), IndicatorHighExpenseRatio)
	assert.Equal(t, 0.70, e.Ruleset().Thresholds["max_expense_ratio"])
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name      string
		condition string
	}{
		{"unknown variable", "expense_ratio > max_expnse_ratio"},
		{"non bool result", "expense_ratio * 2.0"},
		{"syntax error", "expense_ratio >"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := DefaultRuleset()
			rs.Indicators[0].Condition = tt.condition

			_, err := NewEvaluator(rs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), rs.Indicators[0].ID)
		})
	}
}
