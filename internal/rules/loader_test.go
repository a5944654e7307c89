package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/redflag/internal/domain"
)

const smallRuleset = `
version: "test-1"
default_industry: other
mileage:
  first_rate: 0.45
  first_band_miles: 10000
  after_rate: 0.25
round_figure_unit: 1000
thresholds:
  max_expense_ratio: 0.5
indicators:
  - id: expenses
    name: Expenses
    weight: high
    condition: expense_ratio > max_expense_ratio
    explanation: Expenses are high.
notes:
  - id: margin
    name: Margin
    condition: profit_ratio > 0.9
industries:
  - id: other
    name: Other
  - id: cleaning
    name: Cleaning
    thresholds:
      max_expense_ratio: 0.9
`

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(smallRuleset))
	require.NoError(t, err)

	assert.Equal(t, "test-1", rs.Version)
	assert.Equal(t, 1000.0, rs.RoundFigureUnit)
	require.Len(t, rs.Indicators, 1)
	assert.Equal(t, domain.WeightHigh, rs.Indicators[0].Weight)

	e, err := NewEvaluator(rs)
	require.NoError(t, err)

	in := domain.AssessmentInput{Turnover: 1000, TotalExpenses: 600}

	in.Industry = "other"
	out, err := e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.Equal(t, 15, out.Points())

	in.Industry = "cleaning"
	out, err = e.Evaluate(in, simpleMetrics(in))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Points())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("versoin: \"1\"\n"))
	require.Error(t, err)
}

func TestParseRejectsInvalidRuleset(t *testing.T) {
	_, err := Parse([]byte(`
version: "x"
default_industry: other
indicators:
  - id: a
    name: A
    weight: severe
    condition: "true"
industries:
  - id: other
    name: Other
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown weight")
}

func TestLoad(t *testing.T) {
	t.Run("empty path is built in", func(t *testing.T) {
		rs, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultVersion, rs.Version)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		require.NoError(t, os.WriteFile(path, []byte(smallRuleset), 0o644))

		rs, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "test-1", rs.Version)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestMarshalDefaultRulesetScoresIdentically(t *testing.T) {
	data, err := Marshal(DefaultRuleset())
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	builtin := newDefaultEvaluator(t)
	fromFile, err := NewEvaluator(parsed)
	require.NoError(t, err)

	inputs := []domain.AssessmentInput{
		{Industry: "other", Turnover: 30000, TotalExpenses: 24000, MotorCosts: 8000},
		{Industry: "phv_taxi", Turnover: 40000, TotalExpenses: 12000, MotorCosts: 12000},
		{Industry: "retail", Turnover: 100000, TotalExpenses: 75000, LossLastYear: true},
		{Industry: "consultant_it", Turnover: 90000, TotalExpenses: 5000, HasForeignIncome: true},
	}

	for _, in := range inputs {
		want, err := builtin.Evaluate(in, simpleMetrics(in))
		require.NoError(t, err)
		got, err := fromFile.Evaluate(in, simpleMetrics(in))
		require.NoError(t, err)

		assert.Equal(t, want.Triggered, got.Triggered, in.Industry)
		assert.Equal(t, want.Notes, got.Notes, in.Industry)
	}
}
