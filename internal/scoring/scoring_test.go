package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/sinag-sub010/internal/calculation"
	"github.com/generyand/sinag-sub010/internal/mov"
)

const (
	formJSON = `{"fields": [
		{"field_id": "has_bdrrmc", "field_type": "radio_button", "label": "BDRRMC organized?", "required": true},
		{"field_id": "budget_pct", "field_type": "number_input", "label": "Percent of LDRRMF utilized", "required": true,
		 "conditional_logic": [{"field_id": "has_bdrrmc", "operator": "equals", "value": "yes"}]}
	]}`
	checklistJSON = `{"items": [
		{"id": "eo", "type": "checkbox", "label": "Executive order creating the BDRRMC", "required": true},
		{"id": "plan_date", "type": "date_input", "label": "Date plan approved", "required": true,
		 "max_date": "2024-03-31", "considered_status_enabled": true, "grace_period_days": 15}
	]}`
	calcJSON = `{"condition_groups": [{"operator": "AND", "rules": [
		{"rule_type": "MATCH_VALUE", "field_id": "has_bdrrmc", "expected_value": "yes"},
		{"rule_type": "PERCENTAGE_THRESHOLD", "field_id": "budget_pct", "operator": ">=", "threshold": 70},
		{"rule_type": "BBI_FUNCTIONALITY_CHECK", "bbi_id": "BDRRMC", "expected_status": "Functional"}
	]}]}`
)

func indicator(t *testing.T, calc string) Indicator {
	t.Helper()
	ind, err := ParseIndicator([]byte(formJSON), []byte(checklistJSON), []byte(calc))
	require.NoError(t, err)
	return ind
}

func TestScore(t *testing.T) {
	s := New(calculation.StaticBBIStatuses{"BDRRMC": "Functional"})
	ind := indicator(t, calcJSON)

	tests := []struct {
		name      string
		values    map[string]any
		completed bool
		calc      calculation.Status
		want      calculation.Status
	}{
		{"pass", map[string]any{"has_bdrrmc": "yes", "budget_pct": 80, "eo": true, "plan_date": "2024-03-01"}, true, calculation.StatusPass, calculation.StatusPass},
		{"considered date", map[string]any{"has_bdrrmc": "yes", "budget_pct": 80, "eo": true, "plan_date": "2024-04-10"}, true, calculation.StatusPass, calculation.StatusConsidered},
		{"calculation fails", map[string]any{"has_bdrrmc": "yes", "budget_pct": 50, "eo": true, "plan_date": "2024-03-01"}, true, calculation.StatusFail, calculation.StatusFail},
		{"mov fails", map[string]any{"has_bdrrmc": "yes", "budget_pct": 90, "eo": false, "plan_date": "2024-03-01"}, true, calculation.StatusPass, calculation.StatusFail},
		{"missing required field", map[string]any{"has_bdrrmc": "yes", "eo": true, "plan_date": "2024-03-01"}, false, calculation.StatusFail, ""},
		{"mov incomplete", map[string]any{"has_bdrrmc": "yes", "budget_pct": 80, "eo": true}, false, calculation.StatusPass, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Score(ind, tt.values)
			assert.Equal(t, tt.completed, res.IsCompleted)
			assert.Equal(t, tt.calc, res.CalculationStatus)
			assert.Equal(t, tt.want, res.Status)
		})
	}
}

func TestScore_HiddenAnswersIgnored(t *testing.T) {
	s := New(calculation.StaticBBIStatuses{"BDRRMC": "Functional"})
	ind := indicator(t, calcJSON)

	res := s.Score(ind, map[string]any{"has_bdrrmc": "no", "budget_pct": 95, "eo": true, "plan_date": "2024-03-01"})

	assert.Equal(t, []string{"has_bdrrmc"}, res.VisibleFields)
	assert.Empty(t, res.MissingRequired)
	assert.Equal(t, calculation.StatusFail, res.CalculationStatus)
}

func TestScore_WithoutCalculationUsesMOV(t *testing.T) {
	s := New(nil)
	ind := indicator(t, "")
	require.Nil(t, ind.Calculation)

	res := s.Score(ind, map[string]any{"has_bdrrmc": "no", "eo": true, "plan_date": "2024-04-01"})
	assert.Empty(t, res.CalculationStatus)
	assert.Equal(t, mov.StatusConsidered, res.MOV.Status)
	assert.Equal(t, calculation.StatusConsidered, res.Status)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, calculation.StatusFail, Combine(calculation.StatusFail, mov.StatusPassed))
	assert.Equal(t, calculation.StatusFail, Combine(calculation.StatusPass, mov.StatusFailed))
	assert.Equal(t, calculation.StatusConsidered, Combine(calculation.StatusPass, mov.StatusConsidered))
	assert.Equal(t, calculation.StatusConsidered, Combine(calculation.StatusConsidered, mov.StatusPassed))
	assert.Equal(t, calculation.StatusPass, Combine("", mov.StatusPassed))
	assert.Equal(t, calculation.StatusPass, Combine(calculation.StatusPass, mov.StatusSkipped))
}

func TestParseIndicator_Errors(t *testing.T) {
	_, err := ParseIndicator([]byte(`{"fields": 1}`), nil, nil)
	assert.ErrorContains(t, err, "form_schema")

	_, err = ParseIndicator(nil, []byte(`[`), nil)
	assert.ErrorContains(t, err, "mov_checklist")

	_, err = ParseIndicator(nil, nil, []byte(`{"condition_groups": 5}`))
	assert.ErrorContains(t, err, "calculation_schema")
}
