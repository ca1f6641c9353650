package calculation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	statuses map[string]string
	calls    int
}

func (c *countingResolver) BBIStatus(id string) (string, bool) {
	c.calls++
	st, ok := c.statuses[id]
	return st, ok
}

const budgetSchema = `{
	"condition_groups": [
		{"operator": "AND", "rules": [
			{"rule_type": "PERCENTAGE_THRESHOLD", "field_id": "utilization", "operator": ">=", "threshold": 50},
			{"rule_type": "OR_ANY", "conditions": [
				{"rule_type": "MATCH_VALUE", "field_id": "posted", "expected_value": "yes"},
				{"rule_type": "COUNT_THRESHOLD", "field_id": "minutes", "operator": ">=", "threshold": 2}
			]}
		]},
		{"operator": "OR", "rules": [
			{"rule_type": "BBI_FUNCTIONALITY_CHECK", "bbi_id": "BDRRMC", "expected_status": "Functional"}
		]}
	],
	"output_status_on_fail": "FAIL"
}`

func TestParse_Schema(t *testing.T) {
	s, err := Parse([]byte(budgetSchema))
	require.NoError(t, err)
	require.Len(t, s.ConditionGroups, 2)

	first := s.ConditionGroups[0]
	require.Len(t, first.Rules, 2)
	assert.Equal(t, RulePercentageThreshold, first.Rules[0].Type())

	or, ok := first.Rules[1].(OrAny)
	require.True(t, ok)
	assert.Len(t, or.Conditions, 2)

	for _, empty := range []string{"", "  ", "null", "{}"} {
		s, err := Parse([]byte(empty))
		assert.NoError(t, err)
		assert.Nil(t, s)
	}
}

func TestEvaluator_Status(t *testing.T) {
	s, err := Parse([]byte(budgetSchema))
	require.NoError(t, err)
	ev := NewEvaluator(StaticBBIStatuses{"BDRRMC": "functional"})

	tests := []struct {
		name   string
		values map[string]any
		want   Status
	}{
		{"numeric percentage and match", map[string]any{"utilization": 72.5, "posted": "yes"}, StatusPass},
		{"checkbox list and count", map[string]any{"utilization": []any{true, true, false}, "minutes": []any{true, "x"}}, StatusPass},
		{"percentage too low", map[string]any{"utilization": 49, "posted": "yes"}, StatusFail},
		{"nested or fails", map[string]any{"utilization": 80, "posted": "no", "minutes": 1}, StatusFail},
		{"missing field", map[string]any{"posted": "yes"}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Status(s, tt.values))
		})
	}

	assert.Equal(t, StatusFail, NewEvaluator(StaticBBIStatuses{"BDRRMC": "Non-Functional"}).
		Status(s, map[string]any{"utilization": 90, "posted": "yes"}))
	assert.Equal(t, StatusFail, NewEvaluator(nil).Status(s, map[string]any{"utilization": 90, "posted": "yes"}))
}

func TestEvaluator_CustomOutputStatus(t *testing.T) {
	s := &Schema{
		ConditionGroups:    []ConditionGroup{{Operator: OperatorAnd, Rules: Rules{MatchValue{FieldID: "ok", ExpectedValue: true}}}},
		OutputStatusOnPass: StatusConsidered,
	}
	ev := NewEvaluator(nil)
	assert.Equal(t, StatusConsidered, ev.Status(s, map[string]any{"ok": true}))
	assert.Equal(t, StatusFail, ev.Status(s, map[string]any{"ok": false}))
	assert.Equal(t, StatusPass, ev.Status(nil, nil))
}

func TestEvaluator_ShortCircuit(t *testing.T) {
	res := &countingResolver{statuses: map[string]string{"a": "Functional", "b": "Functional"}}
	ev := NewEvaluator(res)

	and := ConditionGroup{Operator: OperatorAnd, Rules: Rules{
		MatchValue{FieldID: "x", ExpectedValue: "nope"},
		BBIFunctionalityCheck{BBIID: "a", ExpectedStatus: "Functional"},
	}}
	assert.False(t, ev.EvaluateGroup(and, map[string]any{"x": "yes"}))
	assert.Equal(t, 0, res.calls)

	or := ConditionGroup{Operator: OperatorOr, Rules: Rules{
		BBIFunctionalityCheck{BBIID: "a", ExpectedStatus: "Functional"},
		BBIFunctionalityCheck{BBIID: "b", ExpectedStatus: "Functional"},
	}}
	assert.True(t, ev.EvaluateGroup(or, nil))
	assert.Equal(t, 1, res.calls)
}

func TestEvaluator_EmptyAndUnknownGroups(t *testing.T) {
	ev := NewEvaluator(nil)
	assert.True(t, ev.EvaluateGroup(ConditionGroup{Operator: OperatorAnd}, nil))
	assert.False(t, ev.EvaluateGroup(ConditionGroup{Operator: OperatorOr}, nil))
	assert.False(t, ev.EvaluateGroup(ConditionGroup{Operator: "XOR", Rules: Rules{AndAll{}}}, nil))
	assert.False(t, ev.EvaluateRule(Unknown{RuleType: "AI_JUDGE"}, nil))
	assert.False(t, ev.EvaluateRule(nil, nil))
}

func TestEvaluator_DeepNesting(t *testing.T) {
	var r Rule = MatchValue{FieldID: "leaf", ExpectedValue: 1.0}
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			r = AndAll{Conditions: Rules{r}}
		} else {
			r = OrAny{Conditions: Rules{MatchValue{FieldID: "missing", ExpectedValue: 1}, r}}
		}
	}
	ev := NewEvaluator(nil)
	assert.True(t, ev.EvaluateRule(r, map[string]any{"leaf": 1}))
	assert.False(t, ev.EvaluateRule(r, map[string]any{"leaf": 2}))
}

func TestEvaluator_Comparisons(t *testing.T) {
	ev := NewEvaluator(nil)
	values := map[string]any{"pct": []bool{true, true, false}, "n": "3"}

	tests := []struct {
		op        Comparison
		threshold float64
		want      bool
	}{
		{OpGTE, 66.66666666666667, true},
		{OpLTE, 66.66666666666667, true},
		{OpGT, 60, true},
		{OpLT, 70, true},
		{OpEQ, 200.0 / 3, true},
		{OpGT, 70, false},
		{"~=", 66, false},
	}
	for _, tt := range tests {
		got := ev.EvaluateRule(PercentageThreshold{FieldID: "pct", Operator: tt.op, Threshold: tt.threshold}, values)
		assert.Equal(t, tt.want, got, "%s %v", tt.op, tt.threshold)
	}

	assert.True(t, ev.EvaluateRule(CountThreshold{FieldID: "n", Operator: OpEQ, Threshold: 3}, values))
	assert.True(t, ev.EvaluateRule(CountThreshold{FieldID: "pct", Operator: OpEQ, Threshold: 2}, values))
	assert.False(t, ev.EvaluateRule(PercentageThreshold{FieldID: "empty", Operator: OpGTE, Threshold: 0}, map[string]any{"empty": []any{}}))
	assert.False(t, ev.EvaluateRule(CountThreshold{FieldID: "bad", Operator: OpGTE, Threshold: 0}, map[string]any{"bad": "many"}))
}

func TestEvaluator_MatchValue(t *testing.T) {
	ev := NewEvaluator(nil)

	assert.True(t, ev.EvaluateRule(MatchValue{FieldID: "n", ExpectedValue: 3}, map[string]any{"n": 3.0}))
	assert.False(t, ev.EvaluateRule(MatchValue{FieldID: "n", ExpectedValue: "3"}, map[string]any{"n": 3.0}))
	assert.True(t, ev.EvaluateRule(MatchValue{FieldID: "s", Operator: OpNEQ, ExpectedValue: "no"}, map[string]any{"s": "yes"}))
	assert.False(t, ev.EvaluateRule(MatchValue{FieldID: "s", Operator: OpNEQ, ExpectedValue: "no"}, map[string]any{}))
	assert.False(t, ev.EvaluateRule(MatchValue{FieldID: "s", Operator: OpGT, ExpectedValue: "a"}, map[string]any{"s": "b"}))
	assert.True(t, ev.EvaluateRule(MatchValue{FieldID: "l", ExpectedValue: []any{"a", "b"}}, map[string]any{"l": []any{"a", "b"}}))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "utilization is at least 50%", Describe(PercentageThreshold{FieldID: "utilization", Operator: OpGTE, Threshold: 50}))
	assert.Equal(t, "minutes count is more than 2", Describe(CountThreshold{FieldID: "minutes", Operator: OpGT, Threshold: 2}))
	assert.Equal(t, "posted equals yes", Describe(MatchValue{FieldID: "posted", ExpectedValue: "yes"}))
	assert.Equal(t, "BBI BDRRMC is Functional", Describe(BBIFunctionalityCheck{BBIID: "BDRRMC", ExpectedStatus: "Functional"}))
	assert.Equal(t,
		"any of: (a equals 1), (b count is at most 4)",
		Describe(OrAny{Conditions: Rules{MatchValue{FieldID: "a", ExpectedValue: 1}, CountThreshold{FieldID: "b", Operator: OpLTE, Threshold: 4}}}))
	assert.Equal(t, `unsupported rule "X"`, Describe(Unknown{RuleType: "X"}))
}

func TestValidateSchema(t *testing.T) {
	assert.Empty(t, ValidateSchema(nil))

	s, err := Parse([]byte(budgetSchema))
	require.NoError(t, err)
	assert.Empty(t, ValidateSchema(s))

	bad, err := Parse([]byte(`{"condition_groups": [
		{"operator": "XOR", "rules": []},
		{"operator": "AND", "rules": [
			{"rule_type": "PERCENTAGE_THRESHOLD", "operator": "=>", "threshold": 120},
			{"rule_type": "AND_ALL", "conditions": []},
			{"rule_type": "MYSTERY"}
		]}
	]}`))
	require.NoError(t, err)

	var paths []string
	for _, p := range ValidateSchema(bad) {
		paths = append(paths, p.Path)
	}
	assert.ElementsMatch(t, []string{
		"condition_groups[0].operator",
		"condition_groups[0].rules",
		"condition_groups[1].rules[0].field_id",
		"condition_groups[1].rules[0].operator",
		"condition_groups[1].rules[0].threshold",
		"condition_groups[1].rules[1].conditions",
		"condition_groups[1].rules[2].rule_type",
	}, paths)
}

func TestRules_MarshalKeepsDiscriminator(t *testing.T) {
	rules := Rules{AndAll{Conditions: Rules{BBIFunctionalityCheck{BBIID: "b", ExpectedStatus: "Functional"}}}}
	b, err := rules.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"rule_type":"AND_ALL","conditions":[{"rule_type":"BBI_FUNCTIONALITY_CHECK","bbi_id":"b","expected_status":"Functional"}]}]`, string(b))
}

func TestValidateSchema_MalformedRuleKeepsSiblings(t *testing.T) {
	s, err := Parse([]byte(`{"condition_groups": [
		{"operator": "AND", "rules": [
			{"rule_type": "PERCENTAGE_THRESHOLD", "field_id": "u", "operator": ">=", "threshold": "50"},
			{"rule_type": "COUNT_THRESHOLD", "operator": ">=", "threshold": 2},
			{"rule_type": "OR_ANY", "conditions": [
				{"rule_type": "MATCH_VALUE", "field_id": 7, "expected_value": "yes"}
			]}
		]}
	]}`))
	require.NoError(t, err)

	bad, ok := s.ConditionGroups[0].Rules[0].(Malformed)
	require.True(t, ok, "got %T", s.ConditionGroups[0].Rules[0])
	assert.Equal(t, RulePercentageThreshold, bad.Type())
	assert.False(t, NewEvaluator(nil).EvaluateRule(bad, map[string]any{"u": 90}))
	assert.Equal(t, "malformed PERCENTAGE_THRESHOLD rule", Describe(bad))

	var paths []string
	for _, p := range ValidateSchema(s) {
		paths = append(paths, p.Path)
	}
	assert.ElementsMatch(t, []string{
		"condition_groups[0].rules[0].threshold",
		"condition_groups[0].rules[1].field_id",
		"condition_groups[0].rules[2].conditions[0].field_id",
	}, paths)
}
