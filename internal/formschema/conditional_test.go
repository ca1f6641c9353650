package formschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateConditional(t *testing.T) {
	tests := []struct {
		name   string
		rule   ConditionalRule
		values map[string]any
		want   bool
	}{
		{"greater than", ConditionalRule{"age", OpGreaterThan, 18}, map[string]any{"age": 20}, true},
		{"greater than non-numeric rule value", ConditionalRule{"age", OpGreaterThan, "abc"}, map[string]any{"age": 20}, false},
		{"greater than numeric string", ConditionalRule{"age", OpGreaterThan, "18"}, map[string]any{"age": "20"}, true},
		{"greater than missing answer", ConditionalRule{"age", OpGreaterThan, 18}, map[string]any{}, false},
		{"greater than blank answer", ConditionalRule{"age", OpGreaterThan, -1}, map[string]any{"age": ""}, false},
		{"greater than bool", ConditionalRule{"age", OpGreaterThan, 0}, map[string]any{"age": true}, false},
		{"less than", ConditionalRule{"score", OpLessThan, 75.5}, map[string]any{"score": 75}, true},
		{"less than equal", ConditionalRule{"score", OpLessThan, 75}, map[string]any{"score": 75.0}, false},
		{"contains case-insensitive", ConditionalRule{"status", OpContains, "PASS"}, map[string]any{"status": "passed_with_notes"}, true},
		{"contains nil answer", ConditionalRule{"status", OpContains, "x"}, map[string]any{"status": nil}, false},
		{"contains nil value", ConditionalRule{"status", OpContains, nil}, map[string]any{"status": "x"}, false},
		{"contains number coerced", ConditionalRule{"code", OpContains, "20"}, map[string]any{"code": 2024.0}, true},
		{"contains list", ConditionalRule{"tags", OpContains, "badac"}, map[string]any{"tags": []any{"BDRRMC", "BADAC"}}, true},
		{"equals strict string", ConditionalRule{"q", OpEquals, "yes"}, map[string]any{"q": "yes"}, true},
		{"equals no coercion", ConditionalRule{"q", OpEquals, "1"}, map[string]any{"q": 1}, false},
		{"equals across numeric kinds", ConditionalRule{"q", OpEquals, 1}, map[string]any{"q": 1.0}, true},
		{"equals bool", ConditionalRule{"q", OpEquals, true}, map[string]any{"q": true}, true},
		{"equals missing vs nil", ConditionalRule{"q", OpEquals, nil}, map[string]any{}, false},
		{"equals explicit nil", ConditionalRule{"q", OpEquals, nil}, map[string]any{"q": nil}, true},
		{"not equals missing vs nil", ConditionalRule{"q", OpNotEquals, nil}, map[string]any{}, true},
		{"not equals explicit nil", ConditionalRule{"q", OpNotEquals, nil}, map[string]any{"q": nil}, false},
		{"not equals missing", ConditionalRule{"q", OpNotEquals, "no"}, map[string]any{}, true},
		{"equals incomparable", ConditionalRule{"q", OpEquals, []any{"a"}}, map[string]any{"q": []any{"a"}}, false},
		{"not equals", ConditionalRule{"q", OpNotEquals, "no"}, map[string]any{"q": "yes"}, true},
		{"not equals same", ConditionalRule{"q", OpNotEquals, "no"}, map[string]any{"q": "no"}, false},
		{"unknown operator", ConditionalRule{"q", "startsWith", "y"}, map[string]any{"q": "yes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateConditional(tt.rule, tt.values))
		})
	}
}

func TestEvaluateConditional_NeverPanics(t *testing.T) {
	odd := []any{nil, map[string]any{"a": 1}, []any{1, 2}, struct{}{}, func() {}, make(chan int)}
	for _, op := range []Operator{OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpContains, "?"} {
		for _, a := range odd {
			for _, b := range odd {
				assert.NotPanics(t, func() {
					EvaluateConditional(ConditionalRule{FieldID: "f", Operator: op, Value: b}, map[string]any{"f": a})
				})
			}
		}
	}
}

const councilForm = `{
	"fields": [
		{"field_id": "has_council", "field_type": "radio_button", "label": "Is there a council?", "required": true,
		 "options": [{"label": "Yes", "value": "yes"}, {"label": "No", "value": "no"}]},
		{"field_id": "members", "field_type": "number_input", "label": "Number of members", "required": true,
		 "conditional_logic": [{"field_id": "has_council", "operator": "equals", "value": "yes"}]},
		{"field_id": "chair", "field_type": "text_input", "label": "Chairperson",
		 "conditional_logic": [
			{"field_id": "has_council", "operator": "equals", "value": "yes"},
			{"field_id": "members", "operator": "greaterThan", "value": 4}
		 ]},
		{"field_id": "reason", "field_type": "text_area", "label": "Why not?", "required": true,
		 "conditional_logic": [{"field_id": "has_council", "operator": "equals", "value": "no"}]}
	]
}`

func ids(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.ID)
	}
	return out
}

func TestVisibleFields(t *testing.T) {
	s, err := Parse([]byte(councilForm))
	require.NoError(t, err)

	assert.Equal(t, []string{"has_council"}, ids(VisibleFields(s, nil)))
	assert.Equal(t, []string{"has_council", "members"}, ids(VisibleFields(s, map[string]any{"has_council": "yes", "members": 3})))
	assert.Equal(t, []string{"has_council", "members", "chair"}, ids(VisibleFields(s, map[string]any{"has_council": "yes", "members": 7.0})))
	assert.Equal(t, []string{"has_council", "reason"}, ids(VisibleFields(s, map[string]any{"has_council": "no"})))
	assert.Empty(t, VisibleFields(nil, nil))
}

func TestMissingRequired(t *testing.T) {
	s, err := Parse([]byte(councilForm))
	require.NoError(t, err)

	assert.Equal(t, []string{"has_council"}, MissingRequired(s, map[string]any{}))
	assert.Equal(t, []string{"members"}, MissingRequired(s, map[string]any{"has_council": "yes", "members": "  "}))
	assert.Equal(t, []string{"reason"}, MissingRequired(s, map[string]any{"has_council": "no", "members": nil}))
	assert.Empty(t, MissingRequired(s, map[string]any{"has_council": "yes", "members": 0}))
}

func TestParse(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Fields)

	_, err = Parse([]byte(`{"fields": 3}`))
	assert.Error(t, err)

	s, err = Parse([]byte(councilForm))
	require.NoError(t, err)
	f, ok := s.Field("chair")
	require.True(t, ok)
	assert.Len(t, f.ConditionalLogic, 2)
	_, ok = s.Field("nope")
	assert.False(t, ok)
}
