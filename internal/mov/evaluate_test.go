package mov

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const budgetChecklist = `{
	"items": [
		{"id": "posted", "type": "checkbox", "label": "Posted in 3 conspicuous places", "required": true},
		{"id": "approval", "type": "date_input", "label": "Date of approval", "required": true,
		 "max_date": "2024-03-31", "considered_status_enabled": true, "grace_period_days": 30},
		{"id": "proof", "type": "group", "label": "Proof of posting", "logic_operator": "OR", "min_required": 1,
		 "children": [
			{"id": "photo", "type": "checkbox", "label": "Photo documentation"},
			{"id": "cert", "type": "checkbox", "label": "Certification from the punong barangay"}
		 ]},
		{"id": "amount", "type": "currency_input", "label": "Amount allocated", "threshold": 50000}
	]
}`

func mustParse(t *testing.T, s string) *Checklist {
	t.Helper()
	cfg, err := Parse([]byte(s))
	require.NoError(t, err)
	return cfg
}

func TestEvaluate_Passed(t *testing.T) {
	cfg := mustParse(t, budgetChecklist)

	out := Evaluate(cfg, map[string]any{
		"posted":   true,
		"approval": "2024-03-15",
		"cert":     true,
		"amount":   75000.0,
	})

	assert.Equal(t, StatusPassed, out.Status)
	assert.Equal(t, StatusPassed, out.Items["proof"])
	assert.Equal(t, StatusSkipped, out.Items["photo"])
}

func TestEvaluate_ConsideredWithinGrace(t *testing.T) {
	cfg := mustParse(t, budgetChecklist)

	out := Evaluate(cfg, map[string]any{
		"posted":   true,
		"approval": "2024-04-10",
		"photo":    true,
	})

	assert.Equal(t, StatusConsidered, out.Items["approval"])
	assert.Equal(t, StatusConsidered, out.Status)
}

func TestEvaluate_Failures(t *testing.T) {
	cfg := mustParse(t, budgetChecklist)

	tests := []struct {
		name      string
		responses map[string]any
		failed    string
	}{
		{"unchecked required", map[string]any{"approval": "2024-03-01", "photo": true}, "posted"},
		{"past grace", map[string]any{"posted": true, "approval": "2024-06-01", "photo": true}, "approval"},
		{"no proof", map[string]any{"posted": true, "approval": "2024-03-01"}, "proof"},
		{"below threshold", map[string]any{"posted": true, "approval": "2024-03-01", "photo": true, "amount": "10,000"}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(cfg, tt.responses)
			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, StatusFailed, out.Items[tt.failed])
		})
	}
}

func TestEvaluate_IncompleteAndLenient(t *testing.T) {
	cfg := mustParse(t, budgetChecklist)
	responses := map[string]any{"posted": true, "photo": true}

	out := Evaluate(cfg, responses)
	assert.Equal(t, StatusIncomplete, out.Status)
	assert.Equal(t, StatusIncomplete, out.Items["approval"])

	cfg.ValidationMode = ModeLenient
	out = Evaluate(cfg, responses)
	assert.Equal(t, StatusPassed, out.Status)
}

func TestEvaluate_OrGroupMinRequired(t *testing.T) {
	g := Group{
		Base:          Base{ID: "g", Label: "Two of three"},
		LogicOperator: LogicOr,
		MinRequired:   intPtr(2),
		Children:      Items{checkbox("a"), checkbox("b"), checkbox("c")},
	}
	cfg := &Checklist{Items: Items{g}}

	assert.Equal(t, StatusFailed, Evaluate(cfg, map[string]any{"a": true}).Status)
	assert.Equal(t, StatusPassed, Evaluate(cfg, map[string]any{"a": true, "c": "yes"}).Status)
}

func TestEvaluate_Choices(t *testing.T) {
	cfg := &Checklist{Items: Items{
		RadioGroup{
			Base:    Base{ID: "r", Label: "Functional?", Required: true},
			Options: []Option{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}},
		},
		Dropdown{
			Base:          Base{ID: "d", Label: "Committees"},
			Options:       []Option{{Label: "BDRRMC", Value: "bdrrmc"}, {Label: "BADAC", Value: "badac"}},
			AllowMultiple: true,
		},
	}}

	assert.Equal(t, StatusPassed, Evaluate(cfg, map[string]any{"r": "yes", "d": []any{"bdrrmc", "badac"}}).Status)
	assert.Equal(t, StatusFailed, Evaluate(cfg, map[string]any{"r": "perhaps"}).Status)
	assert.Equal(t, StatusFailed, Evaluate(cfg, map[string]any{"r": "no", "d": []any{"other"}}).Status)
	assert.Equal(t, StatusIncomplete, Evaluate(cfg, nil).Status)
}

func TestEvaluate_EmptyChecklist(t *testing.T) {
	assert.Equal(t, StatusPassed, Evaluate(nil, nil).Status)
	assert.Equal(t, StatusPassed, Evaluate(&Checklist{}, map[string]any{"x": 1}).Status)
}

func TestItems_RoundTripKeepsTypeTag(t *testing.T) {
	cfg := mustParse(t, budgetChecklist)

	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	again, err := Parse(b)
	require.NoError(t, err)
	require.Len(t, again.Items, 4)
	assert.Equal(t, TypeDateInput, again.Items[1].Kind())

	g, ok := again.Items[2].(Group)
	require.True(t, ok)
	assert.Len(t, g.Children, 2)
	assert.Equal(t, 6, CountItems(again.Items))
}
