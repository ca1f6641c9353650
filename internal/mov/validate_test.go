package mov

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func checkbox(id string) Checkbox {
	return Checkbox{Base: Base{ID: id, Label: "Item " + id}}
}

func errorsFor(res Result, id, field string) []Issue {
	var out []Issue
	for _, is := range res.Errors {
		if is.ItemID == id && is.Field == field {
			out = append(out, is)
		}
	}
	return out
}

func warningsFor(res Result, id, field string) []Issue {
	var out []Issue
	for _, is := range res.Warnings {
		if is.ItemID == id && is.Field == field {
			out = append(out, is)
		}
	}
	return out
}

func TestValidate_EmptyConfig(t *testing.T) {
	for name, cfg := range map[string]*Checklist{
		"nil":       nil,
		"no items":  {},
		"empty arr": {Items: Items{}},
	} {
		t.Run(name, func(t *testing.T) {
			res := Validate(cfg)
			assert.True(t, res.IsValid)
			assert.Empty(t, res.Errors)
			assert.Empty(t, res.Warnings)
			assert.Empty(t, res.ErrorsByItem)
		})
	}
}

func TestValidate_MissingLabel(t *testing.T) {
	res := Validate(&Checklist{Items: Items{Checkbox{Base: Base{ID: "c1", Label: "   "}}}})

	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "label", res.Errors[0].Field)
	assert.Len(t, res.ForItem("c1"), 1)
}

func TestValidate_OrGroupMinRequired(t *testing.T) {
	children := Items{checkbox("a"), checkbox("b"), checkbox("c")}

	tests := []struct {
		name        string
		minRequired *int
		wantMessage string
	}{
		{"unset", nil, "OR groups must specify min_required"},
		{"zero", intPtr(0), "min_required must be at least 1"},
		{"negative", intPtr(-2), "min_required must be at least 1"},
		{"too large", intPtr(5), "min_required cannot exceed number of children (3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Group{
				Base:          Base{ID: "g1", Label: "Any of"},
				LogicOperator: LogicOr,
				MinRequired:   tt.minRequired,
				Children:      children,
			}
			res := Validate(&Checklist{Items: Items{g}})

			assert.False(t, res.IsValid)
			errs := errorsFor(res, "g1", "min_required")
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantMessage, errs[0].Message)
			assert.Len(t, res.Errors, 1)
		})
	}

	for _, n := range []int{1, 2, 3} {
		g := Group{Base: Base{ID: "g1", Label: "Any of"}, LogicOperator: LogicOr, MinRequired: intPtr(n), Children: children}
		assert.True(t, Validate(&Checklist{Items: Items{g}}).IsValid, "min_required=%d", n)
	}
}

func TestValidate_AndGroupWithMinRequiredWarns(t *testing.T) {
	g := Group{
		Base:          Base{ID: "g1", Label: "All of"},
		LogicOperator: LogicAnd,
		MinRequired:   intPtr(2),
		Children:      Items{checkbox("a"), checkbox("b")},
	}
	res := Validate(&Checklist{Items: Items{g}})

	assert.True(t, res.IsValid)
	assert.Len(t, warningsFor(res, "g1", "min_required"), 1)
	assert.Len(t, res.Warnings, 1)
}

func TestValidate_GroupStructure(t *testing.T) {
	empty := Group{Base: Base{ID: "g1", Label: "Empty"}, LogicOperator: LogicAnd}
	res := Validate(&Checklist{Items: Items{empty}})
	assert.Len(t, errorsFor(res, "g1", "children"), 1)

	bad := Group{Base: Base{ID: "g2", Label: "Bad"}, LogicOperator: "XOR", Children: Items{checkbox("a")}}
	res = Validate(&Checklist{Items: Items{bad}})
	assert.Len(t, errorsFor(res, "g2", "logic_operator"), 1)
}

func TestValidate_NestedErrorsIndexedByItem(t *testing.T) {
	inner := Group{
		Base:          Base{ID: "inner", Label: "Inner"},
		LogicOperator: LogicAnd,
		Children:      Items{Checkbox{Base: Base{ID: "deep"}}},
	}
	outer := Group{
		Base:          Base{ID: "outer", Label: "Outer"},
		LogicOperator: LogicOr,
		MinRequired:   intPtr(1),
		Children:      Items{inner, checkbox("x")},
	}
	res := Validate(&Checklist{Items: Items{outer}})

	assert.False(t, res.IsValid)
	require.Len(t, res.ForItem("deep"), 1)
	assert.Equal(t, "label", res.ForItem("deep")[0].Field)
	assert.Empty(t, res.ForItem("outer"))
}

func TestValidate_CurrencyInvertedRange(t *testing.T) {
	item := CurrencyInput{
		Base:      Base{ID: "cur", Label: "Budget"},
		MinValue:  floatPtr(100),
		MaxValue:  floatPtr(50),
		Threshold: floatPtr(75),
	}
	res := Validate(&Checklist{Items: Items{item}})

	assert.False(t, res.IsValid)
	assert.Len(t, errorsFor(res, "cur", "max_value"), 1)
}

func TestValidate_ThresholdWarnings(t *testing.T) {
	noThreshold := CurrencyInput{Base: Base{ID: "cur", Label: "Budget"}}
	res := Validate(&Checklist{Items: Items{noThreshold}})
	assert.True(t, res.IsValid)
	assert.Len(t, warningsFor(res, "cur", "threshold"), 1)

	outside := NumberInput{
		Base:      Base{ID: "num", Label: "Meetings"},
		MinValue:  floatPtr(0),
		MaxValue:  floatPtr(12),
		Threshold: floatPtr(20),
	}
	res = Validate(&Checklist{Items: Items{outside}})
	assert.True(t, res.IsValid)
	w := warningsFor(res, "num", "threshold")
	require.Len(t, w, 1)
	assert.Equal(t, "Threshold 20 is above the maximum value 12", w[0].Message)

	numberNoThreshold := NumberInput{Base: Base{ID: "n2", Label: "Count"}}
	res = Validate(&Checklist{Items: Items{numberNoThreshold}})
	assert.Empty(t, res.Warnings)
}

func TestValidate_DateGracePeriod(t *testing.T) {
	tests := []struct {
		name    string
		grace   *int
		wantErr bool
	}{
		{"unset", nil, true},
		{"zero", intPtr(0), true},
		{"negative", intPtr(-1), true},
		{"positive", intPtr(1), false},
		{"large", intPtr(90), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DateInput{
				Base:                    Base{ID: "d1", Label: "Date posted"},
				ConsideredStatusEnabled: true,
				GracePeriodDays:         tt.grace,
			}
			res := Validate(&Checklist{Items: Items{d}})
			errs := errorsFor(res, "d1", "grace_period_days")
			if tt.wantErr {
				assert.Len(t, errs, 1)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidate_DateWindow(t *testing.T) {
	d := DateInput{
		Base:    Base{ID: "d1", Label: "Approved on"},
		MinDate: strPtr("2024-06-30"),
		MaxDate: strPtr("2024-01-01"),
	}
	res := Validate(&Checklist{Items: Items{d}})
	assert.Len(t, errorsFor(res, "d1", "max_date"), 1)

	bad := DateInput{Base: Base{ID: "d2", Label: "Approved on"}, MinDate: strPtr("June 1")}
	res = Validate(&Checklist{Items: Items{bad}})
	assert.Len(t, errorsFor(res, "d2", "min_date"), 1)

	ignored := DateInput{Base: Base{ID: "d3", Label: "Approved on"}, GracePeriodDays: intPtr(10)}
	res = Validate(&Checklist{Items: Items{ignored}})
	assert.True(t, res.IsValid)
	assert.Len(t, warningsFor(res, "d3", "grace_period_days"), 1)
}

func TestValidate_RadioGroupTooFewOptionsShortCircuits(t *testing.T) {
	r := RadioGroup{
		Base:         Base{ID: "r1", Label: "Status"},
		Options:      []Option{{Label: "", Value: ""}},
		DefaultValue: strPtr("missing"),
	}
	res := Validate(&Checklist{Items: Items{r}})

	require.Len(t, res.ForItem("r1"), 1)
	assert.Equal(t, "Radio group must have at least 2 options", res.Errors[0].Message)

	d := Dropdown{Base: Base{ID: "dd", Label: "Pick"}}
	res = Validate(&Checklist{Items: Items{d}})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Dropdown must have at least 1 option", res.Errors[0].Message)
}

func TestValidate_DuplicateOptionValuesReportedOnce(t *testing.T) {
	opts := []Option{
		{Label: "Yes", Value: "y"},
		{Label: "Yes again", Value: "y"},
		{Label: "No", Value: "n"},
		{Label: "No again", Value: "n"},
		{Label: "Yes thrice", Value: "y"},
	}

	for _, item := range []Item{
		RadioGroup{Base: Base{ID: "opt", Label: "Radio"}, Options: opts},
		Dropdown{Base: Base{ID: "opt", Label: "Dropdown"}, Options: opts},
	} {
		res := Validate(&Checklist{Items: Items{item}})
		var unique []Issue
		for _, is := range res.Errors {
			if is.Message == "Option values must be unique" {
				unique = append(unique, is)
			}
		}
		assert.Len(t, unique, 1, "item kind %s", item.Kind())
	}
}

func TestValidate_RadioDefaultValueWarning(t *testing.T) {
	r := RadioGroup{
		Base:         Base{ID: "r1", Label: "Status"},
		Options:      []Option{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}},
		DefaultValue: strPtr("maybe"),
	}
	res := Validate(&Checklist{Items: Items{r}})

	assert.True(t, res.IsValid)
	assert.Len(t, warningsFor(res, "r1", "default_value"), 1)
}

func TestValidate_UnknownType(t *testing.T) {
	cfg, err := Parse([]byte(`{"items":[{"id":"x","type":"signature","label":"Sign"}]}`))
	require.NoError(t, err)

	res := Validate(cfg)
	assert.False(t, res.IsValid)
	assert.Len(t, errorsFor(res, "x", "type"), 1)
}

func TestValidate_Idempotent(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"items": [
			{"id": "g", "type": "group", "label": "Docs", "logic_operator": "OR", "min_required": 4,
			 "children": [
				{"id": "a", "type": "checkbox", "label": ""},
				{"id": "b", "type": "currency_input", "label": "Budget", "min_value": 10, "max_value": 5}
			 ]},
			{"id": "r", "type": "radio_group", "label": "Pick", "options": [
				{"label": "A", "value": "a"}, {"label": "B", "value": "a"}
			]}
		]
	}`))
	require.NoError(t, err)

	first := Validate(cfg)
	second := Validate(cfg)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("validate is not idempotent (-first +second):\n%s", diff)
	}
	assert.False(t, first.IsValid)
	assert.Len(t, first.Errors, 4)
}

func TestValidate_MalformedItemKeepsSiblings(t *testing.T) {
	cfg, err := Parse([]byte(`{"items":[
		{"id":"a","type":"checkbox","label":""},
		{"id":"g","type":"group","label":"Posting","logic_operator":"OR","min_required":"2","children":[
			{"id":"c","type":"checkbox","label":""}
		]},
		{"id":"n","type":"checkbox","label":5},
		{"id":"r","type":"radio_group","label":"Pick","options":"yes,no"}
	]}`))
	require.NoError(t, err)
	require.Len(t, cfg.Items, 4)

	g, ok := cfg.Items[1].(Malformed)
	require.True(t, ok, "got %T", cfg.Items[1])
	assert.Equal(t, TypeGroup, g.Kind())
	assert.Equal(t, "min_required", g.Field)
	assert.Equal(t, 5, CountItems(cfg.Items))

	res := Validate(cfg)
	assert.False(t, res.IsValid)
	assert.Len(t, errorsFor(res, "a", "label"), 1)
	assert.Len(t, errorsFor(res, "g", "min_required"), 1)
	assert.Len(t, errorsFor(res, "c", "label"), 1)
	assert.Len(t, errorsFor(res, "n", "label"), 1)
	assert.Len(t, errorsFor(res, "r", "options"), 1)
	assert.Len(t, res.Errors, 5)
}

func TestItems_MalformedRoundTripsRaw(t *testing.T) {
	raw := `{"items":[{"id":"g","type":"group","label":"G","min_required":"2","children":[]}]}`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	b, err := cfg.Items.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"g","type":"group","label":"G","min_required":"2","children":[]}]`, string(b))
}
