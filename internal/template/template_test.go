package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/sinag-sub010/internal/mov"
)

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func TestLoadDefaults(t *testing.T) {
	inds, err := LoadDefaults()
	require.NoError(t, err)
	require.NotEmpty(t, inds)

	codes := map[string]bool{}
	for _, ind := range inds {
		codes[ind.Code] = true
		assert.NoError(t, Check(ind), ind.Code)
	}
	assert.True(t, codes["1.1"])
	assert.True(t, codes["2.1"])
}

func TestParse_BackfillsIDs(t *testing.T) {
	doc := `
indicators:
  - code: X1
    name: Sample
    governance_area: social_protection
    form_schema:
      fields:
        - field_type: text_input
          label: Remarks
    mov_checklist:
      items:
        - id: keep-me
          type: checkbox
          label: Kept
        - type: group
          label: Any
          logic_operator: OR
          min_required: 1
          children:
            - type: checkbox
              label: Child
`
	inds, err := parse([]byte(doc), "inline", sequentialIDs())
	require.NoError(t, err)
	require.Len(t, inds, 1)

	cl, err := mov.Parse(inds[0].MOVChecklist)
	require.NoError(t, err)
	var ids []string
	mov.Walk(cl.Items, func(it mov.Item, _ int) { ids = append(ids, it.ItemID()) })
	assert.Equal(t, []string{"keep-me", "gen-2", "gen-3"}, ids)

	var form struct {
		Fields []struct {
			ID string `json:"field_id"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(inds[0].FormSchema, &form))
	assert.Equal(t, "gen-1", form.Fields[0].ID)
	assert.Nil(t, inds[0].CalculationSchema)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing name": `
indicators:
  - code: A
    governance_area: social_protection`,
		"unknown area": `
indicators:
  - code: A
    name: A
    governance_area: youth`,
		"duplicate code": `
indicators:
  - {code: A, name: A, governance_area: social_protection}
  - {code: A, name: B, governance_area: social_protection}`,
		"invalid checklist": `
indicators:
  - code: A
    name: A
    governance_area: social_protection
    mov_checklist:
      items:
        - {type: group, label: G, logic_operator: OR, min_required: 5, children: [{type: checkbox, label: c}]}`,
		"invalid calculation": `
indicators:
  - code: A
    name: A
    governance_area: social_protection
    calculation_schema:
      condition_groups:
        - operator: AND
          rules: []`,
		"bad yaml": "indicators: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), "t.yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("b.yml", "indicators:\n  - {code: B, name: B, governance_area: environmental_management}\n")
	write("a.yaml", "indicators:\n  - {code: A, name: A, governance_area: environmental_management}\n")
	write("notes.txt", "ignored")

	inds, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, inds, 2)
	assert.Equal(t, "A", inds[0].Code)
	assert.JSONEq(t, `{"items":[]}`, string(inds[0].MOVChecklist))

	write("c.yaml", "indicators:\n  - {code: A, name: Again, governance_area: environmental_management}\n")
	_, err = LoadDir(dir)
	assert.ErrorContains(t, err, "already defined in a.yaml")
}

func TestInspect(t *testing.T) {
	rep, err := Inspect(nil,
		[]byte(`{"items":[{"id":"amt","type":"currency_input","label":"Amount"}]}`),
		[]byte(`{"condition_groups":[{"operator":"AND","rules":[{"rule_type":"MATCH_VALUE","field_id":"amt","operator":">","expected_value":1}]}]}`))
	require.NoError(t, err)
	assert.False(t, rep.IsValid)
	assert.True(t, rep.Checklist.IsValid)
	require.Len(t, rep.Checklist.Warnings, 1)
	assert.Equal(t, "threshold", rep.Checklist.Warnings[0].Field)
	require.Len(t, rep.Calculation, 1)
	assert.Equal(t, "condition_groups[0].rules[0].operator", rep.Calculation[0].Path)

	_, err = Inspect([]byte(`{"fields": 3}`), nil, nil)
	assert.ErrorContains(t, err, "form_schema")
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON([]byte(`{"items": []}`))
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, string(out))

	out, err = ToJSON([]byte("items:\n  - id: a\n    type: checkbox\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":"a","type":"checkbox"}]}`, string(out))

	_, err = ToJSON([]byte("items: ["))
	assert.Error(t, err)
}
