// Package template loads indicator templates written in YAML. A template
// carries the form schema, MOV checklist and calculation schema of one or
// more indicators so a new assessment cycle can be seeded without the builder.
package template

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/generyand/sinag-sub010/internal/calculation"
	"github.com/generyand/sinag-sub010/internal/compliance"
	"github.com/generyand/sinag-sub010/internal/mov"
	"github.com/generyand/sinag-sub010/internal/scoring"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Indicator is one indicator definition ready to be inserted.
type Indicator struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	GovernanceArea    string          `json:"governanceArea"`
	FormSchema        json.RawMessage `json:"formSchema"`
	MOVChecklist      json.RawMessage `json:"movChecklist"`
	CalculationSchema json.RawMessage `json:"calculationSchema,omitempty"`
}

type file struct {
	Indicators []struct {
		Code              string `yaml:"code"`
		Name              string `yaml:"name"`
		Description       string `yaml:"description"`
		GovernanceArea    string `yaml:"governance_area"`
		FormSchema        any    `yaml:"form_schema"`
		MOVChecklist      any    `yaml:"mov_checklist"`
		CalculationSchema any    `yaml:"calculation_schema"`
	} `yaml:"indicators"`
}

// IDFunc generates ids for checklist items and form fields that omit one.
type IDFunc func() string

func newUUID() string { return uuid.NewString() }

// Parse decodes a template document. source names it in error messages.
func Parse(data []byte, source string) ([]Indicator, error) {
	return parse(data, source, newUUID)
}

func parse(data []byte, source string, newID IDFunc) ([]Indicator, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	out := make([]Indicator, 0, len(f.Indicators))
	seen := map[string]bool{}
	for i, raw := range f.Indicators {
		where := fmt.Sprintf("%s: indicator %d", source, i)
		if raw.Code == "" || raw.Name == "" {
			return nil, fmt.Errorf("%s: code and name are required", where)
		}
		where = fmt.Sprintf("%s: indicator %s", source, raw.Code)
		if seen[raw.Code] {
			return nil, fmt.Errorf("%s: duplicate code", where)
		}
		seen[raw.Code] = true
		if !compliance.IsKnownArea(raw.GovernanceArea) {
			return nil, fmt.Errorf("%s: unknown governance_area %q", where, raw.GovernanceArea)
		}

		form := normalize(raw.FormSchema)
		backfill(form, "fields", "field_id", nil, newID)
		checklist := normalize(raw.MOVChecklist)
		backfill(checklist, "items", "id", []string{"children"}, newID)

		ind := Indicator{
			Code:           raw.Code,
			Name:           raw.Name,
			Description:    strings.TrimSpace(raw.Description),
			GovernanceArea: raw.GovernanceArea,
		}
		var err error
		if ind.FormSchema, err = toJSON(form, `{"fields":[]}`); err != nil {
			return nil, fmt.Errorf("%s: form_schema: %w", where, err)
		}
		if ind.MOVChecklist, err = toJSON(checklist, `{"items":[]}`); err != nil {
			return nil, fmt.Errorf("%s: mov_checklist: %w", where, err)
		}
		if raw.CalculationSchema != nil {
			if ind.CalculationSchema, err = toJSON(normalize(raw.CalculationSchema), ""); err != nil {
				return nil, fmt.Errorf("%s: calculation_schema: %w", where, err)
			}
		}
		if err := Check(ind); err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		out = append(out, ind)
	}
	return out, nil
}

// Report is the combined validation result of an indicator's documents.
type Report struct {
	IsValid     bool                  `json:"isValid"`
	Checklist   mov.Result            `json:"checklist"`
	Calculation []calculation.Problem `json:"calculation"`
}

// Inspect parses the three documents of an indicator and validates the
// checklist and calculation schema. The error is only set when a document
// cannot be decoded at all.
func Inspect(formJSON, checklistJSON, calculationJSON []byte) (Report, error) {
	parsed, err := scoring.ParseIndicator(formJSON, checklistJSON, calculationJSON)
	if err != nil {
		return Report{}, err
	}
	rep := Report{
		Checklist:   mov.Validate(parsed.Checklist),
		Calculation: calculation.ValidateSchema(parsed.Calculation),
	}
	rep.IsValid = rep.Checklist.IsValid && len(rep.Calculation) == 0
	return rep, nil
}

// Check parses an indicator's documents and rejects blocking problems.
// Checklist warnings are allowed.
func Check(ind Indicator) error {
	rep, err := Inspect(ind.FormSchema, ind.MOVChecklist, ind.CalculationSchema)
	if err != nil {
		return err
	}
	if !rep.Checklist.IsValid {
		first := rep.Checklist.Errors[0]
		return fmt.Errorf("mov_checklist has %d error(s), first: item %s %s: %s",
			len(rep.Checklist.Errors), first.ItemID, first.Field, first.Message)
	}
	if len(rep.Calculation) > 0 {
		return fmt.Errorf("calculation_schema has %d problem(s), first: %s: %s",
			len(rep.Calculation), rep.Calculation[0].Path, rep.Calculation[0].Message)
	}
	return nil
}

// LoadDefaults returns the templates bundled with the binary.
func LoadDefaults() ([]Indicator, error) {
	return loadFS(defaults, "defaults")
}

// LoadDir loads every *.yaml / *.yml file in dir, in name order.
func LoadDir(dir string) ([]Indicator, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) ([]Indicator, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []Indicator
	seen := map[string]string{}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(root, name)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		inds, err := Parse(data, name)
		if err != nil {
			return nil, err
		}
		for _, ind := range inds {
			if prev, dup := seen[ind.Code]; dup {
				return nil, fmt.Errorf("%s: indicator %s already defined in %s", name, ind.Code, prev)
			}
			seen[ind.Code] = name
		}
		all = append(all, inds...)
	}
	return all, nil
}

// ToJSON converts a JSON or YAML document to JSON. JSON input is returned
// unchanged.
func ToJSON(data []byte) (json.RawMessage, error) {
	if json.Valid(data) {
		return json.RawMessage(data), nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return toJSON(normalize(v), "null")
}

// normalize converts yaml's map[any]any nodes into JSON-encodable maps.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalize(val)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	}
	return v
}

// backfill assigns ids to entries of node[listKey] (and, recursively, of the
// nested lists named in childKeys) that lack idKey.
func backfill(node any, listKey, idKey string, childKeys []string, newID IDFunc) {
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	backfillList(m[listKey], idKey, childKeys, newID)
}

func backfillList(list any, idKey string, childKeys []string, newID IDFunc) {
	entries, ok := list.([]any)
	if !ok {
		return
	}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := m[idKey].(string); strings.TrimSpace(id) == "" {
			m[idKey] = newID()
		}
		for _, ck := range childKeys {
			backfillList(m[ck], idKey, childKeys, newID)
		}
	}
}

func toJSON(v any, empty string) (json.RawMessage, error) {
	if v == nil {
		if empty == "" {
			return nil, nil
		}
		return json.RawMessage(empty), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
