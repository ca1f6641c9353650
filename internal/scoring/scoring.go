// Package scoring turns one indicator response into an indicator status by
// combining form visibility, the MOV checklist outcome and the calculation
// schema.
package scoring

import (
	"fmt"

	"github.com/generyand/sinag-sub010/internal/calculation"
	"github.com/generyand/sinag-sub010/internal/formschema"
	"github.com/generyand/sinag-sub010/internal/mov"
)

// Indicator holds the parsed definitions stored on an indicator row.
// Any of them may be nil.
type Indicator struct {
	Form        *formschema.Schema
	Checklist   *mov.Checklist
	Calculation *calculation.Schema
}

// ParseIndicator decodes the three JSON documents of an indicator.
func ParseIndicator(formJSON, checklistJSON, calculationJSON []byte) (Indicator, error) {
	var ind Indicator
	var err error
	if ind.Form, err = formschema.Parse(formJSON); err != nil {
		return ind, fmt.Errorf("form_schema: %w", err)
	}
	if ind.Checklist, err = mov.Parse(checklistJSON); err != nil {
		return ind, fmt.Errorf("mov_checklist: %w", err)
	}
	if ind.Calculation, err = calculation.Parse(calculationJSON); err != nil {
		return ind, fmt.Errorf("calculation_schema: %w", err)
	}
	return ind, nil
}

// Result is the scoring of one response.
type Result struct {
	VisibleFields     []string           `json:"visibleFields"`
	MissingRequired   []string           `json:"missingRequired"`
	MOV               mov.Outcome        `json:"mov"`
	CalculationStatus calculation.Status `json:"calculationStatus,omitempty"`
	IsCompleted       bool               `json:"isCompleted"`
	// Status is empty until the response is complete.
	Status calculation.Status `json:"status,omitempty"`
}

type Scorer struct {
	eval *calculation.Evaluator
}

func New(bbi calculation.BBIResolver) *Scorer {
	return &Scorer{eval: calculation.NewEvaluator(bbi)}
}

// Score evaluates values (field or checklist item id → answer). Answers to
// hidden form fields are ignored.
func (s *Scorer) Score(ind Indicator, values map[string]any) Result {
	res := Result{VisibleFields: []string{}}

	visible := formschema.VisibleFields(ind.Form, values)
	for _, f := range visible {
		res.VisibleFields = append(res.VisibleFields, f.ID)
	}
	res.MissingRequired = formschema.MissingRequired(ind.Form, values)

	effective := withoutHidden(ind.Form, visible, values)
	res.MOV = mov.Evaluate(ind.Checklist, effective)
	res.IsCompleted = len(res.MissingRequired) == 0 && res.MOV.Status != mov.StatusIncomplete

	if ind.Calculation != nil {
		res.CalculationStatus = s.eval.Status(ind.Calculation, effective)
	}
	if res.IsCompleted {
		res.Status = Combine(res.CalculationStatus, res.MOV.Status)
	}
	return res
}

// Combine merges a calculation status (empty when the indicator has no
// calculation schema) with the MOV outcome.
func Combine(calc calculation.Status, movStatus mov.Status) calculation.Status {
	if calc == calculation.StatusFail || movStatus == mov.StatusFailed {
		return calculation.StatusFail
	}
	if calc == calculation.StatusConsidered || movStatus == mov.StatusConsidered {
		return calculation.StatusConsidered
	}
	return calculation.StatusPass
}

func withoutHidden(form *formschema.Schema, visible []formschema.Field, values map[string]any) map[string]any {
	if form == nil || len(form.Fields) == len(visible) {
		return values
	}
	shown := make(map[string]bool, len(visible))
	for _, f := range visible {
		shown[f.ID] = true
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, f := range form.Fields {
		if !shown[f.ID] {
			delete(out, f.ID)
		}
	}
	return out
}
