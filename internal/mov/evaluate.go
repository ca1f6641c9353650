package mov

import (
	"strconv"
	"strings"

	"github.com/generyand/sinag-sub010/internal/compliance"
)

// Status is the assessment-time outcome of a checklist or one of its items.
type Status string

const (
	StatusPassed     Status = "passed"
	StatusConsidered Status = "considered"
	StatusFailed     Status = "failed"
	StatusIncomplete Status = "incomplete"
	// StatusSkipped marks optional items left blank; they do not count
	// towards group logic.
	StatusSkipped Status = "skipped"
)

// Outcome is the result of evaluating submitted responses against a
// checklist.
type Outcome struct {
	Status Status            `json:"status"`
	Items  map[string]Status `json:"items"`
}

// Evaluate scores responses (item id → submitted value) against the
// checklist. The top-level items behave like an AND group. In lenient mode a
// required item left blank is skipped instead of making the outcome
// incomplete.
func Evaluate(cfg *Checklist, responses map[string]any) Outcome {
	out := Outcome{Items: map[string]Status{}}
	if cfg == nil || len(cfg.Items) == 0 {
		out.Status = StatusPassed
		return out
	}

	e := evaluator{responses: responses, lenient: cfg.ValidationMode == ModeLenient, items: out.Items}
	statuses := make([]Status, 0, len(cfg.Items))
	for _, item := range cfg.Items {
		statuses = append(statuses, e.item(item))
	}
	out.Status = combineAll(statuses)
	if out.Status == StatusSkipped {
		out.Status = StatusPassed
	}
	return out
}

type evaluator struct {
	responses map[string]any
	lenient   bool
	items     map[string]Status
}

func (e evaluator) item(item Item) Status {
	var st Status
	switch it := item.(type) {
	case Checkbox:
		st = e.checkbox(it)
	case Group:
		st = e.group(it)
	case CurrencyInput:
		st = e.number(it.Base, it.MinValue, it.MaxValue, it.Threshold)
	case NumberInput:
		st = e.number(it.Base, it.MinValue, it.MaxValue, it.Threshold)
	case DateInput:
		st = e.date(it)
	case RadioGroup:
		st = e.choice(it.Base, it.Options)
	case Dropdown:
		st = e.choice(it.Base, it.Options)
	default:
		st = StatusSkipped
	}
	e.items[item.ItemID()] = st
	return st
}

// blank is the status of an item with no usable answer.
func (e evaluator) blank(b Base) Status {
	if b.Required && !e.lenient {
		return StatusIncomplete
	}
	return StatusSkipped
}

func (e evaluator) checkbox(c Checkbox) Status {
	if truthy(e.responses[c.ID]) {
		return StatusPassed
	}
	if c.Required {
		return StatusFailed
	}
	return StatusSkipped
}

func (e evaluator) group(g Group) Status {
	statuses := make([]Status, 0, len(g.Children))
	for _, child := range g.Children {
		statuses = append(statuses, e.item(child))
	}
	if g.LogicOperator == LogicOr {
		min := 1
		if g.MinRequired != nil && *g.MinRequired > 0 {
			min = *g.MinRequired
		}
		return combineAtLeast(statuses, min)
	}
	return combineAll(statuses)
}

func (e evaluator) number(b Base, min, max, threshold *float64) Status {
	raw, ok := e.responses[b.ID]
	if !ok || raw == nil || raw == "" {
		return e.blank(b)
	}
	v, ok := toNumber(raw)
	if !ok {
		return StatusFailed
	}
	if min != nil && v < *min {
		return StatusFailed
	}
	if max != nil && v > *max {
		return StatusFailed
	}
	if threshold != nil && v < *threshold {
		return StatusFailed
	}
	return StatusPassed
}

func (e evaluator) date(d DateInput) Status {
	raw, _ := e.responses[d.ID].(string)
	if strings.TrimSpace(raw) == "" {
		return e.blank(d.Base)
	}
	value, err := compliance.ParseDate(raw)
	if err != nil {
		return StatusFailed
	}

	minDate, _ := parseOptionalDate(d.MinDate)
	maxDate, _ := parseOptionalDate(d.MaxDate)
	grace := 0
	if d.GracePeriodDays != nil {
		grace = *d.GracePeriodDays
	}

	switch compliance.DateStatus(&value, minDate, maxDate, grace, d.ConsideredStatusEnabled) {
	case compliance.DatePassed:
		return StatusPassed
	case compliance.DateConsidered:
		return StatusConsidered
	default:
		return StatusFailed
	}
}

func (e evaluator) choice(b Base, options []Option) Status {
	var selected []string
	switch v := e.responses[b.ID].(type) {
	case string:
		if v != "" {
			selected = []string{v}
		}
	case []string:
		selected = v
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok && str != "" {
				selected = append(selected, str)
			}
		}
	}
	if len(selected) == 0 {
		return e.blank(b)
	}
	for _, s := range selected {
		if !hasOption(options, s) {
			return StatusFailed
		}
	}
	return StatusPassed
}

// combineAll applies AND semantics over child statuses.
func combineAll(statuses []Status) Status {
	counted, considered, incomplete := 0, false, false
	for _, st := range statuses {
		switch st {
		case StatusFailed:
			return StatusFailed
		case StatusIncomplete:
			incomplete = true
		case StatusConsidered:
			considered = true
		case StatusSkipped:
			continue
		}
		counted++
	}
	switch {
	case counted == 0:
		return StatusSkipped
	case incomplete:
		return StatusIncomplete
	case considered:
		return StatusConsidered
	default:
		return StatusPassed
	}
}

// combineAtLeast applies OR semantics: at least min children must pass or be
// considered. Passing on fully passed children alone beats considered.
func combineAtLeast(statuses []Status, min int) Status {
	passed, considered, incomplete := 0, 0, false
	for _, st := range statuses {
		switch st {
		case StatusPassed:
			passed++
		case StatusConsidered:
			considered++
		case StatusIncomplete:
			incomplete = true
		}
	}
	switch {
	case passed >= min:
		return StatusPassed
	case passed+considered >= min:
		return StatusConsidered
	case incomplete:
		return StatusIncomplete
	default:
		return StatusFailed
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "checked", "1":
			return true
		}
	case float64:
		return b != 0
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		return f, err == nil
	}
	return 0, false
}
