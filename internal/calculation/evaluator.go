package calculation

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// BBIResolver supplies precomputed BBI functionality statuses. The evaluator
// only looks statuses up; it never computes them.
type BBIResolver interface {
	BBIStatus(bbiID string) (status string, ok bool)
}

// StaticBBIStatuses is a map-backed BBIResolver.
type StaticBBIStatuses map[string]string

func (s StaticBBIStatuses) BBIStatus(bbiID string) (string, bool) {
	st, ok := s[bbiID]
	return st, ok
}

// Evaluator evaluates rules against submitted values (field id → value).
// It is stateless apart from its resolver and safe for concurrent use.
type Evaluator struct {
	bbi BBIResolver
}

// NewEvaluator creates an Evaluator. A nil resolver makes every BBI check
// fail.
func NewEvaluator(bbi BBIResolver) *Evaluator {
	return &Evaluator{bbi: bbi}
}

// Status derives the indicator status for a schema. A nil schema passes.
func (e *Evaluator) Status(s *Schema, values map[string]any) Status {
	pass, fail := StatusPass, StatusFail
	if s != nil && s.OutputStatusOnPass != "" {
		pass = s.OutputStatusOnPass
	}
	if s != nil && s.OutputStatusOnFail != "" {
		fail = s.OutputStatusOnFail
	}
	if e.EvaluateSchema(s, values) {
		return pass
	}
	return fail
}

// EvaluateSchema reports whether every condition group passes.
func (e *Evaluator) EvaluateSchema(s *Schema, values map[string]any) bool {
	if s == nil {
		return true
	}
	for _, g := range s.ConditionGroups {
		if !e.EvaluateGroup(g, values) {
			return false
		}
	}
	return true
}

// EvaluateGroup evaluates a condition group. AND stops at the first failing
// rule, OR at the first passing one. An empty AND group passes and an empty
// OR group fails.
func (e *Evaluator) EvaluateGroup(g ConditionGroup, values map[string]any) bool {
	switch g.Operator {
	case OperatorAnd:
		return e.all(g.Rules, values)
	case OperatorOr:
		return e.any(g.Rules, values)
	default:
		return false
	}
}

// EvaluateRule evaluates a single rule, recursing into nested groups.
func (e *Evaluator) EvaluateRule(r Rule, values map[string]any) bool {
	switch r := r.(type) {
	case PercentageThreshold:
		v, ok := percentage(values[r.FieldID])
		return ok && compare(v, r.Operator, r.Threshold)
	case CountThreshold:
		v, ok := count(values[r.FieldID])
		return ok && compare(v, r.Operator, r.Threshold)
	case MatchValue:
		v, ok := values[r.FieldID]
		if !ok {
			return false
		}
		switch r.Operator {
		case "", OpEQ:
			return matches(v, r.ExpectedValue)
		case OpNEQ:
			return !matches(v, r.ExpectedValue)
		default:
			return false
		}
	case BBIFunctionalityCheck:
		if e.bbi == nil {
			return false
		}
		st, ok := e.bbi.BBIStatus(r.BBIID)
		return ok && strings.EqualFold(normalizeStatus(st), normalizeStatus(r.ExpectedStatus))
	case AndAll:
		return e.all(r.Conditions, values)
	case OrAny:
		return e.any(r.Conditions, values)
	default:
		return false
	}
}

func (e *Evaluator) all(rules Rules, values map[string]any) bool {
	for _, r := range rules {
		if !e.EvaluateRule(r, values) {
			return false
		}
	}
	return true
}

func (e *Evaluator) any(rules Rules, values map[string]any) bool {
	for _, r := range rules {
		if e.EvaluateRule(r, values) {
			return true
		}
	}
	return false
}

// epsilon absorbs float noise from derived percentages (e.g. 2/3*100).
const epsilon = 1e-9

func compare(v float64, op Comparison, threshold float64) bool {
	switch op {
	case OpGTE:
		return v >= threshold-epsilon
	case OpLTE:
		return v <= threshold+epsilon
	case OpGT:
		return v > threshold+epsilon
	case OpLT:
		return v < threshold-epsilon
	case OpEQ:
		return math.Abs(v-threshold) <= epsilon
	default:
		return false
	}
}

// percentage derives a percentage from a field value: numbers are taken as
// already being a percentage; lists and maps of checkbox states yield
// checked/total*100.
func percentage(v any) (float64, bool) {
	if n, ok := toNumber(v); ok {
		return n, true
	}
	checked, total, ok := tally(v)
	if !ok || total == 0 {
		return 0, false
	}
	return float64(checked) / float64(total) * 100, true
}

// count derives a count: numbers are used as-is, collections count their
// checked entries.
func count(v any) (float64, bool) {
	if n, ok := toNumber(v); ok {
		return n, true
	}
	checked, _, ok := tally(v)
	if !ok {
		return 0, false
	}
	return float64(checked), true
}

func tally(v any) (checked, total int, ok bool) {
	switch c := v.(type) {
	case []any:
		for _, x := range c {
			total++
			if isChecked(x) {
				checked++
			}
		}
		return checked, total, true
	case []string:
		for _, x := range c {
			total++
			if isChecked(x) {
				checked++
			}
		}
		return checked, total, true
	case []bool:
		for _, x := range c {
			total++
			if x {
				checked++
			}
		}
		return checked, total, true
	case map[string]any:
		for _, x := range c {
			total++
			if isChecked(x) {
				checked++
			}
		}
		return checked, total, true
	case map[string]bool:
		for _, x := range c {
			total++
			if x {
				checked++
			}
		}
		return checked, total, true
	}
	return 0, 0, false
}

func isChecked(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false")
	case float64:
		return x != 0
	case nil:
		return false
	}
	return true
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// matches compares a submitted value with an expected value. Numbers compare
// numerically regardless of Go type; everything else must be deeply equal.
func matches(got, want any) bool {
	if g, ok := numeric(got); ok {
		if w, ok := numeric(want); ok {
			return g == w
		}
		return false
	}
	return reflect.DeepEqual(got, want)
}

// numeric only accepts real number kinds, never strings.
func numeric(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// normalizeStatus folds the "Non-Functional"/"non_functional" spellings
// used by different screens into one form.
func normalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}
