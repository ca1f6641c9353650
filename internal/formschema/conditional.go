package formschema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// EvaluateConditional evaluates one rule against the current answers. It
// never panics; unknown operators evaluate to false.
//
// greaterThan and lessThan fail closed: if either side is not numeric the
// rule is false.
func EvaluateConditional(rule ConditionalRule, values map[string]any) bool {
	actual, answered := values[rule.FieldID]

	// An unanswered field equals nothing, not even an explicit null.
	switch rule.Operator {
	case OpEquals:
		return answered && strictEqual(actual, rule.Value)
	case OpNotEquals:
		return !answered || !strictEqual(actual, rule.Value)
	case OpGreaterThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(rule.Value)
		return okA && okB && a > b
	case OpLessThan:
		a, okA := toNumber(actual)
		b, okB := toNumber(rule.Value)
		return okA && okB && a < b
	case OpContains:
		if actual == nil || rule.Value == nil {
			return false
		}
		return strings.Contains(strings.ToLower(toString(actual)), strings.ToLower(toString(rule.Value)))
	default:
		return false
	}
}

// IsVisible reports whether every conditional rule on the field holds.
// Fields without rules are always visible.
func IsVisible(f Field, values map[string]any) bool {
	for _, r := range f.ConditionalLogic {
		if !EvaluateConditional(r, values) {
			return false
		}
	}
	return true
}

// VisibleFields returns the visible fields in schema order.
func VisibleFields(s *Schema, values map[string]any) []Field {
	out := []Field{}
	if s == nil {
		return out
	}
	for _, f := range s.Fields {
		if IsVisible(f, values) {
			out = append(out, f)
		}
	}
	return out
}

// MissingRequired lists the ids of required visible fields without an answer.
// Hidden required fields never count as missing.
func MissingRequired(s *Schema, values map[string]any) []string {
	missing := []string{}
	for _, f := range VisibleFields(s, values) {
		if f.Required && isBlank(values[f.ID]) {
			missing = append(missing, f.ID)
		}
	}
	return missing
}

// strictEqual compares without type coercion. Numbers of different Go kinds
// are the same number if their values match; values of incomparable types
// are never equal.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		return ok && x == y
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func numeric(v any) (float64, bool) {
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

// toNumber accepts numbers and numeric strings. Blank strings, booleans and
// nil are not numeric.
func toNumber(v any) (float64, bool) {
	if n, ok := numeric(v); ok {
		return n, !math.IsNaN(n)
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = toString(p)
		}
		return strings.Join(parts, ",")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
