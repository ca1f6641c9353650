package calculation

import (
	"fmt"
	"strconv"
	"strings"
)

var comparisonWords = map[Comparison]string{
	OpGTE: "at least",
	OpLTE: "at most",
	OpGT:  "more than",
	OpLT:  "less than",
	OpEQ:  "exactly",
	OpNEQ: "not",
}

// Describe renders a rule as a sentence for the indicator builder and the CLI.
func Describe(r Rule) string {
	switch r := r.(type) {
	case PercentageThreshold:
		return fmt.Sprintf("%s is %s %s%%", r.FieldID, comparisonWord(r.Operator), formatFloat(r.Threshold))
	case CountThreshold:
		return fmt.Sprintf("%s count is %s %s", r.FieldID, comparisonWord(r.Operator), formatFloat(r.Threshold))
	case MatchValue:
		if r.Operator == OpNEQ {
			return fmt.Sprintf("%s is not %v", r.FieldID, r.ExpectedValue)
		}
		return fmt.Sprintf("%s equals %v", r.FieldID, r.ExpectedValue)
	case BBIFunctionalityCheck:
		return fmt.Sprintf("BBI %s is %s", r.BBIID, r.ExpectedStatus)
	case AndAll:
		return "all of: " + describeList(r.Conditions)
	case OrAny:
		return "any of: " + describeList(r.Conditions)
	case Unknown:
		return fmt.Sprintf("unsupported rule %q", string(r.RuleType))
	case Malformed:
		return fmt.Sprintf("malformed %s rule", string(r.RuleType))
	case nil:
		return "empty rule"
	}
	return "unsupported rule"
}

// DescribeGroup renders a condition group.
func DescribeGroup(g ConditionGroup) string {
	joiner := " AND "
	if g.Operator == OperatorOr {
		joiner = " OR "
	}
	parts := make([]string, 0, len(g.Rules))
	for _, r := range g.Rules {
		parts = append(parts, Describe(r))
	}
	return strings.Join(parts, joiner)
}

func describeList(rules Rules) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		parts = append(parts, "("+Describe(r)+")")
	}
	return strings.Join(parts, ", ")
}

func comparisonWord(op Comparison) string {
	if w, ok := comparisonWords[op]; ok {
		return w
	}
	return string(op)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
