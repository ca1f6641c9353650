package calculation

import "fmt"

// Problem is a structural defect that prevents a schema from being saved.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

var validComparisons = map[Comparison]bool{
	OpGTE: true, OpLTE: true, OpGT: true, OpLT: true, OpEQ: true,
}

// ValidateSchema reports structural problems. A nil schema has none.
func ValidateSchema(s *Schema) []Problem {
	problems := []Problem{}
	if s == nil {
		return problems
	}
	for i, g := range s.ConditionGroups {
		path := fmt.Sprintf("condition_groups[%d]", i)
		if g.Operator != OperatorAnd && g.Operator != OperatorOr {
			problems = append(problems, Problem{path + ".operator", fmt.Sprintf("Unknown group operator %q", string(g.Operator))})
		}
		if len(g.Rules) == 0 {
			problems = append(problems, Problem{path + ".rules", "Condition group must contain at least one rule"})
		}
		problems = append(problems, validateRules(path+".rules", g.Rules)...)
	}
	for _, st := range []Status{s.OutputStatusOnPass, s.OutputStatusOnFail} {
		if st != "" && st != StatusPass && st != StatusFail && st != StatusConsidered {
			problems = append(problems, Problem{"output_status", fmt.Sprintf("Unknown output status %q", string(st))})
		}
	}
	return problems
}

func validateRules(path string, rules Rules) []Problem {
	var out []Problem
	for i, r := range rules {
		out = append(out, validateRule(fmt.Sprintf("%s[%d]", path, i), r)...)
	}
	return out
}

func validateRule(path string, r Rule) []Problem {
	var out []Problem
	switch r := r.(type) {
	case PercentageThreshold:
		out = append(out, requireField(path, r.FieldID)...)
		out = append(out, checkComparison(path, r.Operator)...)
		if r.Threshold < 0 || r.Threshold > 100 {
			out = append(out, Problem{path + ".threshold", "Percentage threshold must be between 0 and 100"})
		}
	case CountThreshold:
		out = append(out, requireField(path, r.FieldID)...)
		out = append(out, checkComparison(path, r.Operator)...)
		if r.Threshold < 0 {
			out = append(out, Problem{path + ".threshold", "Count threshold cannot be negative"})
		}
	case MatchValue:
		out = append(out, requireField(path, r.FieldID)...)
		if r.Operator != "" && r.Operator != OpEQ && r.Operator != OpNEQ {
			out = append(out, Problem{path + ".operator", fmt.Sprintf("MATCH_VALUE only supports == and !=, got %q", string(r.Operator))})
		}
	case BBIFunctionalityCheck:
		if r.BBIID == "" {
			out = append(out, Problem{path + ".bbi_id", "bbi_id is required"})
		}
		if r.ExpectedStatus == "" {
			out = append(out, Problem{path + ".expected_status", "expected_status is required"})
		}
	case AndAll:
		out = append(out, nested(path, r.Conditions)...)
	case OrAny:
		out = append(out, nested(path, r.Conditions)...)
	case Unknown:
		out = append(out, Problem{path + ".rule_type", fmt.Sprintf("Unknown rule_type %q", string(r.RuleType))})
	case Malformed:
		at := path
		if r.Field != "" {
			at = path + "." + r.Field
		}
		out = append(out, Problem{at, "Invalid value: " + r.Problem})
	default:
		out = append(out, Problem{path, "Rule is empty"})
	}
	return out
}

func nested(path string, conds Rules) []Problem {
	if len(conds) == 0 {
		return []Problem{{path + ".conditions", "Nested group must contain at least one condition"}}
	}
	return validateRules(path+".conditions", conds)
}

func requireField(path, fieldID string) []Problem {
	if fieldID == "" {
		return []Problem{{path + ".field_id", "field_id is required"}}
	}
	return nil
}

func checkComparison(path string, op Comparison) []Problem {
	if !validComparisons[op] {
		return []Problem{{path + ".operator", fmt.Sprintf("Unknown comparison operator %q", string(op))}}
	}
	return nil
}
