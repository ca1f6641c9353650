// Package calculation evaluates indicator calculation schemas: boolean trees
// of threshold, match, and BBI functionality rules that derive an indicator's
// PASS/FAIL status from submitted form values.
package calculation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// GroupOperator combines the rules of a condition group.
type GroupOperator string

const (
	OperatorAnd GroupOperator = "AND"
	OperatorOr  GroupOperator = "OR"
)

// Comparison is a numeric comparison operator used by threshold rules.
type Comparison string

const (
	OpGTE Comparison = ">="
	OpLTE Comparison = "<="
	OpGT  Comparison = ">"
	OpLT  Comparison = "<"
	OpEQ  Comparison = "=="
	OpNEQ Comparison = "!="
)

// RuleType discriminates rules.
type RuleType string

const (
	RulePercentageThreshold   RuleType = "PERCENTAGE_THRESHOLD"
	RuleCountThreshold        RuleType = "COUNT_THRESHOLD"
	RuleMatchValue            RuleType = "MATCH_VALUE"
	RuleBBIFunctionalityCheck RuleType = "BBI_FUNCTIONALITY_CHECK"
	RuleAndAll                RuleType = "AND_ALL"
	RuleOrAny                 RuleType = "OR_ANY"
)

// Status is the derived indicator status.
type Status string

const (
	StatusPass       Status = "PASS"
	StatusFail       Status = "FAIL"
	StatusConsidered Status = "CONSIDERED"
)

// Rule is a node of a calculation tree. The concrete types below are the only
// implementations.
type Rule interface {
	Type() RuleType
	isRule()
}

// PercentageThreshold compares the percentage derived from a field against
// Threshold (0-100).
type PercentageThreshold struct {
	FieldID   string     `json:"field_id"`
	Operator  Comparison `json:"operator"`
	Threshold float64    `json:"threshold"`
}

// CountThreshold compares a count derived from a field against Threshold.
type CountThreshold struct {
	FieldID   string     `json:"field_id"`
	Operator  Comparison `json:"operator"`
	Threshold float64    `json:"threshold"`
}

// MatchValue checks a field for an exact value.
type MatchValue struct {
	FieldID       string     `json:"field_id"`
	Operator      Comparison `json:"operator,omitempty"`
	ExpectedValue any        `json:"expected_value"`
}

// BBIFunctionalityCheck checks the resolved functionality status of a BBI.
type BBIFunctionalityCheck struct {
	BBIID          string `json:"bbi_id"`
	ExpectedStatus string `json:"expected_status"`
}

// AndAll passes when every nested condition passes.
type AndAll struct {
	Conditions Rules `json:"conditions"`
}

// OrAny passes when at least one nested condition passes.
type OrAny struct {
	Conditions Rules `json:"conditions"`
}

// Unknown preserves a rule with an unrecognised rule_type. It never passes.
type Unknown struct {
	RuleType RuleType
	Raw      json.RawMessage
}

// Malformed keeps a rule whose rule_type is known but whose fields do not
// decode. It never passes and validation reports it at Field.
type Malformed struct {
	RuleType RuleType
	Field    string
	Problem  string
	Raw      json.RawMessage
}

func (PercentageThreshold) Type() RuleType   { return RulePercentageThreshold }
func (CountThreshold) Type() RuleType        { return RuleCountThreshold }
func (MatchValue) Type() RuleType            { return RuleMatchValue }
func (BBIFunctionalityCheck) Type() RuleType { return RuleBBIFunctionalityCheck }
func (AndAll) Type() RuleType                { return RuleAndAll }
func (OrAny) Type() RuleType                 { return RuleOrAny }
func (u Unknown) Type() RuleType             { return u.RuleType }
func (m Malformed) Type() RuleType           { return m.RuleType }

func (PercentageThreshold) isRule()   {}
func (CountThreshold) isRule()        {}
func (MatchValue) isRule()            {}
func (BBIFunctionalityCheck) isRule() {}
func (AndAll) isRule()                {}
func (OrAny) isRule()                 {}
func (Unknown) isRule()               {}
func (Malformed) isRule()             {}

// ConditionGroup is a top-level AND/OR group of rules.
type ConditionGroup struct {
	Operator GroupOperator `json:"operator"`
	Rules    Rules         `json:"rules"`
}

// Schema is the calculation schema stored on an indicator. Every condition
// group must pass for the indicator to pass.
type Schema struct {
	ConditionGroups    []ConditionGroup `json:"condition_groups"`
	OutputStatusOnPass Status           `json:"output_status_on_pass,omitempty"`
	OutputStatusOnFail Status           `json:"output_status_on_fail,omitempty"`
}

// Rules (de)serialises rules through the "rule_type" discriminator.
type Rules []Rule

func (rs *Rules) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*rs = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}

	out := make(Rules, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeRule(raw))
	}
	*rs = out
	return nil
}

func (rs Rules) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(rs))
	for _, r := range rs {
		switch r := r.(type) {
		case Unknown:
			out = append(out, r.Raw)
			continue
		case Malformed:
			out = append(out, r.Raw)
			continue
		}
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
		fields["rule_type"], _ = json.Marshal(r.Type())
		b, err = json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

// decodeRule never fails: undecodable rules come back as Unknown or
// Malformed so the other rules of the schema are still checked.
func decodeRule(raw json.RawMessage) Rule {
	var head struct {
		RuleType RuleType `json:"rule_type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return malformed("", raw, err)
	}

	var (
		r   Rule
		err error
	)
	switch head.RuleType {
	case RulePercentageThreshold:
		var v PercentageThreshold
		err = json.Unmarshal(raw, &v)
		r = v
	case RuleCountThreshold:
		var v CountThreshold
		err = json.Unmarshal(raw, &v)
		r = v
	case RuleMatchValue:
		var v MatchValue
		err = json.Unmarshal(raw, &v)
		r = v
	case RuleBBIFunctionalityCheck:
		var v BBIFunctionalityCheck
		err = json.Unmarshal(raw, &v)
		r = v
	case RuleAndAll:
		var v AndAll
		err = json.Unmarshal(raw, &v)
		r = v
	case RuleOrAny:
		var v OrAny
		err = json.Unmarshal(raw, &v)
		r = v
	default:
		return Unknown{RuleType: head.RuleType, Raw: append(json.RawMessage(nil), raw...)}
	}
	if err != nil {
		return malformed(head.RuleType, raw, err)
	}
	return r
}

func malformed(rt RuleType, raw json.RawMessage, err error) Malformed {
	m := Malformed{
		RuleType: rt,
		Problem:  err.Error(),
		Raw:      append(json.RawMessage(nil), raw...),
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		m.Field = te.Field
		m.Problem = fmt.Sprintf("expected %s, got %s", te.Type, te.Value)
	}
	return m
}

// Parse decodes a calculation schema. Empty input yields nil, meaning the
// indicator has no calculation rules.
func Parse(data []byte) (*Schema, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, nil
	}
	var s Schema
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
