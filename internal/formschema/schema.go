// Package formschema decides which fields of an indicator's dynamic form are
// visible for the current answers, and which visible required fields are
// still unanswered.
package formschema

import (
	"bytes"
	"encoding/json"
)

// Operator is a conditional-logic comparison.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpContains    Operator = "contains"
)

// ConditionalRule makes a field depend on another field's answer.
type ConditionalRule struct {
	FieldID  string   `json:"field_id"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Field is one input of a form schema.
type Field struct {
	ID               string            `json:"field_id"`
	Type             string            `json:"field_type"`
	Label            string            `json:"label"`
	Required         bool              `json:"required,omitempty"`
	HelpText         string            `json:"help_text,omitempty"`
	Options          []Option          `json:"options,omitempty"`
	ConditionalLogic []ConditionalRule `json:"conditional_logic,omitempty"`
}

// Schema is the form_schema stored on an indicator.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Parse decodes a form schema. Empty input yields an empty schema.
func Parse(data []byte) (*Schema, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Schema{}, nil
	}
	var s Schema
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Field returns the field with the given id.
func (s *Schema) Field(id string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
