// Package mov models Means of Verification checklists: the typed, nested
// configuration an indicator carries to describe which documents and values a
// validator must inspect. It provides structural validation of a checklist
// (used by the builder before saving) and evaluation of submitted responses
// against it (used at assessment time).
package mov

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ItemType discriminates checklist items.
type ItemType string

const (
	TypeCheckbox      ItemType = "checkbox"
	TypeGroup         ItemType = "group"
	TypeCurrencyInput ItemType = "currency_input"
	TypeNumberInput   ItemType = "number_input"
	TypeDateInput     ItemType = "date_input"
	TypeRadioGroup    ItemType = "radio_group"
	TypeDropdown      ItemType = "dropdown"
)

// LogicOperator combines the children of a group.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// ValidationMode controls how strictly an assessment-time evaluation treats
// optional items.
type ValidationMode string

const (
	ModeStrict  ValidationMode = "strict"
	ModeLenient ValidationMode = "lenient"
)

// Item is one node of a checklist tree. The concrete types below are the only
// implementations; switch on them with a type switch.
type Item interface {
	ItemID() string
	ItemLabel() string
	Kind() ItemType
	isItem()
}

// Base holds the fields every checklist item shares.
type Base struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
	HelpText string `json:"help_text,omitempty"`
}

func (b Base) ItemID() string    { return b.ID }
func (b Base) ItemLabel() string { return b.Label }
func (Base) isItem()             {}

type Checkbox struct {
	Base
	DefaultValue bool `json:"default_value,omitempty"`
}

func (Checkbox) Kind() ItemType { return TypeCheckbox }

// Group combines child items with AND/OR logic. MinRequired is only
// meaningful for OR groups.
type Group struct {
	Base
	LogicOperator LogicOperator `json:"logic_operator"`
	MinRequired   *int          `json:"min_required,omitempty"`
	Children      Items         `json:"children"`
}

func (Group) Kind() ItemType { return TypeGroup }

type CurrencyInput struct {
	Base
	MinValue  *float64 `json:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Currency  string   `json:"currency,omitempty"`
}

func (CurrencyInput) Kind() ItemType { return TypeCurrencyInput }

type NumberInput struct {
	Base
	MinValue  *float64 `json:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Unit      string   `json:"unit,omitempty"`
}

func (NumberInput) Kind() ItemType { return TypeNumberInput }

// DateInput dates are ISO calendar dates (YYYY-MM-DD). With considered status
// enabled, a date past MaxDate but within GracePeriodDays is "considered"
// instead of failed.
type DateInput struct {
	Base
	MinDate                 *string `json:"min_date,omitempty"`
	MaxDate                 *string `json:"max_date,omitempty"`
	ConsideredStatusEnabled bool    `json:"considered_status_enabled,omitempty"`
	GracePeriodDays         *int    `json:"grace_period_days,omitempty"`
}

func (DateInput) Kind() ItemType { return TypeDateInput }

// Option is a selectable choice of a radio group or dropdown.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type RadioGroup struct {
	Base
	Options      []Option `json:"options"`
	DefaultValue *string  `json:"default_value,omitempty"`
}

func (RadioGroup) Kind() ItemType { return TypeRadioGroup }

type Dropdown struct {
	Base
	Options       []Option `json:"options"`
	AllowMultiple bool     `json:"allow_multiple,omitempty"`
}

func (Dropdown) Kind() ItemType { return TypeDropdown }

// Unknown keeps an item whose type tag is not recognised, so the rest of the
// tree still decodes and validation can report it.
type Unknown struct {
	Base
	Type ItemType        `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

func (u Unknown) Kind() ItemType { return u.Type }

// Malformed keeps an item whose type is known but whose fields do not decode,
// for example a string min_required. Field names the offending key. The
// children of a malformed group are kept when they decode so their own
// problems are still reported.
type Malformed struct {
	Base
	Type     ItemType        `json:"-"`
	Field    string          `json:"-"`
	Problem  string          `json:"-"`
	Children Items           `json:"-"`
	Raw      json.RawMessage `json:"-"`
}

func (m Malformed) Kind() ItemType { return m.Type }

// Checklist is the MOV configuration stored on an indicator.
type Checklist struct {
	Items          Items          `json:"items"`
	ValidationMode ValidationMode `json:"validation_mode,omitempty"`
}

// Items is an ordered list of checklist items that (de)serialises through the
// "type" discriminator.
type Items []Item

func (items *Items) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*items = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode checklist items: %w", err)
	}

	out := make(Items, 0, len(raws))
	for _, raw := range raws {
		out = append(out, decodeItem(raw))
	}
	*items = out
	return nil
}

func (items Items) MarshalJSON() ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		if raw := rawItem(item); len(raw) > 0 {
			out = append(out, raw)
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
		fields["type"], _ = json.Marshal(item.Kind())
		b, err = json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

func rawItem(item Item) json.RawMessage {
	switch it := item.(type) {
	case Unknown:
		return it.Raw
	case Malformed:
		return it.Raw
	}
	return nil
}

// decodeItem never fails: items that cannot be decoded come back as Unknown
// or Malformed so validation can report them next to their siblings.
func decodeItem(raw json.RawMessage) Item {
	var head struct {
		Type ItemType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return malformed("", raw, err)
	}

	var (
		it  Item
		err error
	)
	switch head.Type {
	case TypeCheckbox:
		var v Checkbox
		err = json.Unmarshal(raw, &v)
		it = v
	case TypeGroup:
		var v Group
		err = json.Unmarshal(raw, &v)
		it = v
	case TypeCurrencyInput:
		var v CurrencyInput
		err = json.Unmarshal(raw, &v)
		it = v
	case TypeNumberInput:
		var v NumberInput
		err = json.Unmarshal(raw, &v)
		it = v
	case TypeDateInput:
		var v DateInput
		err = json.Unmarshal(raw, &v)
		it = v
	case TypeRadioGroup:
		var v RadioGroup
		err = json.Unmarshal(raw, &v)
		it = v
	case TypeDropdown:
		var v Dropdown
		err = json.Unmarshal(raw, &v)
		it = v
	default:
		return Unknown{Base: lenientBase(raw), Type: head.Type, Raw: append(json.RawMessage(nil), raw...)}
	}
	if err != nil {
		return malformed(head.Type, raw, err)
	}
	return it
}

// lenientBase pulls whatever shared fields decode cleanly.
func lenientBase(raw json.RawMessage) Base {
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(raw, &fields)
	var b Base
	_ = json.Unmarshal(fields["id"], &b.ID)
	_ = json.Unmarshal(fields["label"], &b.Label)
	_ = json.Unmarshal(fields["required"], &b.Required)
	return b
}

func malformed(typ ItemType, raw json.RawMessage, err error) Malformed {
	m := Malformed{
		Base:    lenientBase(raw),
		Type:    typ,
		Field:   "item",
		Problem: err.Error(),
		Raw:     append(json.RawMessage(nil), raw...),
	}
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		if te.Field != "" {
			m.Field = te.Field
		}
		m.Problem = fmt.Sprintf("expected %s, got %s", te.Type, te.Value)
	}
	if typ == TypeGroup {
		var g struct {
			Children Items `json:"children"`
		}
		if json.Unmarshal(raw, &g) == nil {
			m.Children = g.Children
		}
	}
	return m
}

// Parse decodes a checklist from its JSON form. Empty input yields an empty
// checklist.
func Parse(data []byte) (*Checklist, error) {
	var cfg Checklist
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Walk visits every item depth-first in document order.
func Walk(items Items, fn func(item Item, depth int)) {
	walk(items, 0, fn)
}

func walk(items Items, depth int, fn func(Item, int)) {
	for _, item := range items {
		fn(item, depth)
		switch it := item.(type) {
		case Group:
			walk(it.Children, depth+1, fn)
		case Malformed:
			walk(it.Children, depth+1, fn)
		}
	}
}

// CountItems returns the total number of items in the tree, groups included.
func CountItems(items Items) int {
	n := 0
	Walk(items, func(Item, int) { n++ })
	return n
}
