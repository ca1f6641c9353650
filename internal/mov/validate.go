package mov

import (
	"fmt"
	"strings"
	"time"

	"github.com/generyand/sinag-sub010/internal/compliance"
)

// Severity separates blocking problems from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding tied to the item that produced it.
type Issue struct {
	ItemID   string   `json:"itemId"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of validating a checklist. Errors block saving,
// warnings do not.
type Result struct {
	IsValid      bool               `json:"isValid"`
	Errors       []Issue            `json:"errors"`
	Warnings     []Issue            `json:"warnings"`
	ErrorsByItem map[string][]Issue `json:"errorsByItem"`
}

// ForItem returns every issue recorded against the given item.
func (r Result) ForItem(id string) []Issue {
	return r.ErrorsByItem[id]
}

// Validate checks a checklist configuration and reports structural errors and
// policy warnings. It never fails: a nil or empty checklist is valid.
func Validate(cfg *Checklist) Result {
	var issues []Issue
	if cfg != nil {
		for _, item := range cfg.Items {
			issues = append(issues, validateItem(item)...)
		}
	}
	return newResult(issues)
}

func newResult(issues []Issue) Result {
	res := Result{
		Errors:       []Issue{},
		Warnings:     []Issue{},
		ErrorsByItem: map[string][]Issue{},
	}
	for _, is := range issues {
		if is.Severity == SeverityError {
			res.Errors = append(res.Errors, is)
		} else {
			res.Warnings = append(res.Warnings, is)
		}
		res.ErrorsByItem[is.ItemID] = append(res.ErrorsByItem[is.ItemID], is)
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

func validateItem(item Item) []Issue {
	if item == nil {
		return nil
	}

	var issues []Issue
	if _, bad := item.(Malformed); !bad && strings.TrimSpace(item.ItemLabel()) == "" {
		issues = append(issues, errorf(item, "label", "Label is required"))
	}

	switch it := item.(type) {
	case Checkbox:
		// label only
	case Group:
		issues = append(issues, validateGroup(it)...)
	case CurrencyInput:
		issues = append(issues, validateRange(it, it.MinValue, it.MaxValue, it.Threshold)...)
		if it.Threshold == nil {
			issues = append(issues, warnf(it, "threshold",
				"No threshold set; the amount will not be checked against a passing value"))
		}
	case NumberInput:
		issues = append(issues, validateRange(it, it.MinValue, it.MaxValue, it.Threshold)...)
	case DateInput:
		issues = append(issues, validateDate(it)...)
	case RadioGroup:
		issues = append(issues, validateOptions(it, it.Options, 2, "Radio group")...)
		if len(it.Options) >= 2 && it.DefaultValue != nil && *it.DefaultValue != "" && !hasOption(it.Options, *it.DefaultValue) {
			issues = append(issues, warnf(it, "default_value",
				fmt.Sprintf("Default value %q does not match any option", *it.DefaultValue)))
		}
	case Dropdown:
		issues = append(issues, validateOptions(it, it.Options, 1, "Dropdown")...)
	case Unknown:
		issues = append(issues, errorf(it, "type", fmt.Sprintf("Unknown item type %q", it.Type)))
	case Malformed:
		issues = append(issues, errorf(it, it.Field, fmt.Sprintf("Invalid %s: %s", it.Field, it.Problem)))
		for _, child := range it.Children {
			issues = append(issues, validateItem(child)...)
		}
	}
	return issues
}

func validateGroup(g Group) []Issue {
	var issues []Issue

	if len(g.Children) == 0 {
		issues = append(issues, errorf(g, "children", "Group must contain at least one item"))
	}

	switch g.LogicOperator {
	case LogicOr:
		switch {
		case g.MinRequired == nil:
			issues = append(issues, errorf(g, "min_required", "OR groups must specify min_required"))
		case *g.MinRequired < 1:
			issues = append(issues, errorf(g, "min_required", "min_required must be at least 1"))
		case *g.MinRequired > len(g.Children):
			issues = append(issues, errorf(g, "min_required",
				fmt.Sprintf("min_required cannot exceed number of children (%d)", len(g.Children))))
		}
	case LogicAnd:
		if g.MinRequired != nil {
			issues = append(issues, warnf(g, "min_required",
				"min_required is ignored for AND groups; all items are required"))
		}
	default:
		issues = append(issues, errorf(g, "logic_operator",
			fmt.Sprintf("Logic operator must be AND or OR, got %q", g.LogicOperator)))
	}

	for _, child := range g.Children {
		issues = append(issues, validateItem(child)...)
	}
	return issues
}

func validateRange(item Item, min, max, threshold *float64) []Issue {
	var issues []Issue
	if min != nil && max != nil && *min > *max {
		issues = append(issues, errorf(item, "max_value",
			"Maximum value must be greater than or equal to minimum value"))
		// Threshold bounds are meaningless when the range is inverted.
		return issues
	}
	if threshold == nil {
		return issues
	}
	if min != nil && *threshold < *min {
		issues = append(issues, warnf(item, "threshold",
			fmt.Sprintf("Threshold %s is below the minimum value %s", formatNumber(*threshold), formatNumber(*min))))
	}
	if max != nil && *threshold > *max {
		issues = append(issues, warnf(item, "threshold",
			fmt.Sprintf("Threshold %s is above the maximum value %s", formatNumber(*threshold), formatNumber(*max))))
	}
	return issues
}

func validateDate(d DateInput) []Issue {
	var issues []Issue

	minDate, minOK := parseOptionalDate(d.MinDate)
	if !minOK {
		issues = append(issues, errorf(d, "min_date", "Minimum date must be a valid date (YYYY-MM-DD)"))
	}
	maxDate, maxOK := parseOptionalDate(d.MaxDate)
	if !maxOK {
		issues = append(issues, errorf(d, "max_date", "Maximum date must be a valid date (YYYY-MM-DD)"))
	}
	if minDate != nil && maxDate != nil && minDate.After(*maxDate) {
		issues = append(issues, errorf(d, "max_date", "Maximum date must be on or after the minimum date"))
	}

	if d.ConsideredStatusEnabled {
		if d.GracePeriodDays == nil || *d.GracePeriodDays <= 0 {
			issues = append(issues, errorf(d, "grace_period_days",
				"Grace period (days) is required and must be greater than 0 when considered status is enabled"))
		}
	} else if d.GracePeriodDays != nil {
		issues = append(issues, warnf(d, "grace_period_days",
			"Grace period is ignored unless considered status is enabled"))
	}
	return issues
}

// validateOptions reports option problems. Too few options returns at once so
// the builder is not flooded with per-option noise.
func validateOptions(item Item, options []Option, minCount int, kind string) []Issue {
	if len(options) < minCount {
		noun := "options"
		if minCount == 1 {
			noun = "option"
		}
		return []Issue{errorf(item, "options", fmt.Sprintf("%s must have at least %d %s", kind, minCount, noun))}
	}

	var issues []Issue
	seen := make(map[string]bool, len(options))
	duplicate := false
	for i, opt := range options {
		if strings.TrimSpace(opt.Label) == "" {
			issues = append(issues, errorf(item, "options", fmt.Sprintf("Option %d label is required", i+1)))
		}
		if strings.TrimSpace(opt.Value) == "" {
			issues = append(issues, errorf(item, "options", fmt.Sprintf("Option %d value is required", i+1)))
			continue
		}
		if seen[opt.Value] {
			duplicate = true
		}
		seen[opt.Value] = true
	}
	if duplicate {
		issues = append(issues, errorf(item, "options", "Option values must be unique"))
	}
	return issues
}

func hasOption(options []Option, value string) bool {
	for _, opt := range options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func parseOptionalDate(s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	d, err := compliance.ParseDate(*s)
	if err != nil {
		return nil, false
	}
	return &d, true
}

func errorf(item Item, field, msg string) Issue {
	return Issue{ItemID: item.ItemID(), Field: field, Message: msg, Severity: SeverityError}
}

func warnf(item Item, field, msg string) Issue {
	return Issue{ItemID: item.ItemID(), Field: field, Message: msg, Severity: SeverityWarning}
}

func formatNumber(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
