// Package compliance provides pure date and deadline computations for
// SGLGB assessments: whether a submitted date satisfies a MOV window, whether
// it lands inside a grace period ("considered"), and whether an assessment
// phase deadline has lapsed. These functions have ZERO dependencies on HTTP,
// database, or any other infrastructure.
package compliance

import (
	"fmt"
	"strings"
	"time"
)

// ── Date Status Constants ────────────────────────────────────────
// Status is always computed from (value, window, grace). It is never stored.

const (
	DateMissing    = "missing"    // No date submitted
	DatePassed     = "passed"     // Inside [min, max]
	DateConsidered = "considered" // Past max but within the grace period
	DateFailed     = "failed"     // Outside the window and any grace
)

// DateLayout is the ISO calendar date format used by MOV date items.
const DateLayout = "2006-01-02"

// ── Governance Areas ─────────────────────────────────────────────

// GovernanceArea describes one SGLGB governance area.
type GovernanceArea struct {
	Code        string
	DisplayName string
	IsCore      bool
}

// GovernanceAreas lists the SGLGB governance areas. Core areas must all pass
// for a barangay to be recommended for the seal.
var GovernanceAreas = []GovernanceArea{
	{Code: "financial_administration", DisplayName: "Financial Administration and Sustainability", IsCore: true},
	{Code: "disaster_preparedness", DisplayName: "Disaster Preparedness", IsCore: true},
	{Code: "safety_peace_order", DisplayName: "Safety, Peace and Order", IsCore: true},
	{Code: "social_protection", DisplayName: "Social Protection and Sensitivity", IsCore: false},
	{Code: "business_friendliness", DisplayName: "Business-Friendliness and Competitiveness", IsCore: false},
	{Code: "environmental_management", DisplayName: "Environmental Management", IsCore: false},
}

// ── Date Status Computation ──────────────────────────────────────

// ParseDate parses a YYYY-MM-DD date. Surrounding whitespace is ignored and a
// trailing time component (RFC 3339) is tolerated and truncated.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return truncateToDay(t.UTC()), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// DateStatus derives the status of a submitted date against an optional
// window. Parameters:
//   - value:             the submitted date (nil → missing)
//   - minDate, maxDate:  inclusive window bounds (nil → unbounded)
//   - graceDays:         days past maxDate still accepted as "considered"
//   - considered:        whether the grace period applies at all
func DateStatus(value, minDate, maxDate *time.Time, graceDays int, considered bool) string {
	if value == nil {
		return DateMissing
	}

	v := truncateToDay(*value)
	if minDate != nil && v.Before(truncateToDay(*minDate)) {
		return DateFailed
	}
	if maxDate == nil {
		return DatePassed
	}

	over := DaysPastDeadline(v, *maxDate)
	switch {
	case over <= 0:
		return DatePassed
	case considered && graceDays > 0 && over <= graceDays:
		return DateConsidered
	default:
		return DateFailed
	}
}

// DaysPastDeadline returns how many whole days value is after deadline.
// Zero or negative means on time.
func DaysPastDeadline(value, deadline time.Time) int {
	return int(truncateToDay(value).Sub(truncateToDay(deadline)).Hours() / 24)
}

// GraceDaysRemaining returns remaining grace days after a missed deadline.
// Returns nil when the deadline has not passed yet or the grace is exhausted.
func GraceDaysRemaining(deadline time.Time, graceDays int, now time.Time) *int {
	if graceDays <= 0 {
		return nil
	}

	today := truncateToDay(now)
	graceEnd := truncateToDay(deadline).AddDate(0, 0, graceDays)

	if !today.After(truncateToDay(deadline)) || today.After(graceEnd) {
		return nil
	}

	remaining := int(graceEnd.Sub(today).Hours() / 24)
	return &remaining
}

// IsPastDeadline reports whether now is beyond deadline plus graceDays.
func IsPastDeadline(deadline time.Time, graceDays int, now time.Time) bool {
	if graceDays < 0 {
		graceDays = 0
	}
	return DaysPastDeadline(now, deadline) > graceDays
}

// ── Helper Computations ──────────────────────────────────────────

// AreaDisplayName returns the human-readable name for a governance area code.
func AreaDisplayName(code string) string {
	for _, ga := range GovernanceAreas {
		if ga.Code == code {
			return ga.DisplayName
		}
	}
	if code == "" {
		return "Governance Area"
	}
	words := strings.Split(strings.ReplaceAll(code, "_", " "), " ")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// IsKnownArea reports whether code names one of the governance areas.
func IsKnownArea(code string) bool {
	for _, ga := range GovernanceAreas {
		if ga.Code == code {
			return true
		}
	}
	return false
}

// IsCoreArea checks if a governance area is one of the core areas.
func IsCoreArea(code string) bool {
	for _, ga := range GovernanceAreas {
		if ga.Code == code {
			return ga.IsCore
		}
	}
	return false
}

// ── Internal Helpers ─────────────────────────────────────────────

// truncateToDay strips the time component, keeping only the date.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
