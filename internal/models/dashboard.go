package models

import (
	"encoding/json"
	"time"
)

// ── Analytics ────────────────────────────────────────────────────

// StatusCount is a count of assessments in one workflow status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// IndicatorStats counts computed statuses for one indicator.
type IndicatorStats struct {
	IndicatorID string `json:"indicatorId"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Passed      int    `json:"passed"`
	Considered  int    `json:"considered"`
	Failed      int    `json:"failed"`
	Pending     int    `json:"pending"`
}

// AreaStats is the pass rate of one governance area. Considered counts as
// passing.
type AreaStats struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	IsCore   bool    `json:"isCore"`
	Passed   int     `json:"passed"`
	Scored   int     `json:"scored"`
	PassRate float64 `json:"passRate"`
}

// Analytics is the dashboard payload.
type Analytics struct {
	Year          int              `json:"year"`
	ByStatus      []StatusCount    `json:"byStatus"`
	Indicators    []IndicatorStats `json:"indicators"`
	Areas         []AreaStats      `json:"areas"`
	LockedCount   int              `json:"lockedCount"`
	TotalBarangay int              `json:"totalBarangays"`
}

// ── Activity ─────────────────────────────────────────────────────

type ActivityEntry struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"userId"`
	UserName   *string         `json:"userName"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"createdAt"`
}
