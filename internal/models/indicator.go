package models

import (
	"encoding/json"
	"strings"

	"github.com/generyand/sinag-sub010/internal/compliance"
)

// ── Indicator ────────────────────────────────────────────────────

// Indicator is one SGLGB indicator with its form, MOV checklist and
// calculation schema stored as JSONB.
type Indicator struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	GovernanceArea    string          `json:"governanceArea"`
	AreaName          string          `json:"areaName"`
	FormSchema        json.RawMessage `json:"formSchema"`
	MOVChecklist      json.RawMessage `json:"movChecklist"`
	CalculationSchema json.RawMessage `json:"calculationSchema"`
	IsActive          bool            `json:"isActive"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
}

// IndicatorRequest creates or replaces an indicator.
type IndicatorRequest struct {
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	GovernanceArea    string          `json:"governanceArea"`
	FormSchema        json.RawMessage `json:"formSchema"`
	MOVChecklist      json.RawMessage `json:"movChecklist"`
	CalculationSchema json.RawMessage `json:"calculationSchema"`
	IsActive          *bool           `json:"isActive"`
}

// Validate checks the plain fields. The JSON documents are validated by the
// checklist and calculation validators.
func (r *IndicatorRequest) Validate() map[string]string {
	errors := map[string]string{}
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	if r.Code == "" {
		errors["code"] = "Indicator code is required"
	}
	if r.Name == "" {
		errors["name"] = "Indicator name is required"
	}
	if !compliance.IsKnownArea(r.GovernanceArea) {
		errors["governanceArea"] = "Unknown governance area"
	}
	return errors
}

// PreviewRequest carries sample answers for an indicator preview.
type PreviewRequest struct {
	Values map[string]any `json:"values"`
	// BBIStatuses overrides the stored statuses (bbi code → status).
	BBIStatuses map[string]string `json:"bbiStatuses"`
}
