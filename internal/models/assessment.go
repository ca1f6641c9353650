package models

import (
	"encoding/json"
	"time"
)

// ── Assessment ───────────────────────────────────────────────────

// Assessment is one barangay's SGLGB assessment for a year.
type Assessment struct {
	ID                 string     `json:"id"`
	BarangayID         string     `json:"barangayId"`
	BarangayName       string     `json:"barangayName"`
	Year               int        `json:"year"`
	Status             string     `json:"status"`
	ReworkCount        int        `json:"reworkCount"`
	CalibrationCount   int        `json:"calibrationCount"`
	SubmissionDeadline *time.Time `json:"submissionDeadline"`
	GracePeriodDays    int        `json:"gracePeriodDays"`
	IsLocked           bool       `json:"isLocked"`
	SubmittedAt        *time.Time `json:"submittedAt"`
	CompletedAt        *time.Time `json:"completedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// AssessmentWithProgress adds fields computed on read.
type AssessmentWithProgress struct {
	Assessment
	// GraceDaysRemaining is set while the deadline has passed but the grace
	// period has not.
	GraceDaysRemaining *int `json:"graceDaysRemaining,omitempty"`
	CompletedResponses int  `json:"completedResponses"`
	TotalIndicators    int  `json:"totalIndicators"`
}

// CreateAssessmentRequest opens an assessment.
type CreateAssessmentRequest struct {
	BarangayID         string  `json:"barangayId"`
	Year               int     `json:"year"`
	SubmissionDeadline *string `json:"submissionDeadline"`
	GracePeriodDays    int     `json:"gracePeriodDays"`
}

func (r *CreateAssessmentRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.BarangayID == "" {
		errors["barangayId"] = "Barangay is required"
	}
	if r.Year < 2000 || r.Year > 2100 {
		errors["year"] = "Year must be between 2000 and 2100"
	}
	if r.GracePeriodDays < 0 {
		errors["gracePeriodDays"] = "Grace period cannot be negative"
	}
	if r.SubmissionDeadline != nil {
		if _, err := time.Parse("2006-01-02", *r.SubmissionDeadline); err != nil {
			errors["submissionDeadline"] = "Deadline must be YYYY-MM-DD"
		}
	}
	return errors
}

// ── Responses ────────────────────────────────────────────────────

// AssessmentResponse holds the answers for one indicator plus the scoring
// computed when they were saved.
type AssessmentResponse struct {
	ID             string          `json:"id"`
	AssessmentID   string          `json:"assessmentId"`
	IndicatorID    string          `json:"indicatorId"`
	IndicatorCode  string          `json:"indicatorCode"`
	IndicatorName  string          `json:"indicatorName"`
	ResponseData   json.RawMessage `json:"responseData"`
	MOVOutcome     json.RawMessage `json:"movOutcome"`
	ComputedStatus *string         `json:"computedStatus"`
	MissingFields  []string        `json:"missingFields"`
	IsCompleted    bool            `json:"isCompleted"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// SaveResponseRequest replaces the answers for one indicator.
type SaveResponseRequest struct {
	Values map[string]any `json:"values"`
}

func (r *SaveResponseRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.Values == nil {
		errors["values"] = "values is required"
	}
	return errors
}

// WorkflowActionRequest carries an optional comment recorded in the activity log.
type WorkflowActionRequest struct {
	Comment string `json:"comment"`
}

// ── MOV Files ────────────────────────────────────────────────────

type MOVFile struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	IndicatorID  string    `json:"indicatorId"`
	FileName     string    `json:"fileName"`
	FileURL      string    `json:"fileUrl"`
	StorageKey   string    `json:"-"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedBy   *string   `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UnlockRequest reopens a locked assessment, optionally with a new deadline.
type UnlockRequest struct {
	SubmissionDeadline *string `json:"submissionDeadline"`
	GracePeriodDays    *int    `json:"gracePeriodDays"`
}

func (r *UnlockRequest) Validate() map[string]string {
	errors := map[string]string{}
	if r.SubmissionDeadline != nil {
		if _, err := time.Parse("2006-01-02", *r.SubmissionDeadline); err != nil {
			errors["submissionDeadline"] = "Deadline must be YYYY-MM-DD"
		}
	}
	if r.GracePeriodDays != nil && *r.GracePeriodDays < 0 {
		errors["gracePeriodDays"] = "Grace period cannot be negative"
	}
	return errors
}

// Apply returns the deadline and grace period an assessment has once the
// request is applied to its current values. Call it after Validate.
func (r *UnlockRequest) Apply(deadline *time.Time, graceDays int) (*time.Time, int) {
	if r.SubmissionDeadline != nil {
		if d, err := time.Parse("2006-01-02", *r.SubmissionDeadline); err == nil {
			deadline = &d
		}
	}
	if r.GracePeriodDays != nil {
		graceDays = *r.GracePeriodDays
	}
	return deadline, graceDays
}
