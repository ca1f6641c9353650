package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/compliance"
	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/metrics"
	"github.com/generyand/sinag-sub010/internal/models"
	"github.com/generyand/sinag-sub010/internal/scoring"
	"github.com/generyand/sinag-sub010/internal/workflow"
)

// AssessmentHandler runs the assessment lifecycle: creation, answering
// indicators (scored on every save) and workflow actions.
type AssessmentHandler struct {
	db  database.Service
	now func() time.Time
}

func NewAssessmentHandler(db database.Service) *AssessmentHandler {
	return &AssessmentHandler{db: db, now: time.Now}
}

const assessmentColumns = `a.id, a.barangay_id::text, b.name, a.year, a.status,
	a.rework_count, a.calibration_count, a.submission_deadline, a.grace_period_days,
	a.is_locked, a.submitted_at, a.completed_at, a.created_at, a.updated_at`

func scanAssessment(row interface{ Scan(...any) error }, a *models.Assessment, extra ...any) error {
	dest := []any{
		&a.ID, &a.BarangayID, &a.BarangayName, &a.Year, &a.Status,
		&a.ReworkCount, &a.CalibrationCount, &a.SubmissionDeadline, &a.GracePeriodDays,
		&a.IsLocked, &a.SubmittedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (h *AssessmentHandler) withProgress(a models.Assessment, completed, total int) models.AssessmentWithProgress {
	out := models.AssessmentWithProgress{Assessment: a, CompletedResponses: completed, TotalIndicators: total}
	if a.SubmissionDeadline != nil && workflow.Lockable(workflow.Status(a.Status)) {
		out.GraceDaysRemaining = compliance.GraceDaysRemaining(*a.SubmissionDeadline, a.GracePeriodDays, h.now())
	}
	return out
}

// ── Create ─────────────────────────────────────────────────────

// Create opens an assessment for a barangay and year. BLGU users can only
// open one for their own barangay.
func (h *AssessmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if scope := ctxkeys.GetBarangayScope(r.Context()); scope != "" && req.BarangayID == "" {
		req.BarangayID = scope
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}
	if !checkBarangayAccess(r.Context(), req.BarangayID) {
		JSONError(w, http.StatusForbidden, "You can only open assessments for your own barangay")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()
	userID := ctxkeys.GetUserID(r.Context())

	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO assessments (barangay_id, year, submission_deadline, grace_period_days, created_by)
		VALUES ($1, $2, $3::date, $4, $5)
		RETURNING id
	`, req.BarangayID, req.Year, req.SubmissionDeadline, req.GracePeriodDays, nilIfEmptyStr(userID)).Scan(&id)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			JSONError(w, http.StatusConflict, fmt.Sprintf("An assessment for %d already exists for this barangay", req.Year))
		case isForeignKeyError(err):
			validationFailed(w, map[string]string{"barangayId": "Barangay not found"})
		default:
			zap.L().Error("failed to create assessment", zap.Error(err))
			JSONError(w, http.StatusInternalServerError, "Failed to create assessment")
		}
		return
	}

	var a models.Assessment
	err = scanAssessment(pool.QueryRow(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments a JOIN barangays b ON b.id = a.barangay_id
		WHERE a.id = $1`, id), &a)
	if err != nil {
		zap.L().Error("failed to reload assessment", zap.String("id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Assessment created but could not be loaded")
		return
	}

	go logActivity(pool, userID, "created", "assessment", id, map[string]interface{}{
		"barangayId": req.BarangayID,
		"year":       req.Year,
	})

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    a,
		"message": "Assessment created successfully",
	})
}

// ── List / Get ─────────────────────────────────────────────────

// List returns assessments within the caller's scope.
// Filters: ?status=, ?year=, ?barangayId=.
func (h *AssessmentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		if !workflow.IsValidStatus(workflow.Status(status)) {
			validationFailed(w, map[string]string{"status": "Unknown status"})
			return
		}
		where += fmt.Sprintf(" AND a.status = $%d", argIdx)
		args = append(args, status)
		argIdx++
	}
	if year := q.Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			validationFailed(w, map[string]string{"year": "Year must be a number"})
			return
		}
		where += fmt.Sprintf(" AND a.year = $%d", argIdx)
		args = append(args, y)
		argIdx++
	}
	if barangayID := q.Get("barangayId"); barangayID != "" {
		where += fmt.Sprintf(" AND a.barangay_id = $%d", argIdx)
		args = append(args, barangayID)
		argIdx++
	}
	where, args, _ = appendBarangayScope(r.Context(), where, args, argIdx, "a.barangay_id")

	rows, err := pool.Query(ctx, `
		SELECT `+assessmentColumns+`,
		       (SELECT COUNT(*) FROM assessment_responses ar
		         JOIN indicators i ON i.id = ar.indicator_id AND i.is_active
		         WHERE ar.assessment_id = a.id AND ar.is_completed),
		       (SELECT COUNT(*) FROM indicators WHERE is_active)
		FROM assessments a
		JOIN barangays b ON b.id = a.barangay_id
		`+where+`
		ORDER BY a.year DESC, b.name ASC
	`, args...)
	if err != nil {
		zap.L().Error("failed to list assessments", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch assessments")
		return
	}
	defer rows.Close()

	list := []models.AssessmentWithProgress{}
	for rows.Next() {
		var a models.Assessment
		var completed, total int
		if err := scanAssessment(rows, &a, &completed, &total); err != nil {
			zap.L().Warn("failed to scan assessment", zap.Error(err))
			continue
		}
		list = append(list, h.withProgress(a, completed, total))
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": list})
}

// Get returns one assessment with all of its saved responses.
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	if !checkAssessmentAccess(ctx, pool, id) {
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	}

	var a models.Assessment
	err := scanAssessment(pool.QueryRow(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments a JOIN barangays b ON b.id = a.barangay_id
		WHERE a.id = $1`, id), &a)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	}

	rows, err := pool.Query(ctx, `
		SELECT ar.id, ar.assessment_id, ar.indicator_id, i.code, i.name,
		       ar.response_data, ar.mov_outcome, ar.computed_status,
		       ar.missing_fields, ar.is_completed, ar.updated_at
		FROM assessment_responses ar
		JOIN indicators i ON i.id = ar.indicator_id
		WHERE ar.assessment_id = $1
		ORDER BY i.code
	`, id)
	if err != nil {
		zap.L().Error("failed to load responses", zap.String("assessment_id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch responses")
		return
	}
	defer rows.Close()

	responses := []models.AssessmentResponse{}
	completed := 0
	for rows.Next() {
		var resp models.AssessmentResponse
		if err := rows.Scan(
			&resp.ID, &resp.AssessmentID, &resp.IndicatorID, &resp.IndicatorCode, &resp.IndicatorName,
			&resp.ResponseData, &resp.MOVOutcome, &resp.ComputedStatus,
			&resp.MissingFields, &resp.IsCompleted, &resp.UpdatedAt,
		); err != nil {
			zap.L().Warn("failed to scan response", zap.Error(err))
			continue
		}
		if resp.IsCompleted {
			completed++
		}
		responses = append(responses, resp)
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM indicators WHERE is_active`).Scan(&total); err != nil {
		zap.L().Warn("failed to count indicators", zap.Error(err))
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"assessment": h.withProgress(a, completed, total),
			"responses":  responses,
		},
	})
}

// ── Responses ──────────────────────────────────────────────────

// loadWorkflowState reads the fields the state machine needs, plus the
// barangay and year used to resolve BBI statuses.
func loadWorkflowState(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, id string, forUpdate bool) (workflow.Assessment, string, int, error) {
	query := `SELECT status, rework_count, calibration_count, is_locked, barangay_id::text, year
		FROM assessments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var a workflow.Assessment
	var status, barangayID string
	var year int
	err := q.QueryRow(ctx, query, id).Scan(&status, &a.ReworkCount, &a.CalibrationCount, &a.IsLocked, &barangayID, &year)
	a.Status = workflow.Status(status)
	return a, barangayID, year, err
}

// SaveResponse stores the answers for one indicator and scores them.
func (h *AssessmentHandler) SaveResponse(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "id")
	indicatorID := chi.URLParam(r, "indicatorId")

	var req models.SaveResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	if !checkAssessmentAccess(ctx, pool, assessmentID) {
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	}

	var form, checklist, calc []byte
	err := pool.QueryRow(ctx, `
		SELECT form_schema, mov_checklist, calculation_schema
		FROM indicators WHERE id = $1 AND is_active
	`, indicatorID).Scan(&form, &checklist, &calc)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Indicator not found")
		return
	}

	ind, err := scoring.ParseIndicator(form, checklist, calc)
	if err != nil {
		zap.L().Error("stored indicator does not parse", zap.String("indicator_id", indicatorID), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Indicator definition is invalid")
		return
	}

	values, _ := json.Marshal(req.Values)
	userID := ctxkeys.GetUserID(r.Context())

	var (
		res  scoring.Result
		resp models.AssessmentResponse
	)
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		barangayID, year, err := lockForEdit(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		bbi, err := loadBBIStatuses(ctx, tx, barangayID, year)
		if err != nil {
			return fmt.Errorf("load BBI statuses: %w", err)
		}

		res = scoring.New(bbi).Score(ind, req.Values)
		outcome, _ := json.Marshal(res.MOV)
		missing, _ := json.Marshal(res.MissingRequired)

		return tx.QueryRow(ctx, `
			INSERT INTO assessment_responses (assessment_id, indicator_id, response_data,
			    mov_outcome, computed_status, missing_fields, is_completed, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (assessment_id, indicator_id) DO UPDATE SET
			    response_data = EXCLUDED.response_data,
			    mov_outcome = EXCLUDED.mov_outcome,
			    computed_status = EXCLUDED.computed_status,
			    missing_fields = EXCLUDED.missing_fields,
			    is_completed = EXCLUDED.is_completed,
			    updated_by = EXCLUDED.updated_by,
			    updated_at = NOW()
			RETURNING id, updated_at
		`, assessmentID, indicatorID, values, outcome, nilIfEmptyStr(string(res.Status)),
			missing, res.IsCompleted, nilIfEmptyStr(userID),
		).Scan(&resp.ID, &resp.UpdatedAt)
	})
	if err != nil {
		if status, msg := editErrorStatus(err); status != http.StatusInternalServerError {
			JSONError(w, status, msg)
			return
		}
		zap.L().Error("failed to save response",
			zap.String("assessment_id", assessmentID),
			zap.String("indicator_id", indicatorID),
			zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to save response")
		return
	}
	if res.Status != "" {
		metrics.IndicatorScored(string(res.Status))
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"id":        resp.ID,
			"updatedAt": resp.UpdatedAt,
			"result":    res,
		},
		"message": "Response saved",
	})
}

// editBlockedError reports a write against an assessment whose responses
// are frozen by its status or the deadline lock.
type editBlockedError struct{ state workflow.Assessment }

func (e *editBlockedError) Error() string { return editBlockedMessage(e.state) }

// lockForEdit takes the assessment row lock for the rest of tx and fails
// when the assessment does not accept response or file changes.
func lockForEdit(ctx context.Context, tx pgx.Tx, assessmentID string) (barangayID string, year int, err error) {
	state, barangayID, year, err := loadWorkflowState(ctx, tx, assessmentID, true)
	if err != nil {
		return "", 0, err
	}
	if !workflow.CanEditResponses(state) {
		return "", 0, &editBlockedError{state: state}
	}
	return barangayID, year, nil
}

// editErrorStatus maps lockForEdit failures to a status and message.
// Anything else is reported as 500 with an empty message.
func editErrorStatus(err error) (int, string) {
	var blocked *editBlockedError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound, "Assessment not found"
	case errors.As(err, &blocked):
		return http.StatusConflict, blocked.Error()
	}
	return http.StatusInternalServerError, ""
}

func editBlockedMessage(a workflow.Assessment) string {
	if a.IsLocked {
		return "Assessment is locked because the submission deadline has passed"
	}
	return fmt.Sprintf("Responses cannot be changed while the assessment is %s", a.Status)
}

// ── Workflow ───────────────────────────────────────────────────

// workflowErrorStatus maps state machine errors to HTTP status codes.
func workflowErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrReworkLimit),
		errors.Is(err, workflow.ErrCalibrationLimit),
		errors.Is(err, workflow.ErrLocked):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// incompleteIndicators counts active indicators without a completed response.
func incompleteIndicators(ctx context.Context, tx pgx.Tx, assessmentID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM indicators i
		LEFT JOIN assessment_responses ar
		       ON ar.indicator_id = i.id AND ar.assessment_id = $1
		WHERE i.is_active AND COALESCE(ar.is_completed, FALSE) = FALSE
	`, assessmentID).Scan(&n)
	return n, err
}

// Action performs a workflow action (submit, start-review, request-rework,
// send-to-validation, request-calibration, submit-calibration, complete).
func (h *AssessmentHandler) Action(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actionName := chi.URLParam(r, "action")

	action, err := workflow.ParseAction(actionName)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Unknown workflow action")
		return
	}

	var req models.WorkflowActionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			JSONError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()
	role := ctxkeys.GetUserRole(r.Context())
	userID := ctxkeys.GetUserID(r.Context())

	if !checkAssessmentAccess(ctx, pool, id) {
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	}

	from, next, err := h.applyAction(ctx, pool, id, action, role)
	metrics.WorkflowTransition(string(action), err)
	if err != nil {
		var incomplete *incompleteError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			JSONError(w, http.StatusNotFound, "Assessment not found")
		case errors.As(err, &incomplete):
			JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":   "Assessment is incomplete",
				"details": map[string]int{"incompleteIndicators": incomplete.count},
			})
		default:
			status := workflowErrorStatus(err)
			if status == http.StatusInternalServerError {
				zap.L().Error("workflow action failed",
					zap.String("assessment_id", id),
					zap.String("action", string(action)),
					zap.Error(err))
				JSONError(w, status, "Failed to update assessment")
				return
			}
			JSONError(w, status, err.Error())
		}
		return
	}

	details := map[string]interface{}{"from": from.Status, "to": next.Status}
	if req.Comment != "" {
		details["comment"] = req.Comment
	}
	go logActivity(pool, userID, string(action), "assessment", id, details)

	JSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"id":               id,
			"status":           next.Status,
			"reworkCount":      next.ReworkCount,
			"calibrationCount": next.CalibrationCount,
		},
		"message": fmt.Sprintf("Assessment moved to %s", next.Status),
	})
}

type incompleteError struct{ count int }

func (e *incompleteError) Error() string {
	return fmt.Sprintf("%d indicator(s) are not complete", e.count)
}

// applyAction runs one workflow step inside a transaction with the
// assessment row locked.
func (h *AssessmentHandler) applyAction(ctx context.Context, pool *pgxpool.Pool, id string, action workflow.Action, role string) (from, next workflow.Assessment, err error) {
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var err error
		from, _, _, err = loadWorkflowState(ctx, tx, id, true)
		if err != nil {
			return err
		}
		next, err = workflow.Apply(from, action, role)
		if err != nil {
			return err
		}

		if next.Status == workflow.StatusSubmitted || action == workflow.ActionResubmitCalibrated {
			n, err := incompleteIndicators(ctx, tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return &incompleteError{count: n}
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE assessments SET
			    status = $1, rework_count = $2, calibration_count = $3,
			    submitted_at = CASE WHEN $1 = 'SUBMITTED' THEN NOW() ELSE submitted_at END,
			    completed_at = CASE WHEN $1 = 'COMPLETED' THEN NOW() ELSE completed_at END,
			    updated_at = NOW()
			WHERE id = $4
		`, string(next.Status), next.ReworkCount, next.CalibrationCount, id)
		return err
	})
	return from, next, err
}

var errStillOverdue = errors.New("assessment is still past its deadline")

// stillOverdue reports whether the deadline sweeper would lock the
// assessment again at now.
func stillOverdue(status workflow.Status, deadline *time.Time, graceDays int, now time.Time) bool {
	return workflow.Lockable(status) && deadline != nil &&
		compliance.IsPastDeadline(*deadline, graceDays, now)
}

// Unlock reopens an assessment locked by the deadline sweeper, optionally
// moving the deadline. An unlock that leaves the assessment overdue is
// rejected since the next sweep would lock it again.
func (h *AssessmentHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.UnlockRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JSONError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var (
			status    string
			deadline  *time.Time
			graceDays int
		)
		err := tx.QueryRow(ctx, `
			SELECT status, submission_deadline, grace_period_days
			FROM assessments WHERE id = $1 FOR UPDATE
		`, id).Scan(&status, &deadline, &graceDays)
		if err != nil {
			return err
		}

		deadline, graceDays = req.Apply(deadline, graceDays)
		if stillOverdue(workflow.Status(status), deadline, graceDays, h.now()) {
			return errStillOverdue
		}

		_, err = tx.Exec(ctx, `
			UPDATE assessments SET
			    is_locked = FALSE,
			    submission_deadline = $1,
			    grace_period_days = $2,
			    updated_at = NOW()
			WHERE id = $3
		`, deadline, graceDays, id)
		return err
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	case errors.Is(err, errStillOverdue):
		validationFailed(w, map[string]string{
			"submissionDeadline": "Deadline plus grace period has already passed; extend it to unlock",
		})
		return
	case err != nil:
		zap.L().Error("failed to unlock assessment", zap.String("id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to unlock assessment")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "unlocked", "assessment", id, map[string]interface{}{
		"submissionDeadline": req.SubmissionDeadline,
		"gracePeriodDays":    req.GracePeriodDays,
	})

	JSON(w, http.StatusOK, map[string]interface{}{"message": "Assessment unlocked"})
}
