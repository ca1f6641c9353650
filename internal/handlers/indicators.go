package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/calculation"
	"github.com/generyand/sinag-sub010/internal/compliance"
	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/metrics"
	"github.com/generyand/sinag-sub010/internal/models"
	"github.com/generyand/sinag-sub010/internal/mov"
	"github.com/generyand/sinag-sub010/internal/scoring"
	"github.com/generyand/sinag-sub010/internal/template"
)

// maxSchemaBody caps the size of JSON request bodies.
const maxSchemaBody = 1 << 20

// IndicatorHandler manages indicator definitions and the builder's
// validation endpoints.
type IndicatorHandler struct {
	db database.Service
}

func NewIndicatorHandler(db database.Service) *IndicatorHandler {
	return &IndicatorHandler{db: db}
}

const indicatorColumns = `id, code, name, description, governance_area,
	form_schema, mov_checklist, calculation_schema, is_active,
	created_at::text, updated_at::text`

func scanIndicator(row interface{ Scan(...any) error }, ind *models.Indicator) error {
	var calc []byte
	err := row.Scan(
		&ind.ID, &ind.Code, &ind.Name, &ind.Description, &ind.GovernanceArea,
		&ind.FormSchema, &ind.MOVChecklist, &calc, &ind.IsActive,
		&ind.CreatedAt, &ind.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if calc != nil {
		ind.CalculationSchema = calc
	}
	ind.AreaName = compliance.AreaDisplayName(ind.GovernanceArea)
	return nil
}

// ── List / Get ─────────────────────────────────────────────────

// List returns indicators ordered by code. Filters: ?area=, ?active=true|false.
func (h *IndicatorHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where := "WHERE 1=1"
	args := []interface{}{}
	if area := r.URL.Query().Get("area"); area != "" {
		args = append(args, area)
		where += " AND governance_area = $1"
	}
	switch r.URL.Query().Get("active") {
	case "true":
		where += " AND is_active = TRUE"
	case "false":
		where += " AND is_active = FALSE"
	}

	rows, err := pool.Query(ctx, `SELECT `+indicatorColumns+` FROM indicators `+where+` ORDER BY code`, args...)
	if err != nil {
		zap.L().Error("failed to list indicators", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch indicators")
		return
	}
	defer rows.Close()

	indicators := []models.Indicator{}
	for rows.Next() {
		var ind models.Indicator
		if err := scanIndicator(rows, &ind); err != nil {
			zap.L().Warn("failed to scan indicator", zap.Error(err))
			continue
		}
		indicators = append(indicators, ind)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": indicators})
}

func (h *IndicatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var ind models.Indicator
	err := scanIndicator(h.db.GetPool().QueryRow(ctx, `SELECT `+indicatorColumns+` FROM indicators WHERE id = $1`, id), &ind)
	if err != nil {
		JSONError(w, http.StatusNotFound, "Indicator not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": ind})
}

// ── Create / Update ────────────────────────────────────────────

// checkDefinitions validates the JSON documents of an indicator request and
// writes the 422 response itself when they are not acceptable.
func checkDefinitions(w http.ResponseWriter, req *models.IndicatorRequest) bool {
	rep, err := template.Inspect(req.FormSchema, req.MOVChecklist, req.CalculationSchema)
	if err != nil {
		validationFailed(w, map[string]string{"definition": err.Error()})
		return false
	}
	metrics.ChecklistValidated(rep.Checklist.IsValid)
	if !rep.IsValid {
		JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "Indicator definition has blocking errors",
			"validation": rep,
		})
		return false
	}
	return true
}

func defaultDocument(doc json.RawMessage) json.RawMessage {
	if len(doc) == 0 || string(doc) == "null" {
		return json.RawMessage("{}")
	}
	return doc
}

// calculationParam keeps an absent calculation schema as SQL NULL.
func calculationParam(doc json.RawMessage) interface{} {
	if len(doc) == 0 || string(doc) == "null" {
		return nil
	}
	return []byte(doc)
}

// Create adds an indicator. Blocking checklist or calculation errors reject
// the save; checklist warnings do not.
func (h *IndicatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.IndicatorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}
	if !checkDefinitions(w, &req) {
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var ind models.Indicator
	err := scanIndicator(pool.QueryRow(ctx, `
		INSERT INTO indicators (code, name, description, governance_area,
		    form_schema, mov_checklist, calculation_schema, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+indicatorColumns,
		req.Code, req.Name, req.Description, req.GovernanceArea,
		[]byte(defaultDocument(req.FormSchema)), []byte(defaultDocument(req.MOVChecklist)),
		calculationParam(req.CalculationSchema), active,
	), &ind)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "An indicator with this code already exists")
			return
		}
		zap.L().Error("failed to create indicator", zap.String("code", req.Code), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to create indicator")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "created", "indicator", ind.ID, map[string]interface{}{
		"code": ind.Code,
	})

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    ind,
		"message": "Indicator created successfully",
	})
}

// Update replaces an indicator definition. Existing responses keep their
// stored status until they are saved again.
func (h *IndicatorHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.IndicatorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}
	if !checkDefinitions(w, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var ind models.Indicator
	err := scanIndicator(pool.QueryRow(ctx, `
		UPDATE indicators SET
		    code = $1, name = $2, description = $3, governance_area = $4,
		    form_schema = $5, mov_checklist = $6, calculation_schema = $7,
		    is_active = COALESCE($8, is_active), updated_at = NOW()
		WHERE id = $9
		RETURNING `+indicatorColumns,
		req.Code, req.Name, req.Description, req.GovernanceArea,
		[]byte(defaultDocument(req.FormSchema)), []byte(defaultDocument(req.MOVChecklist)),
		calculationParam(req.CalculationSchema), req.IsActive, id,
	), &ind)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "An indicator with this code already exists")
			return
		}
		JSONError(w, http.StatusNotFound, "Indicator not found")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "updated", "indicator", ind.ID, map[string]interface{}{
		"code": ind.Code,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    ind,
		"message": "Indicator updated successfully",
	})
}

// Delete removes an indicator together with its responses and MOV files.
func (h *IndicatorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	result, err := pool.Exec(ctx, "DELETE FROM indicators WHERE id = $1", id)
	if err != nil {
		zap.L().Error("failed to delete indicator", zap.String("id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to delete indicator")
		return
	}
	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Indicator not found")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "deleted", "indicator", id, nil)

	JSON(w, http.StatusOK, map[string]interface{}{"message": "Indicator deleted successfully"})
}

// ── Builder Validation ─────────────────────────────────────────

// ValidateChecklist validates a MOV checklist without saving it. The body is
// the checklist document itself.
func (h *IndicatorHandler) ValidateChecklist(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	cfg, err := mov.Parse(body)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid checklist JSON: "+err.Error())
		return
	}

	res := mov.Validate(cfg)
	metrics.ChecklistValidated(res.IsValid)

	JSON(w, http.StatusOK, map[string]interface{}{"data": res})
}

// ValidateCalculation validates a calculation schema without saving it and
// describes each condition group in words.
func (h *IndicatorHandler) ValidateCalculation(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	schema, err := calculation.Parse(body)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid calculation JSON: "+err.Error())
		return
	}

	problems := calculation.ValidateSchema(schema)
	groups := []string{}
	if schema != nil {
		for _, g := range schema.ConditionGroups {
			groups = append(groups, calculation.DescribeGroup(g))
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
		"isValid":  len(problems) == 0,
		"problems": problems,
		"groups":   groups,
	}})
}

// Preview scores sample values against a stored indicator without saving a
// response. BBI statuses come from the request.
func (h *IndicatorHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.PreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var form, checklist, calc []byte
	err := h.db.GetPool().QueryRow(ctx,
		`SELECT form_schema, mov_checklist, calculation_schema FROM indicators WHERE id = $1`, id,
	).Scan(&form, &checklist, &calc)
	if errors.Is(err, pgx.ErrNoRows) {
		JSONError(w, http.StatusNotFound, "Indicator not found")
		return
	}
	if err != nil {
		zap.L().Error("failed to load indicator for preview", zap.String("id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to load indicator")
		return
	}

	parsed, err := scoring.ParseIndicator(form, checklist, calc)
	if err != nil {
		zap.L().Error("stored indicator does not parse", zap.String("id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Stored indicator definition is invalid")
		return
	}

	res := scoring.New(calculation.StaticBBIStatuses(req.BBIStatuses)).Score(parsed, req.Values)

	JSON(w, http.StatusOK, map[string]interface{}{"data": res})
}
