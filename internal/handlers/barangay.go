package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/models"
)

// BarangayHandler handles barangay CRUD.
type BarangayHandler struct {
	db database.Service
}

func NewBarangayHandler(db database.Service) *BarangayHandler {
	return &BarangayHandler{db: db}
}

// ── List ───────────────────────────────────────────────────────

// List returns barangays visible to the caller, with their assessment count.
func (h *BarangayHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	where, args, _ := appendBarangayScope(r.Context(), "WHERE 1=1", nil, 1, "b.id")

	rows, err := pool.Query(ctx, `
		SELECT b.id, b.name, b.municipality, b.created_at::text, b.updated_at::text,
		       COUNT(a.id) AS assessment_count
		FROM barangays b
		LEFT JOIN assessments a ON a.barangay_id = b.id
		`+where+`
		GROUP BY b.id
		ORDER BY b.name ASC
	`, args...)
	if err != nil {
		zap.L().Error("failed to list barangays", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch barangays")
		return
	}
	defer rows.Close()

	type BarangayWithCount struct {
		models.Barangay
		AssessmentCount int `json:"assessmentCount"`
	}

	barangays := []BarangayWithCount{}
	for rows.Next() {
		var b BarangayWithCount
		if err := rows.Scan(&b.ID, &b.Name, &b.Municipality, &b.CreatedAt, &b.UpdatedAt, &b.AssessmentCount); err != nil {
			zap.L().Warn("failed to scan barangay", zap.Error(err))
			continue
		}
		barangays = append(barangays, b)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": barangays})
}

// ── Create ─────────────────────────────────────────────────────

func (h *BarangayHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.BarangayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var b models.Barangay
	err := pool.QueryRow(ctx, `
		INSERT INTO barangays (name, municipality)
		VALUES ($1, $2)
		RETURNING id, name, municipality, created_at::text, updated_at::text
	`, req.Name, req.Municipality).Scan(&b.ID, &b.Name, &b.Municipality, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "This barangay already exists in the municipality")
			return
		}
		zap.L().Error("failed to create barangay", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to create barangay")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "created", "barangay", b.ID, map[string]interface{}{
		"name": b.Name,
	})

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    b,
		"message": "Barangay created successfully",
	})
}

// ── Update ─────────────────────────────────────────────────────

func (h *BarangayHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req models.BarangayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		validationFailed(w, errs)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var b models.Barangay
	err := pool.QueryRow(ctx, `
		UPDATE barangays SET name = $1, municipality = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING id, name, municipality, created_at::text, updated_at::text
	`, req.Name, req.Municipality, id).Scan(&b.ID, &b.Name, &b.Municipality, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			JSONError(w, http.StatusConflict, "This barangay already exists in the municipality")
			return
		}
		JSONError(w, http.StatusNotFound, "Barangay not found")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "updated", "barangay", b.ID, nil)

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    b,
		"message": "Barangay updated successfully",
	})
}

// ── Delete ─────────────────────────────────────────────────────

// Delete removes a barangay and cascades to its assessments.
func (h *BarangayHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	result, err := pool.Exec(ctx, "DELETE FROM barangays WHERE id = $1", id)
	if err != nil {
		zap.L().Error("failed to delete barangay", zap.String("id", id), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to delete barangay")
		return
	}
	if result.RowsAffected() == 0 {
		JSONError(w, http.StatusNotFound, "Barangay not found")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "deleted", "barangay", id, nil)

	JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Barangay deleted successfully",
	})
}
