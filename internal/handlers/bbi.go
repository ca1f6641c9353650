package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/calculation"
	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/models"
)

// BBIHandler lists barangay-based institutions and records their
// functionality status per barangay and year.
type BBIHandler struct {
	db database.Service
}

func NewBBIHandler(db database.Service) *BBIHandler {
	return &BBIHandler{db: db}
}

// loadBBIStatuses returns the statuses of a barangay for a year keyed by BBI
// code, which is what calculation rules reference.
func loadBBIStatuses(ctx context.Context, tx pgx.Tx, barangayID string, year int) (calculation.StaticBBIStatuses, error) {
	rows, err := tx.Query(ctx, `
		SELECT b.code, s.status
		FROM bbi_statuses s
		JOIN bbis b ON b.id = s.bbi_id
		WHERE s.barangay_id = $1 AND s.year = $2
	`, barangayID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := calculation.StaticBBIStatuses{}
	for rows.Next() {
		var code, status string
		if err := rows.Scan(&code, &status); err != nil {
			return nil, err
		}
		out[code] = status
	}
	return out, rows.Err()
}

// List returns all BBIs.
func (h *BBIHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.db.GetPool().Query(ctx, `SELECT id, code, name, governance_area FROM bbis ORDER BY code`)
	if err != nil {
		zap.L().Error("failed to list BBIs", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch BBIs")
		return
	}
	defer rows.Close()

	bbis := []models.BBI{}
	for rows.Next() {
		var b models.BBI
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.GovernanceArea); err != nil {
			zap.L().Warn("failed to scan BBI", zap.Error(err))
			continue
		}
		bbis = append(bbis, b)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": bbis})
}

// ListStatuses returns recorded statuses. Filters: ?barangayId=, ?year=.
func (h *BBIHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1
	if id := r.URL.Query().Get("barangayId"); id != "" {
		where += fmt.Sprintf(" AND s.barangay_id = $%d", argIdx)
		args = append(args, id)
		argIdx++
	}
	if year := r.URL.Query().Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			validationFailed(w, map[string]string{"year": "Year must be a number"})
			return
		}
		where += fmt.Sprintf(" AND s.year = $%d", argIdx)
		args = append(args, y)
		argIdx++
	}
	where, args, _ = appendBarangayScope(r.Context(), where, args, argIdx, "s.barangay_id")

	rows, err := h.db.GetPool().Query(ctx, `
		SELECT s.bbi_id::text, b.code, s.barangay_id::text, s.year, s.status, s.updated_at::text
		FROM bbi_statuses s
		JOIN bbis b ON b.id = s.bbi_id
		`+where+`
		ORDER BY s.year DESC, b.code
	`, args...)
	if err != nil {
		zap.L().Error("failed to list BBI statuses", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch BBI statuses")
		return
	}
	defer rows.Close()

	statuses := []models.BBIStatus{}
	for rows.Next() {
		var s models.BBIStatus
		if err := rows.Scan(&s.BBIID, &s.BBICode, &s.BarangayID, &s.Year, &s.Status, &s.UpdatedAt); err != nil {
			zap.L().Warn("failed to scan BBI status", zap.Error(err))
			continue
		}
		statuses = append(statuses, s)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": statuses})
}

// SetStatus records the functionality of BBI {id} for a barangay and year.
// Responses already saved keep their status until they are saved again.
func (h *BBIHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	bbiID := chi.URLParam(r, "id")

	var req models.SetBBIStatusRequest
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

	var s models.BBIStatus
	err := pool.QueryRow(ctx, `
		WITH upsert AS (
		    INSERT INTO bbi_statuses (bbi_id, barangay_id, year, status)
		    VALUES ($1, $2, $3, $4)
		    ON CONFLICT (bbi_id, barangay_id, year) DO UPDATE SET
		        status = EXCLUDED.status, updated_at = NOW()
		    RETURNING bbi_id, barangay_id, year, status, updated_at
		)
		SELECT u.bbi_id::text, b.code, u.barangay_id::text, u.year, u.status, u.updated_at::text
		FROM upsert u JOIN bbis b ON b.id = u.bbi_id
	`, bbiID, req.BarangayID, req.Year, req.Status,
	).Scan(&s.BBIID, &s.BBICode, &s.BarangayID, &s.Year, &s.Status, &s.UpdatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			JSONError(w, http.StatusNotFound, "BBI or barangay not found")
			return
		}
		zap.L().Error("failed to set BBI status", zap.String("bbi_id", bbiID), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to set BBI status")
		return
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "set_status", "bbi", bbiID, map[string]interface{}{
		"barangayId": req.BarangayID,
		"year":       req.Year,
		"status":     req.Status,
	})

	JSON(w, http.StatusOK, map[string]interface{}{
		"data":    s,
		"message": "BBI status updated",
	})
}
