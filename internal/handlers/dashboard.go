package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/compliance"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/models"
)

// DashboardHandler serves MLGOO analytics.
type DashboardHandler struct {
	db  database.Service
	now func() time.Time
}

func NewDashboardHandler(db database.Service) *DashboardHandler {
	return &DashboardHandler{db: db, now: time.Now}
}

// indicatorRow carries the governance area next to the per-indicator counts.
type indicatorRow struct {
	models.IndicatorStats
	Area string
}

// summarizeAreas folds indicator counts into governance-area pass rates in
// the canonical area order. Considered counts as passing; pending responses
// are not scored.
func summarizeAreas(rows []indicatorRow) []models.AreaStats {
	byArea := map[string]*models.AreaStats{}
	for _, r := range rows {
		a, ok := byArea[r.Area]
		if !ok {
			a = &models.AreaStats{
				Code:   r.Area,
				Name:   compliance.AreaDisplayName(r.Area),
				IsCore: compliance.IsCoreArea(r.Area),
			}
			byArea[r.Area] = a
		}
		a.Passed += r.Passed + r.Considered
		a.Scored += r.Passed + r.Considered + r.Failed
	}

	out := []models.AreaStats{}
	for _, ga := range compliance.GovernanceAreas {
		a, ok := byArea[ga.Code]
		if !ok {
			continue
		}
		if a.Scored > 0 {
			a.PassRate = float64(a.Passed) / float64(a.Scored) * 100
		}
		out = append(out, *a)
	}
	return out
}

// ── GetAnalytics ───────────────────────────────────────────────

// GetAnalytics handles GET /api/dashboard/analytics?year=.
// Defaults to the current year.
func (h *DashboardHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			validationFailed(w, map[string]string{"year": "Year must be a number"})
			return
		}
		year = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pool := h.db.GetPool()
	out := models.Analytics{Year: year, ByStatus: []models.StatusCount{}}

	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM barangays`).Scan(&out.TotalBarangay); err != nil {
		zap.L().Error("failed to count barangays", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch analytics")
		return
	}
	if err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM assessments WHERE year = $1 AND is_locked`, year,
	).Scan(&out.LockedCount); err != nil {
		zap.L().Error("failed to count locked assessments", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch analytics")
		return
	}

	statusRows, err := pool.Query(ctx, `
		SELECT status, COUNT(*) FROM assessments
		WHERE year = $1
		GROUP BY status ORDER BY status
	`, year)
	if err != nil {
		zap.L().Error("failed to group assessments by status", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch analytics")
		return
	}
	for statusRows.Next() {
		var sc models.StatusCount
		if err := statusRows.Scan(&sc.Status, &sc.Count); err != nil {
			continue
		}
		out.ByStatus = append(out.ByStatus, sc)
	}
	statusRows.Close()

	indRows, err := pool.Query(ctx, `
		SELECT i.id, i.code, i.name, i.governance_area,
		       COUNT(*) FILTER (WHERE ar.computed_status = 'PASS'),
		       COUNT(*) FILTER (WHERE ar.computed_status = 'CONSIDERED'),
		       COUNT(*) FILTER (WHERE ar.computed_status = 'FAIL'),
		       COUNT(*) FILTER (WHERE ar.id IS NOT NULL AND ar.computed_status IS NULL)
		FROM indicators i
		LEFT JOIN assessments a ON a.year = $1
		LEFT JOIN assessment_responses ar ON ar.indicator_id = i.id AND ar.assessment_id = a.id
		WHERE i.is_active
		GROUP BY i.id, i.code, i.name, i.governance_area
		ORDER BY i.code
	`, year)
	if err != nil {
		zap.L().Error("failed to aggregate indicator results", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch analytics")
		return
	}
	defer indRows.Close()

	var rows []indicatorRow
	out.Indicators = []models.IndicatorStats{}
	for indRows.Next() {
		var row indicatorRow
		if err := indRows.Scan(&row.IndicatorID, &row.Code, &row.Name, &row.Area,
			&row.Passed, &row.Considered, &row.Failed, &row.Pending); err != nil {
			zap.L().Warn("failed to scan indicator stats", zap.Error(err))
			continue
		}
		rows = append(rows, row)
		out.Indicators = append(out.Indicators, row.IndicatorStats)
	}
	out.Areas = summarizeAreas(rows)

	JSON(w, http.StatusOK, out)
}
