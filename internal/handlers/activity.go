package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/models"
)

// ActivityHandler exposes the audit trail written by logActivity.
type ActivityHandler struct {
	db database.Service
}

func NewActivityHandler(db database.Service) *ActivityHandler {
	return &ActivityHandler{db: db}
}

// List returns recent activity, newest first.
// Filters: ?entityType=, ?entityId=, ?limit= (default 50, max 200).
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			validationFailed(w, map[string]string{"limit": "Limit must be a positive number"})
			return
		}
		limit = min(n, 200)
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1
	if t := q.Get("entityType"); t != "" {
		where += fmt.Sprintf(" AND l.entity_type = $%d", argIdx)
		args = append(args, t)
		argIdx++
	}
	if id := q.Get("entityId"); id != "" {
		where += fmt.Sprintf(" AND l.entity_id = $%d", argIdx)
		args = append(args, id)
		argIdx++
	}
	args = append(args, limit)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.db.GetPool().Query(ctx, fmt.Sprintf(`
		SELECT l.id, l.user_id::text, u.name, l.action, l.entity_type, l.entity_id,
		       l.details, l.created_at
		FROM activity_log l
		LEFT JOIN users u ON u.id = l.user_id
		%s
		ORDER BY l.created_at DESC
		LIMIT $%d
	`, where, argIdx), args...)
	if err != nil {
		zap.L().Error("failed to list activity", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch activity")
		return
	}
	defer rows.Close()

	entries := []models.ActivityEntry{}
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Action, &e.EntityType,
			&e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			zap.L().Warn("failed to scan activity entry", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": entries})
}
