package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// JSONError writes {"error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a request body of at most maxSchemaBody bytes into v.
// On failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSchemaBody)).Decode(v)
	if err != nil {
		writeBodyError(w, err, "Invalid JSON body")
		return false
	}
	return true
}

// readBody is decodeJSON for handlers that parse the raw bytes themselves.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSchemaBody))
	if err != nil {
		writeBodyError(w, err, "Could not read body")
		return nil, false
	}
	return body, true
}

func writeBodyError(w http.ResponseWriter, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		JSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	JSONError(w, http.StatusBadRequest, message)
}

func validationFailed(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":   "Validation failed",
		"details": errs,
	})
}

// logActivity records an audit entry. Runs detached from the request, so it
// uses its own timeout and only logs failures.
func logActivity(pool *pgxpool.Pool, userID, action, entityType, entityID string, details map[string]interface{}) {
	if pool == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw := []byte("{}")
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			zap.L().Warn("failed to encode activity details", zap.Error(err))
		} else {
			raw = b
		}
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO activity_log (user_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)
	`, nilIfEmptyStr(userID), action, entityType, entityID, raw)
	if err != nil {
		zap.L().Warn("failed to log activity",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// isDuplicateKeyError checks if a PostgreSQL error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}

// isForeignKeyError checks for a foreign key violation (23503).
func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "foreign key") || strings.Contains(msg, "23503")
}

func nilIfEmptyStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
