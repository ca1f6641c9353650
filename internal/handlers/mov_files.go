package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/models"
	"github.com/generyand/sinag-sub010/internal/storage"
)

// MOVFileHandler handles means-of-verification uploads attached to an
// assessment indicator.
type MOVFileHandler struct {
	db    database.Service
	store storage.Store
}

func NewMOVFileHandler(db database.Service, store storage.Store) *MOVFileHandler {
	return &MOVFileHandler{db: db, store: store}
}

// movKey builds the storage key for an upload. The uuid keeps re-uploads of
// the same file name apart.
func movKey(assessmentID, indicatorID, fileName string) string {
	return fmt.Sprintf("assessments/%s/%s/%s_%s", assessmentID, indicatorID, uuid.NewString(), sanitizeFilename(fileName))
}

// Upload handles POST /api/assessments/{id}/indicators/{indicatorId}/files
// with a multipart "file" field.
func (h *MOVFileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "id")
	indicatorID := chi.URLParam(r, "indicatorId")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		JSONError(w, http.StatusBadRequest, "File too large. Maximum size is 10MB.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Missing 'file' field in form data.")
		return
	}
	defer file.Close()

	contentType, err := sniffContentType(file)
	if err != nil {
		if errors.Is(err, errFileType) {
			JSONError(w, http.StatusBadRequest, fmt.Sprintf(
				"File type '%s' not allowed. Accepted: PDF, JPG, PNG.", contentType))
			return
		}
		JSONError(w, http.StatusBadRequest, "Could not read file.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	if !checkAssessmentAccess(ctx, pool, assessmentID) {
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	}
	key := movKey(assessmentID, indicatorID, header.Filename)
	info, err := h.store.Save(ctx, key, file, contentType)
	if err != nil {
		zap.L().Error("failed to store MOV file", zap.String("key", key), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to save file.")
		return
	}

	userID := ctxkeys.GetUserID(r.Context())

	// Recorded under the assessment row lock, same as SaveResponse.
	var f models.MOVFile
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, _, err := lockForEdit(ctx, tx, assessmentID); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO mov_files (assessment_id, indicator_id, file_name, file_url,
			    storage_key, content_type, size_bytes, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, assessment_id::text, indicator_id::text, file_name, file_url,
			          storage_key, content_type, size_bytes, uploaded_by::text, created_at
		`, assessmentID, indicatorID, header.Filename, info.URL, info.Key,
			contentType, info.FileSize, nilIfEmptyStr(userID),
		).Scan(&f.ID, &f.AssessmentID, &f.IndicatorID, &f.FileName, &f.FileURL,
			&f.StorageKey, &f.ContentType, &f.SizeBytes, &f.UploadedBy, &f.CreatedAt)
	})
	if err != nil {
		if derr := h.store.Delete(context.Background(), key); derr != nil {
			zap.L().Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		if status, msg := editErrorStatus(err); status != http.StatusInternalServerError {
			JSONError(w, status, msg)
			return
		}
		if isForeignKeyError(err) {
			JSONError(w, http.StatusNotFound, "Indicator not found")
			return
		}
		zap.L().Error("failed to record MOV file", zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to save file.")
		return
	}

	go logActivity(pool, userID, "uploaded", "mov_file", f.ID, map[string]interface{}{
		"assessmentId": assessmentID,
		"indicatorId":  indicatorID,
		"fileName":     f.FileName,
	})

	JSON(w, http.StatusCreated, map[string]interface{}{
		"data":    f,
		"message": "File uploaded successfully",
	})
}

// List returns the files of an assessment. Filter: ?indicatorId=.
func (h *MOVFileHandler) List(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	if !checkAssessmentAccess(ctx, pool, assessmentID) {
		JSONError(w, http.StatusNotFound, "Assessment not found")
		return
	}

	query := `
		SELECT id, assessment_id::text, indicator_id::text, file_name, file_url,
		       storage_key, content_type, size_bytes, uploaded_by::text, created_at
		FROM mov_files WHERE assessment_id = $1`
	args := []interface{}{assessmentID}
	if indicatorID := r.URL.Query().Get("indicatorId"); indicatorID != "" {
		query += ` AND indicator_id = $2`
		args = append(args, indicatorID)
	}
	query += ` ORDER BY created_at`

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		zap.L().Error("failed to list MOV files", zap.String("assessment_id", assessmentID), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to fetch files")
		return
	}
	defer rows.Close()

	files := []models.MOVFile{}
	for rows.Next() {
		var f models.MOVFile
		if err := rows.Scan(&f.ID, &f.AssessmentID, &f.IndicatorID, &f.FileName, &f.FileURL,
			&f.StorageKey, &f.ContentType, &f.SizeBytes, &f.UploadedBy, &f.CreatedAt); err != nil {
			zap.L().Warn("failed to scan MOV file", zap.Error(err))
			continue
		}
		files = append(files, f)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": files})
}

// Delete removes a MOV file row and its stored object.
func (h *MOVFileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pool := h.db.GetPool()

	var assessmentID, key string
	err := pool.QueryRow(ctx,
		`SELECT assessment_id::text, storage_key FROM mov_files WHERE id = $1`, fileID,
	).Scan(&assessmentID, &key)
	if err != nil || !checkAssessmentAccess(ctx, pool, assessmentID) {
		JSONError(w, http.StatusNotFound, "File not found")
		return
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, _, err := lockForEdit(ctx, tx, assessmentID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM mov_files WHERE id = $1`, fileID)
		return err
	})
	if err != nil {
		if status, msg := editErrorStatus(err); status != http.StatusInternalServerError {
			JSONError(w, status, msg)
			return
		}
		zap.L().Error("failed to delete MOV file", zap.String("id", fileID), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}
	if err := h.store.Delete(ctx, key); err != nil {
		zap.L().Warn("file row deleted but object remains", zap.String("key", key), zap.Error(err))
	}

	go logActivity(pool, ctxkeys.GetUserID(r.Context()), "deleted", "mov_file", fileID, map[string]interface{}{
		"assessmentId": assessmentID,
	})

	JSON(w, http.StatusOK, map[string]interface{}{"message": "File deleted successfully"})
}
