package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/storage"
)

// Allowed file types and size limit for MOV uploads.
const maxUploadSize = 10 << 20 // 10 MB

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var errFileType = errors.New("file type not allowed")

// sniffContentType detects the MIME type from the first 512 bytes and rewinds
// the file.
func sniffContentType(file multipart.File) (string, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read file: %w", err)
	}
	contentType := http.DetectContentType(buffer[:n])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind file: %w", err)
	}
	if !allowedTypes[contentType] {
		return contentType, fmt.Errorf("%w: %s", errFileType, contentType)
	}
	return contentType, nil
}

// sanitizeFilename removes path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// FileHandler serves stored MOV files to callers who can see the owning
// assessment.
type FileHandler struct {
	store   storage.Store
	canRead func(ctx context.Context, key string) bool
}

func NewFileHandler(db database.Service, store storage.Store) *FileHandler {
	h := &FileHandler{store: store}
	h.canRead = func(ctx context.Context, key string) bool {
		pool := db.GetPool()
		var assessmentID string
		err := pool.QueryRow(ctx,
			`SELECT assessment_id::text FROM mov_files WHERE storage_key = $1`, key,
		).Scan(&assessmentID)
		if err != nil {
			return false
		}
		return checkAssessmentAccess(ctx, pool, assessmentID)
	}
	return h
}

// ServeFile serves /api/files/{key...}. Local files are read from disk; any
// other store redirects to its public URL. Keys that are not a recorded MOV
// file in the caller's scope are reported as missing.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if key == "" || key == r.URL.Path {
		JSONError(w, http.StatusBadRequest, "File path required.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if !h.canRead(ctx, key) {
		JSONError(w, http.StatusNotFound, "File not found")
		return
	}

	local, ok := h.store.(*storage.LocalStore)
	if !ok {
		http.Redirect(w, r, h.store.URL(key), http.StatusTemporaryRedirect)
		return
	}

	p, err := local.Resolve(key)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Invalid file path.")
		return
	}
	zap.L().Debug("serving file", zap.String("key", key))
	http.ServeFile(w, r, p)
}
