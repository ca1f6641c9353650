// Package storage persists uploaded MOV files. Handlers depend on the Store
// interface; main picks the local disk or Cloudflare R2 implementation.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// FileInfo describes a stored object.
type FileInfo struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

type Store interface {
	Save(ctx context.Context, key string, file io.Reader, contentType string) (*FileInfo, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
