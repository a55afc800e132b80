package storage

import (
	"context"
	"fmt"
	"io"

	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
)

// Backend stores, relocates and removes physical file bytes. The metadata
// row is updated by the backend when a relocation succeeds.
type Backend interface {
	// Save writes the bytes under the given key and returns the stored path.
	Save(ctx context.Context, r io.Reader, size int64, key, contentType string) (string, error)
	// Move relocates a stored file under targetDir and updates its
	// metadata path.
	Move(ctx context.Context, file *models.File, targetDir string) error
	// Delete removes the stored bytes for the given path.
	Delete(ctx context.Context, path string) error
	// Open returns a reader over the stored bytes. The caller closes it.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// New builds the backend selected by the configuration.
func New(ctx context.Context, db *gorm.DB, cfg *Config) (Backend, error) {
	switch cfg.Driver {
	case DriverLocal:
		return NewLocalBackend(db, cfg.LocalRoot), nil
	case DriverS3:
		return NewS3Backend(ctx, db, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// getContentType returns the MIME type based on file extension
func getContentType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
