package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
)

// LocalBackend stores file bytes on the local filesystem under a root
// directory.
type LocalBackend struct {
	db   *gorm.DB
	root string
}

// NewLocalBackend creates a local filesystem backend rooted at root.
func NewLocalBackend(db *gorm.DB, root string) *LocalBackend {
	return &LocalBackend{db: db, root: root}
}

func (b *LocalBackend) Save(ctx context.Context, r io.Reader, size int64, key, contentType string) (string, error) {
	target := filepath.Join(b.root, key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", target, err)
	}

	log.Infof("[Storage] stored %s (%d bytes)", target, size)
	return target, nil
}

func (b *LocalBackend) Move(ctx context.Context, file *models.File, targetDir string) error {
	target := filepath.Join(b.root, targetDir, filepath.Base(file.Path))
	if target == file.Path {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(file.Path, target); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", file.Path, target, err)
	}

	previous := file.Path
	file.Path = target
	if err := b.db.WithContext(ctx).Model(file).Update("path", target).Error; err != nil {
		// Put the bytes back so path and metadata stay in sync.
		if moveErr := os.Rename(target, previous); moveErr != nil {
			log.Errorf("[Storage] rollback of %s failed: %v", target, moveErr)
		}
		file.Path = previous
		return fmt.Errorf("failed to update file path: %w", err)
	}

	log.Infof("[Storage] moved %s -> %s", previous, target)
	return nil
}

func (b *LocalBackend) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func (b *LocalBackend) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
