package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
)

// processMoveFileJob relocates a stored file's bytes under a new directory.
func (q *Queue) processMoveFileJob(ctx context.Context, job *Job) error {
	if q.backend == nil {
		return fmt.Errorf("no storage backend configured")
	}

	payload, err := MoveFileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid move_file payload: %w", err)
	}

	file, err := models.GetFileByID(database.GetDB().WithContext(ctx), payload.FileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The file was removed while the job sat in the queue.
			log.Warnf("[JobQueue] move_file: file %d no longer exists, skipping", payload.FileID)
			return nil
		}
		return fmt.Errorf("load file %d: %w", payload.FileID, err)
	}

	return q.backend.Move(ctx, file, payload.TargetDir)
}

// processDeleteFileJob removes a soft-deleted file's physical bytes. The
// metadata row stays for audit.
func (q *Queue) processDeleteFileJob(ctx context.Context, job *Job) error {
	if q.backend == nil {
		return fmt.Errorf("no storage backend configured")
	}

	payload, err := DeleteFileJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid delete_file payload: %w", err)
	}
	if payload.Path == "" {
		return fmt.Errorf("delete_file payload is missing the path")
	}

	if err := q.backend.Delete(ctx, payload.Path); err != nil {
		return fmt.Errorf("delete file %d bytes: %w", payload.FileID, err)
	}

	log.Infof("[JobQueue] removed physical bytes for file %d (%s)", payload.FileID, payload.Path)
	return nil
}
