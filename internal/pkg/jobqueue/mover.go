package jobqueue

import (
	"context"
	"fmt"

	"github.com/tiberius19/canvas-core/app/models"
)

// AsyncMover hands file relocations to the worker instead of moving bytes
// inside the request. It satisfies the attachment store's mover seam.
type AsyncMover struct {
	queue *Queue
}

func NewAsyncMover(queue *Queue) *AsyncMover {
	return &AsyncMover{queue: queue}
}

func (m *AsyncMover) Move(ctx context.Context, file *models.File, targetDir string) error {
	payload := MoveFileJobPayload{FileID: file.ID, TargetDir: targetDir}
	if _, err := m.queue.EnqueueJob(JobTypeMoveFile, payload.ToMap()); err != nil {
		return fmt.Errorf("enqueue move for file %d: %w", file.ID, err)
	}
	return nil
}
