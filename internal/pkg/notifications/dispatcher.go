package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/jobqueue"
)

// Enqueuer is the job queue surface the dispatcher needs.
type Enqueuer interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Dispatcher records notifications and hands delivery off to the worker.
// It satisfies the webhook processor's Notifier interface.
type Dispatcher struct {
	db    *gorm.DB
	queue Enqueuer
}

// NewDispatcher creates a dispatcher over the given DB and queue.
func NewDispatcher(db *gorm.DB, queue Enqueuer) *Dispatcher {
	return &Dispatcher{db: db, queue: queue}
}

// Notify persists the notification row and enqueues its delivery job. The
// row exists before the job, so a crashed worker can always be replayed
// from the table.
func (d *Dispatcher) Notify(ctx context.Context, user *models.User, templateName, subject string, data map[string]interface{}) error {
	if !HasTemplate(templateName) {
		return fmt.Errorf("unknown mail template %q", templateName)
	}

	contextJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode notification context: %w", err)
	}

	notification := &models.Notification{
		UsersID:      user.ID,
		Recipient:    user.Email,
		TemplateName: templateName,
		Subject:      subject,
		ContextJSON:  string(contextJSON),
	}
	if err := d.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	payload := jobqueue.SendNotificationJobPayload{NotificationID: notification.ID}
	if _, err := d.queue.EnqueueJob(jobqueue.JobTypeSendNotification, payload.ToMap()); err != nil {
		// The row stays; the queue sweeper or a manual replay picks it up.
		log.Errorf("[Notifications] enqueue for notification %d failed: %v", notification.ID, err)
		return fmt.Errorf("enqueue notification %d: %w", notification.ID, err)
	}

	log.Infof("[Notifications] queued %s for %s", templateName, user.Email)
	return nil
}
