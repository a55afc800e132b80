package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/database"
)

// NotificationSender delivers one persisted notification by id.
type NotificationSender func(ctx context.Context, notificationID uint) error

var notificationSender NotificationSender

// SetNotificationSender wires the delivery function used by
// send_notification jobs. Set once at startup, before Start.
func SetNotificationSender(sender NotificationSender) {
	notificationSender = sender
}

// processSendNotificationJob delivers one queued notification.
func (q *Queue) processSendNotificationJob(ctx context.Context, job *Job) error {
	payload, err := SendNotificationJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid send_notification payload: %w", err)
	}
	if payload.NotificationID == 0 {
		return fmt.Errorf("send_notification payload is missing the notification id")
	}
	if notificationSender == nil {
		return fmt.Errorf("no notification sender configured")
	}

	return notificationSender(ctx, payload.NotificationID)
}

// ReplayUnsentNotifications re-enqueues delivery jobs for notification rows
// that are old enough to have lost their job, e.g. after a crash between
// row insert and enqueue.
func (q *Queue) ReplayUnsentNotifications() error {
	cutoff := time.Now().Add(-10 * time.Minute)

	var stale []models.Notification
	err := database.GetDB().
		Where("sent_at IS NULL AND created_at < ?", cutoff).
		Order("id ASC").
		Limit(100).
		Find(&stale).Error
	if err != nil {
		return fmt.Errorf("list unsent notifications: %w", err)
	}

	for _, notification := range stale {
		payload := SendNotificationJobPayload{NotificationID: notification.ID}
		if _, err := q.EnqueueJob(JobTypeSendNotification, payload.ToMap()); err != nil {
			return fmt.Errorf("re-enqueue notification %d: %w", notification.ID, err)
		}
		log.Infof("[JobQueue] replayed unsent notification %d for %s", notification.ID, notification.Recipient)
	}
	return nil
}
