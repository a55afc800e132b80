package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/mail"
)

// Deliver sends one persisted notification via SMTP and marks the row.
// Already-sent rows are skipped, so a redelivered job sends nothing twice.
func Deliver(ctx context.Context, db *gorm.DB, notificationID uint) error {
	var notification models.Notification
	err := db.WithContext(ctx).First(&notification, notificationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Notifications] notification %d no longer exists, skipping", notificationID)
			return nil
		}
		return fmt.Errorf("load notification %d: %w", notificationID, err)
	}

	if notification.SentAt != nil {
		return nil
	}

	var data map[string]interface{}
	if notification.ContextJSON != "" {
		if err := json.Unmarshal([]byte(notification.ContextJSON), &data); err != nil {
			return recordFailure(ctx, db, &notification, fmt.Errorf("decode context: %w", err))
		}
	}

	body, err := Render(notification.TemplateName, data)
	if err != nil {
		return recordFailure(ctx, db, &notification, err)
	}

	if err := mail.SendMail(notification.Recipient, notification.Subject, body); err != nil {
		return recordFailure(ctx, db, &notification, err)
	}

	now := time.Now()
	if err := db.WithContext(ctx).Model(&notification).
		Updates(map[string]interface{}{
			"sent_at":    &now,
			"last_error": "",
		}).Error; err != nil {
		return fmt.Errorf("mark notification %d sent: %w", notification.ID, err)
	}

	log.Infof("[Notifications] delivered %s to %s", notification.TemplateName, notification.Recipient)
	return nil
}

// recordFailure stores the failure on the row and returns the original
// error so the job queue can retry.
func recordFailure(ctx context.Context, db *gorm.DB, notification *models.Notification, cause error) error {
	if err := db.WithContext(ctx).Model(notification).
		Update("last_error", cause.Error()).Error; err != nil {
		log.Errorf("[Notifications] recording failure for %d failed: %v", notification.ID, err)
	}
	return cause
}
