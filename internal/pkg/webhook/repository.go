package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tiberius19/canvas-core/app/models"
)

// Repository provides DB operations used by the webhook processor.
type Repository interface {
	GetCompanyGroupByCustomerID(customerID string) (*models.CompanyGroup, error)
	GetSubscription(companyGroupID uint) (*models.Subscription, error)
	// SaveSubscriptionWithMirror persists the subscription and the derived
	// CompanySetting("paid") mirror inside one transaction.
	SaveSubscriptionWithMirror(sub *models.Subscription, companyID uint) error
	CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkEventProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetCompanyGroupByCustomerID(customerID string) (*models.CompanyGroup, error) {
	return models.GetCompanyGroupByStripeCustomerID(r.db, customerID)
}

func (r *gormRepository) GetSubscription(companyGroupID uint) (*models.Subscription, error) {
	return models.GetSubscriptionByCompanyGroup(r.db, companyGroupID)
}

func (r *gormRepository) SaveSubscriptionWithMirror(sub *models.Subscription, companyID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return err
		}
		// Mirror uses "1"/"0" so existing readers of the setting keep working.
		mirror := "0"
		if sub.Paid {
			mirror = "1"
		}
		return models.SetCompanySetting(tx, companyID, models.CompanySettingPaid, mirror)
	})
}

func (r *gormRepository) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkEventProcessed(id uint, processingError string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}

// EventIDForPayload derives a deterministic event id when the provider did
// not send one, so redeliveries still deduplicate.
func EventIDForPayload(eventID string, payload []byte) string {
	if eventID != "" {
		return eventID
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
