package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// DefaultTrialDays is the free trial length granted on signup.
const DefaultTrialDays = 14

// Subscription tracks the paid state of a company group. Rows are only ever
// updated by the webhook processor, never deleted.
type Subscription struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CompanyGroupsID uint       `gorm:"not null;uniqueIndex" json:"company_groups_id"`
	UsersID         uint       `gorm:"not null;index" json:"users_id"`
	StripeID        string     `gorm:"type:varchar(191);default:''" json:"stripe_id"`
	PlanName        string     `gorm:"type:varchar(100);default:''" json:"plan_name"`
	Paid            bool       `gorm:"not null;default:false" json:"paid"`
	ChargeDate      *time.Time `gorm:"type:timestamp;default:null" json:"charge_date,omitempty"`
	IsFreetrial     bool       `gorm:"not null;default:false" json:"is_freetrial"`
	TrialEndsDays   int        `gorm:"not null;default:0" json:"trial_ends_days"`
	GracePeriodEnds *time.Time `gorm:"type:timestamp;default:null" json:"grace_period_ends,omitempty"`
	IsDeleted       int        `gorm:"type:tinyint(1);not null;default:0" json:"is_deleted"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClearTrial drops the free-trial flags. Invariant: a paid subscription is
// never also on trial.
func (s *Subscription) ClearTrial() {
	s.IsFreetrial = false
	s.TrialEndsDays = 0
}

// NewTrialSubscription builds the free-trial subscription created on signup.
func NewTrialSubscription(groupID, userID uint) *Subscription {
	return &Subscription{
		CompanyGroupsID: groupID,
		UsersID:         userID,
		Paid:            false,
		IsFreetrial:     true,
		TrialEndsDays:   DefaultTrialDays,
	}
}

// GetSubscriptionByCompanyGroup fetches the one subscription of a company group.
func GetSubscriptionByCompanyGroup(db *gorm.DB, groupID uint) (*Subscription, error) {
	var sub Subscription
	err := db.Where("company_groups_id = ? AND is_deleted = 0", groupID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscriptionForCompany resolves a company's subscription through its
// billing group.
func GetSubscriptionForCompany(db *gorm.DB, companyID uint) (*Subscription, error) {
	var group CompanyGroup
	err := db.Where("companies_id = ? AND is_deleted = 0", companyID).First(&group).Error
	if err != nil {
		return nil, err
	}
	return GetSubscriptionByCompanyGroup(db, group.ID)
}
