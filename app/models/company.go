package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CompanySettingPaid mirrors Subscription.paid as a per-company setting for
// fast reads. It is derived state, never the source of truth.
const CompanySettingPaid = "paid"

type Company struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	UsersID   uint           `gorm:"not null;index" json:"users_id"`
	IsDeleted int            `gorm:"type:tinyint(1);not null;default:0;index" json:"is_deleted"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Company) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// CompanyGroup is the billing grouping of a company. It owns exactly one
// Subscription and carries the external payment-provider customer id, which
// is the lookup key for inbound webhook events.
type CompanyGroup struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"type:varchar(150);not null" json:"name"`
	UsersID          uint      `gorm:"not null;index" json:"users_id"`
	CompaniesID      uint      `gorm:"not null;index" json:"companies_id"`
	StripeCustomerID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"stripe_customer_id"`
	IsDeleted        int       `gorm:"type:tinyint(1);not null;default:0" json:"is_deleted"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User         *User         `gorm:"foreignKey:UsersID" json:"user,omitempty"`
	Subscription *Subscription `gorm:"foreignKey:CompanyGroupsID" json:"subscription,omitempty"`
}

// CompanySetting is a per-company key/value setting.
type CompanySetting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CompaniesID uint      `gorm:"not null;index:ux_company_settings_name,unique,priority:1" json:"companies_id"`
	Name        string    `gorm:"type:varchar(100);not null;index:ux_company_settings_name,unique,priority:2" json:"name"`
	Value       string    `gorm:"type:text" json:"value"`
	IsDeleted   int       `gorm:"type:tinyint(1);not null;default:0" json:"is_deleted"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetCompanyGroupByStripeCustomerID resolves the billing group for a provider customer id.
func GetCompanyGroupByStripeCustomerID(db *gorm.DB, customerID string) (*CompanyGroup, error) {
	var group CompanyGroup
	err := db.Preload("User").Preload("Subscription").
		Where("stripe_customer_id = ? AND is_deleted = 0", customerID).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// SetCompanySetting creates or updates a company setting by name.
func SetCompanySetting(db *gorm.DB, companyID uint, name, value string) error {
	var setting CompanySetting
	err := db.Where("companies_id = ? AND name = ? AND is_deleted = 0", companyID, name).
		First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		setting = CompanySetting{
			CompaniesID: companyID,
			Name:        name,
			Value:       value,
		}
		return db.Create(&setting).Error
	} else if err != nil {
		return err
	}

	setting.Value = value
	return db.Save(&setting).Error
}

// GetCompanySetting reads a company setting value; missing settings return "".
func GetCompanySetting(db *gorm.DB, companyID uint, name string) (string, error) {
	var setting CompanySetting
	err := db.Where("companies_id = ? AND name = ? AND is_deleted = 0", companyID, name).
		First(&setting).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}
