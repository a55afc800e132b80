package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer, float
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings represents the application-wide deployment flags
type AppSettings struct {
	AppName string `json:"app_name" validate:"required,min=1,max=255"`
	// PublicAttachments exposes attachments by entity id alone, without
	// company scoping on reads.
	PublicAttachments bool `json:"public_attachments"`
	// DeleteFilesOnEmptyFilesField makes an explicit empty files list on
	// update remove the entity's existing attachments.
	DeleteFilesOnEmptyFilesField bool `json:"delete_images_on_empty_files_field"`
	mu                           sync.RWMutex
}

// Global settings instance
var (
	appSettings = &AppSettings{AppName: "Canvas"}
	settingsMu  sync.RWMutex
)

// GetAppSettings returns the current application settings
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	// Initialize with defaults
	appSettings = &AppSettings{
		AppName:                      "Canvas",
		PublicAttachments:            false,
		DeleteFilesOnEmptyFilesField: false,
	}

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "app_name":
			appSettings.AppName = setting.Value
		case "public_attachments":
			appSettings.PublicAttachments = setting.Value == "true"
		case "delete_images_on_empty_files_field":
			appSettings.DeleteFilesOnEmptyFilesField = setting.Value == "true"
		}
	}

	return nil
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]interface{}{
		"app_name":                           settings.AppName,
		"public_attachments":                 fmt.Sprintf("%t", settings.PublicAttachments),
		"delete_images_on_empty_files_field": fmt.Sprintf("%t", settings.DeleteFilesOnEmptyFilesField),
	}

	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: fmt.Sprintf("%v", value),
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = fmt.Sprintf("%v", value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "app_name":
		return "string"
	case "public_attachments", "delete_images_on_empty_files_field":
		return "boolean"
	default:
		return "string"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// ToJSON converts settings to JSON
func (s *AppSettings) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s)
}

// FromJSON loads settings from JSON
func (s *AppSettings) FromJSON(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Unmarshal(data, s)
}

// IsPublicAttachments returns whether attachments skip company scoping
func (s *AppSettings) IsPublicAttachments() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PublicAttachments
}

// IsDeleteFilesOnEmptyFilesField returns whether an explicit empty files list deletes attachments
func (s *AppSettings) IsDeleteFilesOnEmptyFilesField() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DeleteFilesOnEmptyFilesField
}
