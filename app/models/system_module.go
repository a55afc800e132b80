package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemModule registers an entity type so file attachments can be scoped
// generically across unrelated tables.
type SystemModule struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	ModelName string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"model_name"`
	IsDeleted int       `gorm:"type:tinyint(1);not null;default:0" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetSystemModuleByModelName resolves a module by its registered model name.
func GetSystemModuleByModelName(db *gorm.DB, modelName string) (*SystemModule, error) {
	var module SystemModule
	err := db.Where("model_name = ? AND is_deleted = 0", modelName).First(&module).Error
	if err != nil {
		return nil, err
	}
	return &module, nil
}

// GetOrCreateSystemModule resolves a module by model name, registering it on first use.
func GetOrCreateSystemModule(db *gorm.DB, name, modelName string) (*SystemModule, error) {
	module, err := GetSystemModuleByModelName(db, modelName)
	if err == nil {
		return module, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	module = &SystemModule{Name: name, ModelName: modelName}
	if err := db.Create(module).Error; err != nil {
		return nil, err
	}
	return module, nil
}
