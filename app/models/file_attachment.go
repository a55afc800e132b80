package models

import (
	"time"
)

// FileAttachment links a stored file to an owning entity (the
// "filesystem_entities" table). Rows are superseded or soft-deleted, never
// physically removed.
type FileAttachment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SystemModulesID uint      `gorm:"not null;index:idx_file_attachments_entity,priority:1" json:"system_modules_id"`
	EntityID        uint      `gorm:"not null;index:idx_file_attachments_entity,priority:2" json:"entity_id"`
	FilesystemID    uint      `gorm:"not null;index" json:"filesystem_id"`
	CompaniesID     uint      `gorm:"not null;index" json:"companies_id"`
	FieldName       string    `gorm:"type:varchar(100);default:''" json:"field_name"`
	IsDeleted       int       `gorm:"type:tinyint(1);not null;default:0" json:"is_deleted"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	File *File `gorm:"foreignKey:FilesystemID" json:"file,omitempty"`
}

func (FileAttachment) TableName() string {
	return "filesystem_entities"
}

// SoftDelete marks the attachment deleted without erasing the row.
func (a *FileAttachment) SoftDelete() {
	a.IsDeleted = 1
}
