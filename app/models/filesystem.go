package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is a stored file's metadata row (the "filesystem" table).
type File struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Path        string    `gorm:"type:varchar(500);not null" json:"path" validate:"required,max=500"`
	FileType    string    `gorm:"type:varchar(50);index" json:"file_type"`
	Size        int64     `gorm:"not null;default:0" json:"size"`
	CompaniesID uint      `gorm:"not null;index" json:"companies_id"`
	UsersID     uint      `gorm:"not null;index" json:"users_id"`
	IsDeleted   int       `gorm:"type:tinyint(1);not null;default:0;index" json:"is_deleted"`
	// DownloadCount is flushed in batches from redis, not written per hit.
	DownloadCount int64     `gorm:"not null;default:0" json:"download_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (File) TableName() string {
	return "filesystem"
}

func (f *File) Validate() error {
	v := validator.New()

	return v.Struct(f)
}

// NewFile builds a file metadata row with a fresh UUID.
func NewFile(name, path, fileType string, size int64, companyID, userID uint) *File {
	return &File{
		UUID:        uuid.New().String(),
		Name:        name,
		Path:        path,
		FileType:    fileType,
		Size:        size,
		CompaniesID: companyID,
		UsersID:     userID,
	}
}

// FileSetting is a per-file key/value attribute, used to disambiguate
// multiple files under one logical slot (e.g. an image variant by resolution).
type FileSetting struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FilesystemID uint      `gorm:"not null;index:ux_file_settings_name,unique,priority:1" json:"filesystem_id"`
	Name         string    `gorm:"type:varchar(100);not null;index:ux_file_settings_name,unique,priority:2" json:"name"`
	Value        string    `gorm:"type:varchar(255);not null" json:"value"`
	IsDeleted    int       `gorm:"type:tinyint(1);not null;default:0" json:"is_deleted"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (FileSetting) TableName() string {
	return "filesystem_settings"
}

// GetFileByID fetches a not-deleted file row.
func GetFileByID(db *gorm.DB, id uint) (*File, error) {
	var file File
	err := db.Where("id = ? AND is_deleted = 0", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// GetFileByUUID fetches a not-deleted file row by its public UUID.
func GetFileByUUID(db *gorm.DB, fileUUID string) (*File, error) {
	var file File
	err := db.Where("uuid = ? AND is_deleted = 0", fileUUID).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}
