package models

import "time"

// Notification is a queued email notification. The worker marks it sent
// after SMTP delivery; failed sends keep the row for replay.
type Notification struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UsersID      uint       `gorm:"not null;index" json:"users_id"`
	Recipient    string     `gorm:"type:varchar(200);not null" json:"recipient"`
	TemplateName string     `gorm:"type:varchar(100);not null;index" json:"template_name"`
	Subject      string     `gorm:"type:varchar(200);not null" json:"subject"`
	ContextJSON  string     `gorm:"type:longtext" json:"context_json"`
	SentAt       *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	LastError    string     `gorm:"type:text" json:"last_error"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
