package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

const (
	AccessTokenLifetime  = time.Hour * 24
	RefreshTokenLifetime = time.Hour * 24 * 31
)

// Session is an issued token pair for a logged-in device.
type Session struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UsersID             uint       `gorm:"not null;index" json:"users_id"`
	Token               string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"token"`
	RefreshToken        string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"refresh_token"`
	TokenExpiration     time.Time  `gorm:"type:timestamp;not null" json:"token_expiration"`
	RefreshExpiration   time.Time  `gorm:"type:timestamp;not null" json:"refresh_token_expiration"`
	IP                  string     `gorm:"type:varchar(45)" json:"-"`
	EndedAt             *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// StartSession issues a fresh token pair for the user and persists the session row.
func StartSession(db *gorm.DB, user *User, ip string) (*Session, error) {
	token, err := randomSessionToken()
	if err != nil {
		return nil, err
	}
	refresh, err := randomSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		UsersID:           user.ID,
		Token:             token,
		RefreshToken:      refresh,
		TokenExpiration:   now.Add(AccessTokenLifetime),
		RefreshExpiration: now.Add(RefreshTokenLifetime),
		IP:                ip,
	}
	if err := db.Create(session).Error; err != nil {
		return nil, err
	}

	user.LastLoginAt = &now
	if err := db.Model(user).Update("last_login_at", &now).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// RestartSession ends the given session and issues a replacement token pair.
func RestartSession(db *gorm.DB, user *User, refreshToken, ip string) (*Session, error) {
	var old Session
	err := db.Where("users_id = ? AND refresh_token = ? AND ended_at IS NULL", user.ID, refreshToken).
		First(&old).Error
	if err != nil {
		return nil, err
	}
	if old.RefreshExpiration.Before(time.Now()) {
		return nil, gorm.ErrRecordNotFound
	}

	now := time.Now()
	old.EndedAt = &now
	if err := db.Save(&old).Error; err != nil {
		return nil, err
	}
	return StartSession(db, user, ip)
}

// EndSessions closes all open sessions for a user (logout from all devices).
func EndSessions(db *gorm.DB, userID uint) error {
	now := time.Now()
	return db.Model(&Session{}).
		Where("users_id = ? AND ended_at IS NULL", userID).
		Update("ended_at", &now).Error
}

// GetSessionByToken resolves an unexpired, open session by its access token.
func GetSessionByToken(db *gorm.DB, token string) (*Session, error) {
	var session Session
	err := db.Where("token = ? AND ended_at IS NULL AND token_expiration > ?", token, time.Now()).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func randomSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
