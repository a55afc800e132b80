package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

type User struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Firstname            string         `gorm:"type:varchar(100)" json:"firstname" validate:"required,min=1,max=100"`
	Lastname             string         `gorm:"type:varchar(100)" json:"lastname" validate:"required,min=1,max=100"`
	Displayname          string         `gorm:"type:varchar(150)" json:"displayname" validate:"max=150"`
	Email                string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password             string         `gorm:"type:text" json:"-" validate:"required,min=8"`
	Role                 string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status               string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	DefaultCompanyID     uint           `gorm:"index" json:"default_company_id"`
	UserActivationEmail  string         `gorm:"type:varchar(100);default:null;index" json:"-"`
	UserActivationForgot string         `gorm:"type:varchar(100);default:null;index" json:"-"`
	PendingEmail         string         `gorm:"type:varchar(200);default:null" json:"-"`
	LastLoginAt          *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt            time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(firstname, lastname, email, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Firstname: firstname,
		Lastname:  lastname,
		Email:     email,
		Password:  pw,
		Role:      ROLE_USER,
		Status:    STATUS_ACTIVE,
	}
	u.Displayname = u.GenerateDefaultDisplayname()

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// GenerateDefaultDisplayname builds a display name from first and last name.
func (u *User) GenerateDefaultDisplayname() string {
	return u.Firstname + " " + u.Lastname
}

// GenerateForgotHash creates the random key used by the password recovery mail
func (u *User) GenerateForgotHash() error {
	token, err := randomToken()
	if err != nil {
		return err
	}
	u.UserActivationForgot = token
	return nil
}

// GenerateEmailChangeHash creates the random key used by the email change mail
func (u *User) GenerateEmailChangeHash() error {
	token, err := randomToken()
	if err != nil {
		return err
	}
	u.UserActivationEmail = token
	return nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetUserByEmail finds a user by email
func GetUserByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID finds a user by primary key
func GetUserByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByForgotHash finds a user by the password recovery key
func GetUserByForgotHash(db *gorm.DB, key string) (*User, error) {
	var user User
	if err := db.Where("user_activation_forgot = ?", key).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmailChangeHash finds a user by the email change key
func GetUserByEmailChangeHash(db *gorm.DB, hash string) (*User, error) {
	var user User
	if err := db.Where("user_activation_email = ?", hash).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
