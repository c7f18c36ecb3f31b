package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_ADMIN      = "ADMIN"
	ROLE_USER       = "USER"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// User belongs to exactly one tenant; emails are unique per tenant.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	TenantID    uint           `gorm:"not null;uniqueIndex:ux_users_tenant_email,priority:1,where:deleted_at IS NULL" json:"tenant_id" validate:"required"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"max=150,singleline"`
	Email       string         `gorm:"type:varchar(200);not null;uniqueIndex:ux_users_tenant_email,priority:2" json:"email" validate:"required,email,max=200"`
	Password    string         `gorm:"type:text" json:"-"`
	Role        string         `gorm:"type:varchar(16);default:'USER'" json:"role" validate:"oneof=ADMIN USER"`
	Status      string         `gorm:"type:varchar(32);default:'inactive'" json:"status" validate:"oneof=active inactive disabled"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := NewValidator()

	return v.Struct(u)
}

// NewInvitedUser builds an inactive user that still needs to set a password
// through an activation token.
func NewInvitedUser(tenantID uint, email, name, role string) (*User, error) {
	if role == "" {
		role = ROLE_USER
	}
	u := &User{
		TenantID: tenantID,
		Name:     strings.TrimSpace(name),
		Email:    NormalizeEmail(email),
		Role:     role,
		Status:   STATUS_INACTIVE,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
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

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	if u.Password == "" {
		return false
	}
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
