package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ActivationToken is a one-time account activation token. Only the SHA-256
// hash of the raw token is stored.
type ActivationToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	TenantID  uint       `gorm:"not null;index" json:"tenant_id"`
	TokenHash string     `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"type:timestamp;default:null" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// NewActivationToken creates a token valid for ttl and returns the raw secret
// that goes into the activation link.
func NewActivationToken(userID, tenantID uint, ttl time.Duration) (*ActivationToken, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, "", err
	}
	raw := hex.EncodeToString(b)
	return &ActivationToken{
		UserID:    userID,
		TenantID:  tenantID,
		TokenHash: HashActivationToken(raw),
		ExpiresAt: time.Now().Add(ttl),
	}, raw, nil
}

// HashActivationToken returns the SHA-256 hash for the provided raw token.
func HashActivationToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func (t *ActivationToken) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *ActivationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
