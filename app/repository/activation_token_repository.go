package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/TalentFox/app/models"
	"gorm.io/gorm"
)

type activationTokenRepository struct {
	db *gorm.DB
}

// NewActivationTokenRepository creates a new activation token repository instance
func NewActivationTokenRepository(db *gorm.DB) ActivationTokenRepository {
	return &activationTokenRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *activationTokenRepository) WithTx(tx *gorm.DB) ActivationTokenRepository {
	return &activationTokenRepository{db: tx}
}

func (r *activationTokenRepository) Create(ctx context.Context, token *models.ActivationToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *activationTokenRepository) GetByHash(ctx context.Context, hash string) (*models.ActivationToken, error) {
	if hash == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var token models.ActivationToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *activationTokenRepository) MarkUsed(ctx context.Context, id uint) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.ActivationToken{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", time.Now())
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// InvalidateForUser burns every pending token of the user
func (r *activationTokenRepository) InvalidateForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Model(&models.ActivationToken{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", time.Now()).Error
}
