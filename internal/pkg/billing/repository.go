package billing

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/TalentFox/app/models"
)

// Repository is the idempotency ledger used by the billing service.
type Repository interface {
	// CreateWebhookEventIfNotExists inserts event unless a row with its id
	// exists. It reports whether this call created the row and returns the
	// stored row either way.
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id string, processingError string) error
	GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	stored, err := r.GetWebhookEvent(ctx, event.ID)
	if err != nil {
		return false, nil, err
	}
	return created, stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id string, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) GetWebhookEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ListWebhookEvents returns the newest ledger rows first, without payloads.
func (r *gormRepository) ListWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []models.WebhookEvent
	err := r.db.WithContext(ctx).
		Omit("payload").
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
