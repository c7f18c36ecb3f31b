package repository

import (
	"context"

	"github.com/ManuelReschke/TalentFox/app/models"
	"gorm.io/gorm"
)

type jobPostingRepository struct {
	db *gorm.DB
}

// NewJobPostingRepository creates a new job posting repository instance
func NewJobPostingRepository(db *gorm.DB) JobPostingRepository {
	return &jobPostingRepository{db: db}
}

func (r *jobPostingRepository) Create(ctx context.Context, job *models.JobPosting) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByUUID retrieves a posting by its public id, scoped to the tenant
func (r *jobPostingRepository) GetByUUID(ctx context.Context, tenantID uint, uuid string) (*models.JobPosting, error) {
	var job models.JobPosting
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND uuid = ?", tenantID, uuid).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByTenant lists postings of a tenant, optionally filtered by status
func (r *jobPostingRepository) ListByTenant(ctx context.Context, tenantID uint, status string, offset, limit int) ([]models.JobPosting, error) {
	var jobs []models.JobPosting
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&jobs).Error
	return jobs, err
}

// ListPublished lists what the public career portal shows
func (r *jobPostingRepository) ListPublished(ctx context.Context, tenantID uint, offset, limit int) ([]models.JobPosting, error) {
	var jobs []models.JobPosting
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.JOB_STATUS_PUBLISHED).
		Order("published_at DESC").Offset(offset).Limit(limit).Find(&jobs).Error
	return jobs, err
}

// CountPublished counts postings that count against the plan limit
func (r *jobPostingRepository) CountPublished(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.JobPosting{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.JOB_STATUS_PUBLISHED).
		Count(&count).Error
	return count, err
}

func (r *jobPostingRepository) Update(ctx context.Context, job *models.JobPosting) error {
	// view_count is owned by the view counter flush
	return r.db.WithContext(ctx).Omit("view_count").Save(job).Error
}

func (r *jobPostingRepository) Delete(ctx context.Context, tenantID uint, uuid string) error {
	tx := r.db.WithContext(ctx).Where("tenant_id = ? AND uuid = ?", tenantID, uuid).Delete(&models.JobPosting{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
