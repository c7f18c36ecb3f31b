package repository

import (
	"context"

	"github.com/ManuelReschke/TalentFox/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user of a tenant by ID
func (r *userRepository) GetByID(ctx context.Context, tenantID, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user of a tenant by email address
func (r *userRepository) GetByEmail(ctx context.Context, tenantID uint, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, models.NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByTenant retrieves a paginated list of a tenant's users
func (r *userRepository) ListByTenant(ctx context.Context, tenantID uint, offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).
		Order("created_at ASC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// CountByTenant returns the number of users of a tenant
func (r *userRepository) CountByTenant(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// CountAdmins returns the number of ADMIN users of a tenant
func (r *userRepository) CountAdmins(ctx context.Context, tenantID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("tenant_id = ? AND role = ?", tenantID, models.ROLE_ADMIN).
		Count(&count).Error
	return count, err
}

// Update updates an existing user in the database
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// Delete soft deletes a user of a tenant
func (r *userRepository) Delete(ctx context.Context, tenantID, id uint) error {
	tx := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.User{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
