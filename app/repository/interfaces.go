package repository

import (
	"context"

	"github.com/ManuelReschke/TalentFox/app/models"
	"gorm.io/gorm"
)

// TenantRepository defines the interface for tenant-related database operations
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uint) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Tenant, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, offset, limit int) ([]models.Tenant, error)
	FindDuplicateCustomers(ctx context.Context) ([]DuplicateCustomer, error)
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, tenantID, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, tenantID uint, email string) (*models.User, error)
	ListByTenant(ctx context.Context, tenantID uint, offset, limit int) ([]models.User, error)
	CountByTenant(ctx context.Context, tenantID uint) (int64, error)
	CountAdmins(ctx context.Context, tenantID uint) (int64, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, tenantID, id uint) error
}

// JobPostingRepository defines the interface for job posting operations
type JobPostingRepository interface {
	Create(ctx context.Context, job *models.JobPosting) error
	GetByUUID(ctx context.Context, tenantID uint, uuid string) (*models.JobPosting, error)
	ListByTenant(ctx context.Context, tenantID uint, status string, offset, limit int) ([]models.JobPosting, error)
	ListPublished(ctx context.Context, tenantID uint, offset, limit int) ([]models.JobPosting, error)
	CountPublished(ctx context.Context, tenantID uint) (int64, error)
	Update(ctx context.Context, job *models.JobPosting) error
	Delete(ctx context.Context, tenantID uint, uuid string) error
}

// ActivationTokenRepository defines the interface for one-time activation tokens
type ActivationTokenRepository interface {
	Create(ctx context.Context, token *models.ActivationToken) error
	GetByHash(ctx context.Context, hash string) (*models.ActivationToken, error)
	// MarkUsed flags the token as used only if it was unused; it reports
	// whether this call won.
	MarkUsed(ctx context.Context, id uint) (bool, error)
	InvalidateForUser(ctx context.Context, userID uint) error
	WithTx(tx *gorm.DB) ActivationTokenRepository
}

// DuplicateCustomer is a Stripe customer id referenced by more than one tenant row.
type DuplicateCustomer struct {
	StripeCustomerID string
	TenantCount      int64
}

// Repositories struct holds all repository instances
type Repositories struct {
	Tenant          TenantRepository
	User            UserRepository
	JobPosting      JobPostingRepository
	ActivationToken ActivationTokenRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenant:          NewTenantRepository(db),
		User:            NewUserRepository(db),
		JobPosting:      NewJobPostingRepository(db),
		ActivationToken: NewActivationTokenRepository(db),
	}
}
