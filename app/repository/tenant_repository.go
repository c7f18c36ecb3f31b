package repository

import (
	"context"
	"strings"

	"github.com/ManuelReschke/TalentFox/app/models"
	"gorm.io/gorm"
)

// tenantRepository implements the TenantRepository interface
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository instance
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

// Create creates a new tenant in the database
func (r *tenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

// GetByID retrieves a tenant by its ID
func (r *tenantRepository) GetByID(ctx context.Context, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).First(&tenant, id).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetBySlug retrieves a tenant by its subdomain slug
func (r *tenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return r.first(ctx, "slug = ?", strings.ToLower(strings.TrimSpace(slug)))
}

// GetByStripeCustomerID retrieves the tenant owning a Stripe customer
func (r *tenantRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.Tenant, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return r.first(ctx, "stripe_customer_id = ?", customerID)
}

// GetByStripeSubscriptionID retrieves the tenant owning a Stripe subscription
func (r *tenantRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return r.first(ctx, "stripe_subscription_id = ?", subscriptionID)
}

// Update updates an existing tenant in the database
func (r *tenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Save(tenant).Error
}

// SlugExists reports whether a slug is taken, soft-deleted tenants included
func (r *tenantRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Tenant{}).
		Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).
		Count(&count).Error
	return count > 0, err
}

// List retrieves a paginated list of tenants
func (r *tenantRepository) List(ctx context.Context, offset, limit int) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&tenants).Error
	return tenants, err
}

// FindDuplicateCustomers lists Stripe customer ids held by more than one tenant
// row. With the unique index in place the result should always be empty;
// legacy rows imported before the index can still show up here.
func (r *tenantRepository) FindDuplicateCustomers(ctx context.Context) ([]DuplicateCustomer, error) {
	var dups []DuplicateCustomer
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Tenant{}).
		Select("stripe_customer_id, COUNT(*) AS tenant_count").
		Where("stripe_customer_id IS NOT NULL AND stripe_customer_id <> ''").
		Group("stripe_customer_id").
		Having("COUNT(*) > 1").
		Scan(&dups).Error
	return dups, err
}

func (r *tenantRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.db.WithContext(ctx).Where(query, args...).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}
