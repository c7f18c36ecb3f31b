package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PLAN_STARTER    = "starter"
	PLAN_GROWTH     = "growth"
	PLAN_ENTERPRISE = "enterprise"
)

const (
	TENANT_STATUS_PENDING   = "pending"
	TENANT_STATUS_ACTIVE    = "active"
	TENANT_STATUS_PAST_DUE  = "past_due"
	TENANT_STATUS_SUSPENDED = "suspended"
	TENANT_STATUS_CANCELED  = "canceled"
)

// Tenant is a customer company with its own career portal subdomain.
// StripeCustomerID and StripeSubscriptionID are nullable but unique: one
// Stripe customer belongs to at most one tenant.
type Tenant struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	Slug                 string            `gorm:"type:varchar(63);uniqueIndex;not null" json:"slug" validate:"required,min=2,max=63"`
	Name                 string            `gorm:"type:varchar(200);not null" json:"name" validate:"required,min=2,max=200,singleline"`
	Domain               string            `gorm:"type:varchar(255);uniqueIndex;not null" json:"domain" validate:"required,max=255"`
	Plan                 string            `gorm:"type:varchar(32);not null;default:'starter'" json:"plan" validate:"oneof=starter growth enterprise"`
	Status               string            `gorm:"type:varchar(32);not null;default:'pending';index" json:"status" validate:"oneof=pending active past_due suspended canceled"`
	StripeCustomerID     *string           `gorm:"type:varchar(191);uniqueIndex" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string           `gorm:"type:varchar(191);uniqueIndex" json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time        `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool              `gorm:"default:false" json:"cancel_at_period_end"`
	Settings             datatypes.JSONMap `json:"settings"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (t *Tenant) Validate() error {
	v := NewValidator()

	return v.Struct(t)
}

// DefaultTenantSettings is the settings blob every new tenant starts with.
func DefaultTenantSettings() datatypes.JSONMap {
	return datatypes.JSONMap{
		"branding": map[string]interface{}{
			"primary_color": "#1f6feb",
			"logo_url":      "",
		},
		"careers_page": map[string]interface{}{
			"enabled":  true,
			"headline": "Join our team",
		},
	}
}

// IsServing reports whether the portal and admin API are available.
// past_due keeps serving while Stripe retries the payment.
func (t *Tenant) IsServing() bool {
	return t.Status == TENANT_STATUS_ACTIVE || t.Status == TENANT_STATUS_PAST_DUE
}

// CustomerID returns the Stripe customer id or "".
func (t *Tenant) CustomerID() string {
	if t.StripeCustomerID == nil {
		return ""
	}
	return *t.StripeCustomerID
}

// SubscriptionID returns the Stripe subscription id or "".
func (t *Tenant) SubscriptionID() string {
	if t.StripeSubscriptionID == nil {
		return ""
	}
	return *t.StripeSubscriptionID
}

// SetCustomerID stores id, mapping "" to NULL so the unique index ignores it.
func (t *Tenant) SetCustomerID(id string) {
	t.StripeCustomerID = nullableString(id)
}

// SetSubscriptionID stores id, mapping "" to NULL.
func (t *Tenant) SetSubscriptionID(id string) {
	t.StripeSubscriptionID = nullableString(id)
}

// SettingsSection returns a nested settings object, creating it when missing.
func (t *Tenant) SettingsSection(name string) map[string]interface{} {
	if t.Settings == nil {
		t.Settings = DefaultTenantSettings()
	}
	if section, ok := t.Settings[name].(map[string]interface{}); ok {
		return section
	}
	section := map[string]interface{}{}
	t.Settings[name] = section
	return section
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
