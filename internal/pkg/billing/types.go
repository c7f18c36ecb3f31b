package billing

import (
	"errors"
	"time"

	"github.com/ManuelReschke/TalentFox/app/models"
)

var (
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrSessionNotComplete = errors.New("checkout session is not complete and paid")
	ErrCustomerConflict   = errors.New("stripe customer already belongs to another tenant")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrInvalidPayload     = errors.New("invalid webhook payload")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrSlugTaken          = errors.New("slug is not available")
	ErrNoCustomer         = errors.New("tenant has no stripe customer")
	ErrTenantNotFound     = errors.New("no tenant found for checkout session")
)

// Stripe event types handled by HandleWebhook.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"

	// EventFinalize is the ledger type of finalize calls.
	EventFinalize = "talentfox.finalize"
)

// Checkout session metadata keys.
const (
	MetadataTenantSlug  = "tenant_slug"
	MetadataCompanyName = "company_name"
	MetadataPlan        = "plan"
)

// CheckoutSession is the part of a Stripe checkout session provisioning needs.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	CustomerID    string
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]string
	Subscription  *Subscription
	// SubscriptionID is set even when the subscription was not expanded.
	SubscriptionID string
}

// IsCompleteAndPaid reports whether the session may provision a tenant.
func (s *CheckoutSession) IsCompleteAndPaid() bool {
	return s.Status == "complete" && (s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required")
}

// Subscription is the part of a Stripe subscription synced onto a tenant.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	Metadata          map[string]string
}

// Invoice is the part of a Stripe invoice synced onto a tenant.
type Invoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	// SubscriptionPeriodEnd is the end of the subscription period the invoice
	// pays for, taken from its subscription lines. The invoice's own
	// period_end is the end of the previous usage period and is not used.
	SubscriptionPeriodEnd *time.Time
}

// Event is a verified Stripe event with its object decoded.
type Event struct {
	ID           string
	Type         string
	Session      *CheckoutSession
	Subscription *Subscription
	Invoice      *Invoice
}

// CheckoutSessionRequest describes a subscription checkout for a signup.
type CheckoutSessionRequest struct {
	CustomerID  string
	Email       string
	CompanyName string
	Plan        string
	PriceID     string
	Slug        string
}

// CheckoutInput is a signup submitted from the marketing site.
type CheckoutInput struct {
	CompanyName string `json:"company_name" validate:"required,min=2,max=200,singleline"`
	Email       string `json:"email" validate:"required,email,max=200"`
	Plan        string `json:"plan" validate:"required,oneof=starter growth enterprise"`
	Slug        string `json:"slug" validate:"omitempty,min=2,max=63"`
}

// CheckoutResult points the browser to Stripe Checkout.
type CheckoutResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Slug      string `json:"slug,omitempty"`
}

// FinalizeResult reports how a checkout session was reconciled.
type FinalizeResult struct {
	Tenant           *models.Tenant
	Created          bool
	AlreadyProcessed bool
	AdminProvisioned bool
}

// WebhookResult reports how an event was handled.
type WebhookResult struct {
	EventID   string
	Type      string
	Duplicate bool
	Ignored   bool
}

// Resolution is the dry-run answer to "which tenant would this session map to".
type Resolution struct {
	Session   *CheckoutSession
	Tenant    *models.Tenant
	MatchedBy string
}
