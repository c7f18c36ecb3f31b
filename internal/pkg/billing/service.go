package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

const maxSlugAttempts = 50

// AdminProvisioner creates the first administrator of a freshly paid tenant.
// It reports whether a user was created.
type AdminProvisioner interface {
	ProvisionAdmin(ctx context.Context, tenant *models.Tenant, email, name string) (bool, error)
}

// Options configures the billing service.
type Options struct {
	BaseDomain string
	Prices     Prices
	// PortalReturnScheme is the scheme of the tenant URL the billing portal
	// returns to. Defaults to https.
	PortalReturnScheme string
	// OnTenantChanged is called with the slug of every tenant the service
	// wrote.
	OnTenantChanged func(ctx context.Context, slug string)
	Logger          *zap.Logger
}

// Service reconciles Stripe billing state with tenants.
type Service struct {
	repo     Repository
	tenants  repository.TenantRepository
	gateway  Gateway
	admins   AdminProvisioner
	opts     Options
	log      *zap.Logger
	validate *validator.Validate
}

// NewService creates a billing service. admins may be nil, in which case no
// users are provisioned.
func NewService(repo Repository, tenants repository.TenantRepository, gateway Gateway, admins AdminProvisioner, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	if opts.PortalReturnScheme == "" {
		opts.PortalReturnScheme = "https"
	}
	return &Service{
		repo:     repo,
		tenants:  tenants,
		gateway:  gateway,
		admins:   admins,
		opts:     opts,
		log:      log.Named("billing"),
		validate: models.NewValidator(),
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway, admins AdminProvisioner, opts Options) *Service {
	return NewService(NewRepository(db), repository.NewTenantRepository(db), gateway, admins, opts)
}

// Ledger exposes the idempotency ledger for operational tooling.
func (s *Service) Ledger() Repository {
	return s.repo
}

// CreateCheckout validates a signup, creates the Stripe customer and returns
// the checkout URL.
func (s *Service) CreateCheckout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Email = models.NormalizeEmail(in.Email)
	in.Plan = strings.ToLower(strings.TrimSpace(in.Plan))
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	price, ok := s.opts.Prices.PriceForPlan(in.Plan)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlan, in.Plan)
	}

	if in.Slug != "" {
		if !tenancy.IsValidSlug(in.Slug) {
			return nil, ErrSlugTaken
		}
		taken, err := s.tenants.SlugExists(ctx, in.Slug)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if taken {
			return nil, ErrSlugTaken
		}
	}

	customerID, err := s.gateway.CreateCustomer(ctx, in.Email, in.CompanyName, map[string]string{
		MetadataCompanyName: in.CompanyName,
		MetadataTenantSlug:  in.Slug,
	})
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID:  customerID,
		Email:       in.Email,
		CompanyName: in.CompanyName,
		Plan:        in.Plan,
		PriceID:     price,
		Slug:        in.Slug,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("customer_id", customerID),
		zap.String("plan", in.Plan))
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL, Slug: in.Slug}, nil
}

// BillingPortalURL returns a Stripe billing portal link for the tenant.
func (s *Service) BillingPortalURL(ctx context.Context, tenant *models.Tenant) (string, error) {
	if tenant.CustomerID() == "" {
		return "", ErrNoCustomer
	}
	returnURL := fmt.Sprintf("%s://%s/", s.opts.PortalReturnScheme, tenant.Domain)
	return s.gateway.CreateBillingPortalSession(ctx, tenant.CustomerID(), returnURL)
}

// Finalize reconciles a completed checkout session with exactly one tenant.
// Calling it again for the same session returns the same tenant.
func (s *Service) Finalize(ctx context.Context, sessionID, slugHint string) (*FinalizeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	slugHint = strings.ToLower(strings.TrimSpace(slugHint))
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	log := s.log.With(zap.String("session_id", sessionID))

	created, ledger, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.WebhookEvent{
		ID:      models.FinalizeEventID(sessionID),
		Type:    EventFinalize,
		Payload: fmt.Sprintf(`{"session_id":%q,"slug":%q}`, sessionID, slugHint),
	})
	if err != nil {
		return nil, fmt.Errorf("claim finalize ledger row: %w", err)
	}

	alreadyDone := !created && ledger.IsDone()

	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if alreadyDone {
			return nil, err
		}
		return nil, s.finishFinalize(ctx, ledger.ID, err)
	}

	if alreadyDone {
		res, err := s.Resolve(ctx, sess, slugHint)
		if err != nil {
			return nil, err
		}
		if res.Tenant == nil {
			return nil, ErrTenantNotFound
		}
		log.Info("finalize already processed", zap.String("tenant", res.Tenant.Slug))
		return &FinalizeResult{Tenant: res.Tenant, AlreadyProcessed: true}, nil
	}

	if !sess.IsCompleteAndPaid() {
		return nil, s.finishFinalize(ctx, ledger.ID, fmt.Errorf("%w: status=%s payment_status=%s",
			ErrSessionNotComplete, sess.Status, sess.PaymentStatus))
	}

	result, err := s.reconcile(ctx, sess, slugHint)
	if err != nil {
		log.Error("finalize failed", zap.Error(err))
		return nil, s.finishFinalize(ctx, ledger.ID, err)
	}
	if err := s.finishFinalize(ctx, ledger.ID, nil); err != nil {
		return nil, err
	}

	log.Info("checkout finalized",
		zap.String("tenant", result.Tenant.Slug),
		zap.Bool("created", result.Created),
		zap.Bool("admin_provisioned", result.AdminProvisioned))
	return result, nil
}

// finishFinalize stores the outcome on the ledger row and returns procErr.
func (s *Service) finishFinalize(ctx context.Context, ledgerID string, procErr error) error {
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(ctx, ledgerID, msg); err != nil {
		s.log.Error("mark ledger row failed", zap.String("id", ledgerID), zap.Error(err))
		if procErr == nil {
			return fmt.Errorf("mark ledger row: %w", err)
		}
	}
	return procErr
}

// Resolve finds the tenant a session maps to without writing anything.
// Tenant is nil when a new tenant would be created.
func (s *Service) Resolve(ctx context.Context, sess *CheckoutSession, slugHint string) (*Resolution, error) {
	tenant, matchedBy, err := s.findTenant(ctx, sess, slugHint)
	if err != nil {
		return nil, err
	}
	return &Resolution{Session: sess, Tenant: tenant, MatchedBy: matchedBy}, nil
}

// ResolveSession fetches a checkout session and resolves it.
func (s *Service) ResolveSession(ctx context.Context, sessionID, slugHint string) (*Resolution, error) {
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, sess, slugHint)
}

// reconcile is shared by Finalize and the checkout.session.completed webhook.
func (s *Service) reconcile(ctx context.Context, sess *CheckoutSession, slugHint string) (*FinalizeResult, error) {
	tenant, _, err := s.findTenant(ctx, sess, slugHint)
	if err != nil {
		return nil, err
	}

	result := &FinalizeResult{}
	if tenant == nil {
		tenant, result.Created, err = s.createTenant(ctx, sess, slugHint)
		if err != nil {
			return nil, err
		}
	}

	s.applySession(tenant, sess)
	if err := s.tenants.Update(ctx, tenant); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCustomerConflict
		}
		return nil, fmt.Errorf("update tenant billing: %w", err)
	}
	s.tenantChanged(ctx, tenant)
	result.Tenant = tenant

	if s.admins != nil && sess.CustomerEmail != "" {
		provisioned, err := s.admins.ProvisionAdmin(ctx, tenant, sess.CustomerEmail, sess.CustomerName)
		if err != nil {
			return nil, fmt.Errorf("provision admin: %w", err)
		}
		result.AdminProvisioned = provisioned
	}
	return result, nil
}

// findTenant applies the resolution order: slug, customer id, subscription id.
func (s *Service) findTenant(ctx context.Context, sess *CheckoutSession, slugHint string) (*models.Tenant, string, error) {
	customerID := sess.CustomerID
	slug := slugHint
	if slug == "" {
		slug = strings.ToLower(strings.TrimSpace(sess.Metadata[MetadataTenantSlug]))
	}

	if slug != "" {
		tenant, err := lookup(s.tenants.GetBySlug(ctx, slug))
		if err != nil {
			return nil, "", fmt.Errorf("lookup tenant by slug: %w", err)
		}
		// a slug held by another paying customer is not ours to take over
		if tenant != nil && (tenant.CustomerID() == "" || tenant.CustomerID() == customerID) {
			if err := s.checkCustomerOwner(ctx, tenant, customerID); err != nil {
				return nil, "", err
			}
			return tenant, "slug", nil
		}
		if tenant != nil {
			s.log.Warn("slug belongs to another customer, ignoring hint",
				zap.String("slug", slug), zap.String("customer_id", customerID))
		}
	}

	if customerID != "" {
		tenant, err := lookup(s.tenants.GetByStripeCustomerID(ctx, customerID))
		if err != nil {
			return nil, "", fmt.Errorf("lookup tenant by customer: %w", err)
		}
		if tenant != nil {
			return tenant, "customer", nil
		}
	}

	if sess.SubscriptionID != "" {
		tenant, err := lookup(s.tenants.GetByStripeSubscriptionID(ctx, sess.SubscriptionID))
		if err != nil {
			return nil, "", fmt.Errorf("lookup tenant by subscription: %w", err)
		}
		if tenant != nil {
			if err := s.checkCustomerOwner(ctx, tenant, customerID); err != nil {
				return nil, "", err
			}
			return tenant, "subscription", nil
		}
	}

	return nil, "", nil
}

// checkCustomerOwner fails when customerID is about to be attached to tenant
// while another tenant already owns it.
func (s *Service) checkCustomerOwner(ctx context.Context, tenant *models.Tenant, customerID string) error {
	if customerID == "" || tenant.CustomerID() == customerID {
		return nil
	}
	owner, err := lookup(s.tenants.GetByStripeCustomerID(ctx, customerID))
	if err != nil {
		return fmt.Errorf("lookup customer owner: %w", err)
	}
	if owner != nil && owner.ID != tenant.ID {
		s.log.Error("stripe customer owned by another tenant",
			zap.String("customer_id", customerID),
			zap.String("tenant", tenant.Slug),
			zap.String("owner", owner.Slug))
		return ErrCustomerConflict
	}
	return nil
}

func (s *Service) createTenant(ctx context.Context, sess *CheckoutSession, slugHint string) (*models.Tenant, bool, error) {
	name := strings.TrimSpace(sess.Metadata[MetadataCompanyName])
	if name == "" {
		name = strings.TrimSpace(sess.CustomerName)
	}
	if len(name) < 2 {
		name = companyFromEmail(sess.CustomerEmail)
	}

	preferred := slugHint
	if preferred == "" {
		preferred = sess.Metadata[MetadataTenantSlug]
	}
	if preferred == "" {
		preferred = name
	}
	slug, err := s.uniqueSlug(ctx, preferred)
	if err != nil {
		return nil, false, err
	}

	tenant := &models.Tenant{
		Slug:     slug,
		Name:     name,
		Domain:   tenancy.Domain(slug, s.opts.BaseDomain),
		Plan:     models.PLAN_STARTER,
		Status:   models.TENANT_STATUS_PENDING,
		Settings: models.DefaultTenantSettings(),
	}
	s.applySession(tenant, sess)
	if err := tenant.Validate(); err != nil {
		return nil, false, fmt.Errorf("new tenant: %w", err)
	}

	if err := s.tenants.Create(ctx, tenant); err != nil {
		if !isUniqueViolation(err) || sess.CustomerID == "" {
			return nil, false, fmt.Errorf("create tenant: %w", err)
		}
		// a concurrent finalize for the same customer won the insert
		existing, lookupErr := lookup(s.tenants.GetByStripeCustomerID(ctx, sess.CustomerID))
		if lookupErr != nil {
			return nil, false, fmt.Errorf("re-read tenant after conflict: %w", lookupErr)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("create tenant: %w", err)
		}
		s.log.Info("tenant created concurrently, reusing",
			zap.String("customer_id", sess.CustomerID), zap.String("tenant", existing.Slug))
		return existing, false, nil
	}

	s.log.Info("tenant created", zap.String("tenant", tenant.Slug), zap.Uint("tenant_id", tenant.ID))
	return tenant, true, nil
}

func (s *Service) uniqueSlug(ctx context.Context, preferred string) (string, error) {
	base := tenancy.Slugify(preferred)
	if len(base) < 2 {
		base = "company"
	}
	if len(base) > 55 {
		base = strings.TrimRight(base[:55], "-")
	}
	if tenancy.IsReserved(base) {
		base += "-team"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := s.tenants.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("%w: no free slug for %q", ErrSlugTaken, base)
}

// applySession copies billing state of a paid session onto tenant.
func (s *Service) applySession(tenant *models.Tenant, sess *CheckoutSession) {
	if sess.CustomerID != "" {
		tenant.SetCustomerID(sess.CustomerID)
	}
	if sess.SubscriptionID != "" {
		tenant.SetSubscriptionID(sess.SubscriptionID)
	}

	if plan, ok := s.opts.Prices.PlanForPrice(priceOf(sess.Subscription)); ok {
		tenant.Plan = plan
	} else if plan := sess.Metadata[MetadataPlan]; plan != "" {
		tenant.Plan = normalizePlan(plan)
	}

	if sess.Subscription != nil {
		s.applySubscription(tenant, sess.Subscription)
	} else if sess.IsCompleteAndPaid() {
		tenant.Status = models.TENANT_STATUS_ACTIVE
	}
}

// applySubscription copies subscription state onto tenant.
func (s *Service) applySubscription(tenant *models.Tenant, sub *Subscription) {
	if sub.ID != "" {
		tenant.SetSubscriptionID(sub.ID)
	}
	if status := TenantStatusFor(sub.Status); status != "" {
		tenant.Status = status
	}
	if plan, ok := s.opts.Prices.PlanForPrice(sub.PriceID); ok {
		tenant.Plan = plan
	}
	if sub.CurrentPeriodEnd != nil {
		tenant.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	tenant.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
}

func (s *Service) tenantChanged(ctx context.Context, tenant *models.Tenant) {
	if s.opts.OnTenantChanged != nil {
		s.opts.OnTenantChanged(ctx, tenant.Slug)
	}
}

func priceOf(sub *Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.PriceID
}

func companyFromEmail(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "Company"
	}
	name, _, _ := strings.Cut(domain, ".")
	if len(name) < 2 {
		return "Company"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// lookup turns a not-found error into a nil tenant.
func lookup(tenant *models.Tenant, err error) (*models.Tenant, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
