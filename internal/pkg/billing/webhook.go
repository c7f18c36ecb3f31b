package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/app/models"
)

// HandleWebhook verifies a Stripe event and applies it at most once. Events
// whose earlier processing failed are applied again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrInvalidPayload) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if event.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrInvalidPayload)
	}

	result := &WebhookResult{EventID: event.ID, Type: event.Type}
	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.WebhookEvent{
		ID:      event.ID,
		Type:    event.Type,
		Payload: string(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.IsDone() {
		log.Debug("duplicate webhook event")
		result.Duplicate = true
		return result, nil
	}
	if !created {
		log.Info("reprocessing webhook event", zap.String("previous_error", stored.ProcessingError))
	}

	ignored, procErr := s.dispatch(ctx, event)
	result.Ignored = ignored

	msg := ""
	if procErr != nil {
		msg = procErr.Error()
		log.Error("webhook processing failed", zap.Error(procErr))
	}
	if err := s.repo.MarkWebhookProcessed(ctx, event.ID, msg); err != nil {
		log.Error("mark webhook processed failed", zap.Error(err))
		if procErr == nil {
			return nil, fmt.Errorf("mark webhook processed: %w", err)
		}
	}
	if procErr != nil {
		return nil, procErr
	}
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event *Event) (bool, error) {
	switch event.Type {
	case EventCheckoutSessionCompleted:
		return false, s.onCheckoutCompleted(ctx, event)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return false, s.onSubscriptionChanged(ctx, event)
	case EventSubscriptionDeleted:
		return false, s.onSubscriptionDeleted(ctx, event)
	case EventInvoicePaid:
		return false, s.onInvoice(ctx, event, models.TENANT_STATUS_ACTIVE)
	case EventInvoicePaymentFailed:
		return false, s.onInvoice(ctx, event, models.TENANT_STATUS_PAST_DUE)
	default:
		s.log.Debug("ignoring webhook event", zap.String("event_type", event.Type))
		return true, nil
	}
}

func (s *Service) onCheckoutCompleted(ctx context.Context, event *Event) error {
	sess := event.Session
	if sess == nil {
		return fmt.Errorf("%w: %s without session", ErrInvalidPayload, event.Type)
	}

	// the event object never has the subscription expanded
	if sess.Subscription == nil && sess.SubscriptionID != "" {
		full, err := s.gateway.GetCheckoutSession(ctx, sess.ID)
		if err != nil {
			s.log.Warn("could not expand checkout session", zap.String("session_id", sess.ID), zap.Error(err))
		} else {
			sess = full
		}
	}

	if !sess.IsCompleteAndPaid() {
		s.log.Info("checkout completed without payment, waiting for async payment",
			zap.String("session_id", sess.ID), zap.String("payment_status", sess.PaymentStatus))
		return nil
	}

	result, err := s.reconcile(ctx, sess, "")
	if err != nil {
		return err
	}
	s.log.Info("checkout reconciled from webhook",
		zap.String("session_id", sess.ID),
		zap.String("tenant", result.Tenant.Slug),
		zap.Bool("created", result.Created))
	return nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, event *Event) error {
	sub := event.Subscription
	if sub == nil {
		return fmt.Errorf("%w: %s without subscription", ErrInvalidPayload, event.Type)
	}
	tenant, err := s.tenantForBilling(ctx, sub.ID, sub.CustomerID)
	if err != nil || tenant == nil {
		return err
	}

	s.applySubscription(tenant, sub)
	return s.saveTenant(ctx, tenant)
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, event *Event) error {
	sub := event.Subscription
	if sub == nil {
		return fmt.Errorf("%w: %s without subscription", ErrInvalidPayload, event.Type)
	}
	tenant, err := s.tenantForBilling(ctx, sub.ID, sub.CustomerID)
	if err != nil || tenant == nil {
		return err
	}

	// an older subscription ending must not cancel the current one
	if tenant.SubscriptionID() != "" && tenant.SubscriptionID() != sub.ID {
		s.log.Info("ignoring deletion of superseded subscription",
			zap.String("tenant", tenant.Slug), zap.String("subscription_id", sub.ID))
		return nil
	}

	tenant.Status = models.TENANT_STATUS_CANCELED
	tenant.SetSubscriptionID("")
	tenant.CancelAtPeriodEnd = false
	return s.saveTenant(ctx, tenant)
}

func (s *Service) onInvoice(ctx context.Context, event *Event, status string) error {
	inv := event.Invoice
	if inv == nil {
		return fmt.Errorf("%w: %s without invoice", ErrInvalidPayload, event.Type)
	}
	if inv.SubscriptionID == "" {
		s.log.Debug("invoice without subscription, skipping", zap.String("invoice_id", inv.ID))
		return nil
	}
	tenant, err := s.tenantForBilling(ctx, inv.SubscriptionID, inv.CustomerID)
	if err != nil || tenant == nil {
		return err
	}

	tenant.Status = status
	// the period end only moves forward here; subscription events own it
	if status == models.TENANT_STATUS_ACTIVE && inv.SubscriptionPeriodEnd != nil &&
		(tenant.CurrentPeriodEnd == nil || inv.SubscriptionPeriodEnd.After(*tenant.CurrentPeriodEnd)) {
		tenant.CurrentPeriodEnd = inv.SubscriptionPeriodEnd
	}
	return s.saveTenant(ctx, tenant)
}

// tenantForBilling finds the tenant by subscription id, then customer id.
// Unknown tenants are logged and yield nil without error so Stripe stops
// retrying.
func (s *Service) tenantForBilling(ctx context.Context, subscriptionID, customerID string) (*models.Tenant, error) {
	tenant, err := lookup(s.tenants.GetByStripeSubscriptionID(ctx, subscriptionID))
	if err != nil {
		return nil, fmt.Errorf("lookup tenant by subscription: %w", err)
	}
	if tenant != nil {
		return tenant, nil
	}

	tenant, err = lookup(s.tenants.GetByStripeCustomerID(ctx, customerID))
	if err != nil {
		return nil, fmt.Errorf("lookup tenant by customer: %w", err)
	}
	if tenant == nil {
		s.log.Warn("no tenant for billing event",
			zap.String("subscription_id", subscriptionID),
			zap.String("customer_id", customerID))
	}
	return tenant, nil
}

func (s *Service) saveTenant(ctx context.Context, tenant *models.Tenant) error {
	if err := s.tenants.Update(ctx, tenant); err != nil {
		if isUniqueViolation(err) {
			return ErrCustomerConflict
		}
		return fmt.Errorf("update tenant: %w", err)
	}
	s.tenantChanged(ctx, tenant)
	s.log.Info("tenant billing updated",
		zap.String("tenant", tenant.Slug),
		zap.String("status", tenant.Status),
		zap.String("plan", tenant.Plan))
	return nil
}
