package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
)

// Gateway is the subset of Stripe TalentFox talks to.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	// GetCheckoutSession returns the session with its subscription expanded,
	// or ErrSessionNotFound.
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// ConstructEvent verifies the Stripe-Signature header and decodes the event.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}

// StripeConfig holds the Stripe credentials and checkout URLs.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Prices        Prices
	// SuccessURL must contain {CHECKOUT_SESSION_ID}.
	SuccessURL string
	CancelURL  string
}

// StripeConfigFromEnv reads the Stripe settings from the environment.
func StripeConfigFromEnv() StripeConfig {
	baseURL := strings.TrimRight(env.BaseURL(), "/")
	return StripeConfig{
		SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		Prices: Prices{
			Starter:    env.GetEnv("STRIPE_PRICE_STARTER", ""),
			Growth:     env.GetEnv("STRIPE_PRICE_GROWTH", ""),
			Enterprise: env.GetEnv("STRIPE_PRICE_ENTERPRISE", ""),
		},
		SuccessURL: env.GetEnv("STRIPE_SUCCESS_URL", baseURL+"/signup/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  env.GetEnv("STRIPE_CANCEL_URL", baseURL+"/signup"),
	}
}

// Validate checks that the gateway can talk to Stripe.
func (c StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	return nil
}

// StripeGateway implements Gateway on stripe-go.
type StripeGateway struct {
	cfg StripeConfig
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{cfg: cfg}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(g.cfg.SuccessURL),
		CancelURL:           stripe.String(g.cfg.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataTenantSlug: req.Slug,
				MetadataPlan:       req.Plan,
			},
		},
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata(MetadataCompanyName, req.CompanyName)
	params.AddMetadata(MetadataPlan, req.Plan)
	if req.Slug != "" {
		params.AddMetadata(MetadataTenantSlug, req.Slug)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return convertCheckoutSession(sess), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")

	sess, err := checkoutsession.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}
	return convertCheckoutSession(sess), nil
}

func (g *StripeGateway) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*Event, error) {
	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch {
	case strings.HasPrefix(out.Type, "checkout.session."):
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrInvalidPayload, err)
		}
		out.Session = convertCheckoutSession(&sess)
	case strings.HasPrefix(out.Type, "customer.subscription."):
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", ErrInvalidPayload, err)
		}
		out.Subscription = convertSubscription(&sub)
	case strings.HasPrefix(out.Type, "invoice."):
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice: %v", ErrInvalidPayload, err)
		}
		out.Invoice = convertInvoice(&inv)
	}
	return out, nil
}

func convertCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		CustomerEmail: sess.CustomerEmail,
		Metadata:      sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.CustomerDetails != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = sess.CustomerDetails.Email
		}
		out.CustomerName = sess.CustomerDetails.Name
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
		// an unexpanded reference only carries the id
		if sess.Subscription.Status != "" {
			out.Subscription = convertSubscription(sess.Subscription)
		}
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

func convertSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	out.CurrentPeriodEnd = unixTime(sub.CurrentPeriodEnd)
	return out
}

func convertInvoice(inv *stripe.Invoice) *Invoice {
	out := &Invoice{ID: inv.ID}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	out.SubscriptionPeriodEnd = unixTime(subscriptionLinePeriodEnd(inv))
	return out
}

// subscriptionLinePeriodEnd returns the latest period end of the invoice's
// subscription lines, or 0.
func subscriptionLinePeriodEnd(inv *stripe.Invoice) int64 {
	if inv.Lines == nil {
		return 0
	}
	var end int64
	for _, line := range inv.Lines.Data {
		if line == nil || line.Period == nil {
			continue
		}
		if line.Type != stripe.InvoiceLineItemTypeSubscription && line.Subscription == nil {
			continue
		}
		if line.Period.End > end {
			end = line.Period.End
		}
	}
	return end
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
