package controllers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/internal/pkg/billing"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

// maxWebhookBody is the largest Stripe payload accepted.
const maxWebhookBody = 64 * 1024

// BillingController handles signup checkout, finalize and Stripe webhooks
type BillingController struct {
	billing *billing.Service
}

// NewBillingController creates a new billing controller
func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{billing: svc}
}

type finalizeRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
	Slug      string `json:"slug" validate:"omitempty,max=63"`
}

// HandleCheckout starts a Stripe checkout for a new company.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	var in billing.CheckoutInput
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "malformed request body")
	}

	res, err := bc.billing.CreateCheckout(c.UserContext(), in)
	if err != nil {
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			return validationError(c, err)
		case errors.Is(err, billing.ErrSlugTaken):
			return jsonError(c, fiber.StatusConflict, "slug_taken", "this subdomain is not available")
		case errors.Is(err, billing.ErrUnknownPlan):
			return jsonError(c, fiber.StatusBadRequest, "unknown_plan", "plan is not available")
		default:
			return internalError(c, "failed to create checkout session", err)
		}
	}
	return c.JSON(res)
}

// HandleFinalize reconciles a completed checkout session with its tenant.
// Every failure is answered with 400.
func (bc *BillingController) HandleFinalize(c *fiber.Ctx) error {
	var in finalizeRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}

	res, err := bc.billing.Finalize(c.UserContext(), in.SessionID, in.Slug)
	if err != nil {
		logger.L().Warn("finalize rejected",
			zap.String("session_id", in.SessionID),
			zap.String("slug", in.Slug),
			zap.Error(err))
		code := "finalize_failed"
		switch {
		case errors.Is(err, billing.ErrSessionNotFound):
			code = "session_not_found"
		case errors.Is(err, billing.ErrSessionNotComplete):
			code = "session_not_complete"
		case errors.Is(err, billing.ErrCustomerConflict):
			code = "customer_conflict"
		case errors.Is(err, billing.ErrTenantNotFound):
			code = "tenant_not_found"
		}
		return jsonError(c, fiber.StatusBadRequest, code, err.Error())
	}

	return c.JSON(fiber.Map{
		"tenant":            res.Tenant,
		"created":           res.Created,
		"already_processed": res.AlreadyProcessed,
		"admin_provisioned": res.AdminProvisioned,
	})
}

// HandleStripeWebhook applies a Stripe event. Processing errors answer 500
// so Stripe retries the delivery.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) > maxWebhookBody {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large")
	}

	res, err := bc.billing.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		case errors.Is(err, billing.ErrInvalidPayload):
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", err.Error())
		default:
			return internalError(c, "webhook processing failed", err)
		}
	}

	return c.JSON(fiber.Map{
		"received":  true,
		"duplicate": res.Duplicate,
		"ignored":   res.Ignored,
	})
}

// HandleBillingPortal returns a Stripe billing portal link for the tenant.
func (bc *BillingController) HandleBillingPortal(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	url, err := bc.billing.BillingPortalURL(c.UserContext(), tenant)
	if err != nil {
		if errors.Is(err, billing.ErrNoCustomer) {
			return jsonError(c, fiber.StatusConflict, "no_customer", "tenant has no billing account")
		}
		return internalError(c, "failed to create billing portal session", err)
	}
	return c.JSON(fiber.Map{"url": url})
}
