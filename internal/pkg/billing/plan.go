package billing

import (
	"strings"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/internal/pkg/entitlements"
)

// Prices maps TalentFox plans to Stripe price ids.
type Prices struct {
	Starter    string
	Growth     string
	Enterprise string
}

// PriceForPlan returns the Stripe price id of plan.
func (p Prices) PriceForPlan(plan string) (string, bool) {
	var price string
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case models.PLAN_STARTER:
		price = p.Starter
	case models.PLAN_GROWTH:
		price = p.Growth
	case models.PLAN_ENTERPRISE:
		price = p.Enterprise
	}
	return price, price != ""
}

// PlanForPrice returns the plan sold under a Stripe price id.
func (p Prices) PlanForPrice(priceID string) (string, bool) {
	if priceID == "" {
		return "", false
	}
	switch priceID {
	case p.Starter:
		return models.PLAN_STARTER, true
	case p.Growth:
		return models.PLAN_GROWTH, true
	case p.Enterprise:
		return models.PLAN_ENTERPRISE, true
	default:
		return "", false
	}
}

func normalizePlan(plan string) string {
	return string(entitlements.NormalizePlan(plan))
}

// TenantStatusFor maps a Stripe subscription status to a tenant status.
// Unknown statuses map to "" and leave the tenant untouched.
func TenantStatusFor(subscriptionStatus string) string {
	switch strings.ToLower(strings.TrimSpace(subscriptionStatus)) {
	case "active", "trialing":
		return models.TENANT_STATUS_ACTIVE
	case "past_due", "unpaid":
		return models.TENANT_STATUS_PAST_DUE
	case "canceled", "incomplete_expired":
		return models.TENANT_STATUS_CANCELED
	case "paused", "incomplete":
		return models.TENANT_STATUS_SUSPENDED
	default:
		return ""
	}
}
