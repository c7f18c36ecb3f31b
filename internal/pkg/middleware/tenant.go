package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

// TenantSlugHeader lets API clients on the apex domain address a tenant.
const TenantSlugHeader = "X-Tenant-Slug"

// TenantMiddleware resolves the tenant of the request from X-Tenant-Slug or
// the Host subdomain. Requests without a tenant pass through untouched.
func TenantMiddleware(resolver *tenancy.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := strings.ToLower(strings.TrimSpace(c.Get(TenantSlugHeader)))
		if slug == "" {
			slug = resolver.SlugFromHost(c.Hostname())
		}
		if slug == "" {
			return c.Next()
		}

		tenant, err := resolver.Resolve(c.UserContext(), slug)
		if err != nil {
			if errors.Is(err, tenancy.ErrTenantNotFound) {
				return c.Next()
			}
			logger.L().Error("tenant resolution failed", zap.String("slug", slug), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "tenant lookup failed",
			})
		}
		usercontext.SetTenant(c, tenant)
		return c.Next()
	}
}

// RequireTenant rejects requests without a resolved tenant.
func RequireTenant(c *fiber.Ctx) error {
	if usercontext.GetTenant(c) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "tenant_not_found",
			"message": "unknown tenant",
		})
	}
	return c.Next()
}

// RequireServingTenant rejects tenants whose subscription does not allow
// serving the portal or changing data.
func RequireServingTenant(c *fiber.Ctx) error {
	tenant := usercontext.GetTenant(c)
	if tenant == nil {
		return RequireTenant(c)
	}
	if !entitlements.CanServe(tenant.Status) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "tenant_inactive",
			"message": "subscription is " + tenant.Status,
		})
	}
	return c.Next()
}
