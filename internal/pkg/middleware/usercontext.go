package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TalentFox/internal/pkg/session"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the user context for every request. A
// session issued for one tenant is anonymous on every other tenant.
func UserContextMiddleware(c *fiber.Ctx) error {
	uc, ok := session.Current(c)
	if !ok {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	if tenant := usercontext.GetTenant(c); tenant == nil || tenant.ID != uc.TenantID {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	usercontext.SetUserContext(c, uc)
	return c.Next()
}
