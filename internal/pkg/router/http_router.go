package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TalentFox/internal/pkg/middleware"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

type HttpRouter struct {
	resolver *tenancy.Resolver
	ctrl     Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Tenant first; the user context checks the session against it
	app.Use(middleware.TenantMiddleware(h.resolver))
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func NewHttpRouter(resolver *tenancy.Resolver, ctrl Controllers) *HttpRouter {
	return &HttpRouter{resolver: resolver, ctrl: ctrl}
}
