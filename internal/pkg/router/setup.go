package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TalentFox/app/controllers"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers bundles the handlers the routes are bound to.
type Controllers struct {
	Health  *controllers.HealthController
	Billing *controllers.BillingController
	Auth    *controllers.AuthController
	Tenant  *controllers.TenantController
	User    *controllers.UserController
	Job     *controllers.JobController
	Portal  *controllers.PortalController
}

// InstallRouter registers every route. The HTTP router goes first because it
// installs the tenant and user context middlewares the API routes rely on.
func InstallRouter(app *fiber.App, resolver *tenancy.Resolver, ctrl Controllers) {
	setup(app, NewHttpRouter(resolver, ctrl), NewApiRouter(ctrl))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
