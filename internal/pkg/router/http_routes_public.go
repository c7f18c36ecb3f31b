package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TalentFox/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", h.ctrl.Health.HandleHealth)

	// Stripe webhooks, signature-verified in the controller
	app.Post("/webhooks/stripe", h.ctrl.Billing.HandleStripeWebhook)

	// Public career portal on the tenant host
	portal := app.Group("/portal", middleware.RequireServingTenant)
	portal.Get("/", h.ctrl.Portal.HandleInfo)
	portal.Get("/jobs", h.ctrl.Portal.HandleJobs)
	portal.Get("/jobs/:uuid", h.ctrl.Portal.HandleJob)
}
