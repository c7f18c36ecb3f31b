package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/middleware"
)

type ApiRouter struct {
	ctrl Controllers
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT", 120),
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "too many requests",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Signup happens on the apex domain, before a tenant exists
	billing := v1.Group("/billing")
	billing.Post("/checkout", h.ctrl.Billing.HandleCheckout)
	billing.Post("/finalize", h.ctrl.Billing.HandleFinalize)
	billing.Post("/portal", middleware.RequireTenant, middleware.RequireAdmin, h.ctrl.Billing.HandleBillingPortal)

	auth := v1.Group("/auth", middleware.RequireTenant)
	auth.Post("/login", middleware.RequireServingTenant, h.ctrl.Auth.HandleLogin)
	auth.Post("/logout", h.ctrl.Auth.HandleLogout)
	auth.Post("/activate", h.ctrl.Auth.HandleActivate)
	auth.Post("/activation/resend", h.ctrl.Auth.HandleResendActivation)
	auth.Get("/me", middleware.RequireAuth, h.ctrl.Auth.HandleMe)

	tenant := v1.Group("/tenant", middleware.RequireTenant, middleware.RequireAuth)
	tenant.Get("/", h.ctrl.Tenant.HandleGet)
	tenant.Put("/", middleware.RequireAdmin, middleware.RequireServingTenant, h.ctrl.Tenant.HandleUpdate)
	tenant.Put("/logo", middleware.RequireAdmin, middleware.RequireServingTenant, h.ctrl.Tenant.HandleUploadLogo)

	users := v1.Group("/users", middleware.RequireTenant, middleware.RequireAdmin, middleware.RequireServingTenant)
	users.Get("/", h.ctrl.User.HandleList)
	users.Post("/", h.ctrl.User.HandleCreate)
	users.Get("/:id", h.ctrl.User.HandleGet)
	users.Put("/:id", h.ctrl.User.HandleUpdate)
	users.Delete("/:id", h.ctrl.User.HandleDelete)

	jobs := v1.Group("/jobs", middleware.RequireTenant, middleware.RequireAuth, middleware.RequireServingTenant)
	jobs.Get("/", h.ctrl.Job.HandleList)
	jobs.Post("/", h.ctrl.Job.HandleCreate)
	jobs.Get("/:uuid", h.ctrl.Job.HandleGet)
	jobs.Put("/:uuid", h.ctrl.Job.HandleUpdate)
	jobs.Delete("/:uuid", h.ctrl.Job.HandleDelete)
	jobs.Post("/:uuid/publish", h.ctrl.Job.HandlePublish)
	jobs.Post("/:uuid/close", h.ctrl.Job.HandleClose)
}

func NewApiRouter(ctrl Controllers) *ApiRouter {
	return &ApiRouter{ctrl: ctrl}
}
