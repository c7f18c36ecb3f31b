package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TalentFox/app/models"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	TenantID   uint   `json:"tenant_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// SetUserContext stores uc for the rest of the request.
func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetTenant returns the tenant resolved for the request host, or nil.
func GetTenant(c *fiber.Ctx) *models.Tenant {
	if t, ok := c.Locals(KeyTenant).(*models.Tenant); ok {
		return t
	}
	return nil
}

// SetTenant stores the resolved tenant for the rest of the request.
func SetTenant(c *fiber.Ctx, tenant *models.Tenant) {
	c.Locals(KeyTenant, tenant)
}
