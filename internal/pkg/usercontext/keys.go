package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyTenant      = "TENANT"
	KeyUserID      = "user_id"
	KeyTenantID    = "tenant_id"
	KeyEmail       = "email"
	KeyRole        = "role"
)
