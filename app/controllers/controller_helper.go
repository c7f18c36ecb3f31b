package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validate = models.NewValidator()

// errInvalidID is returned for path ids that cannot exist.
var errInvalidID = errors.New("invalid id")

// jsonError writes the common {"error", "message"} body.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

func internalError(c *fiber.Ctx, message string, err error) error {
	logger.L().Error(message,
		zap.Error(err),
		zap.String("path", c.Path()),
		zap.Any("request_id", c.Locals("requestid")))
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}

// notFoundOr maps gorm.ErrRecordNotFound to 404 and everything else to 500.
func notFoundOr(c *fiber.Ctx, err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, errInvalidID) {
		return jsonError(c, fiber.StatusNotFound, "not_found", what+" not found")
	}
	return internalError(c, "failed to load "+what, err)
}

// bindJSON parses and validates the request body into dst. When it reports
// false the error response has been written and err is the write result.
func bindJSON(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, jsonError(c, fiber.StatusBadRequest, "invalid_request", "malformed request body")
	}
	if err := validate.Struct(dst); err != nil {
		return false, validationError(c, err)
	}
	return true, nil
}

func validationError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":   "validation_failed",
		"message": "request validation failed",
		"fields":  fields,
	})
}

// pagination reads ?page= and ?per_page= and returns offset and limit.
func pagination(c *fiber.Ctx) (int, int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.Query("per_page", strconv.Itoa(defaultPageSize)))
	if err != nil || perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return (page - 1) * perPage, perPage
}

// currentTenant returns the tenant resolved by the tenant middleware. Routes
// using it are mounted behind RequireTenant.
func currentTenant(c *fiber.Ctx) *models.Tenant {
	return usercontext.GetTenant(c)
}

// GetClientIP returns the client address, preferring proxy headers.
func GetClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.IP()
}
