package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/activation"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/session"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

// AuthController handles login, logout and account activation on a tenant host
type AuthController struct {
	users      repository.UserRepository
	activation *activation.Service
}

// NewAuthController creates a new auth controller
func NewAuthController(users repository.UserRepository, activationService *activation.Service) *AuthController {
	return &AuthController{users: users, activation: activationService}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Password string `json:"password" validate:"required,max=128"`
}

type activateRequest struct {
	Token    string `json:"token" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=128"`
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email,max=200"`
}

// HandleLogin checks the credentials against the users of the current tenant.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var in loginRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	tenant := currentTenant(c)

	user, err := ac.users.GetByEmail(c.UserContext(), tenant.ID, in.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(c, "failed to load user", err)
	}
	if user == nil || !user.CheckPassword(in.Password) {
		logger.L().Info("login failed",
			zap.String("tenant", tenant.Slug),
			zap.String("ip", GetClientIP(c)))
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	}
	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "account_inactive", "account is not active")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := ac.users.Update(c.UserContext(), user); err != nil {
		return internalError(c, "failed to update user", err)
	}
	if err := session.Login(c, user); err != nil {
		return internalError(c, "failed to create session", err)
	}

	return c.JSON(fiber.Map{"user": user})
}

// HandleLogout ends the session. It succeeds for anonymous callers too.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.Logout(c); err != nil {
		return internalError(c, "failed to destroy session", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleActivate redeems an activation token and sets the first password.
func (ac *AuthController) HandleActivate(c *fiber.Ctx) error {
	var in activateRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}

	user, err := ac.activation.Redeem(c.UserContext(), in.Token, in.Password)
	if err != nil {
		switch {
		case errors.Is(err, activation.ErrTokenInvalid):
			return jsonError(c, fiber.StatusBadRequest, "token_invalid", err.Error())
		case errors.Is(err, activation.ErrTokenExpired):
			return jsonError(c, fiber.StatusGone, "token_expired", err.Error())
		case errors.Is(err, activation.ErrTokenUsed):
			return jsonError(c, fiber.StatusConflict, "token_used", err.Error())
		case errors.Is(err, activation.ErrWeakPassword):
			return jsonError(c, fiber.StatusUnprocessableEntity, "weak_password", err.Error())
		case errors.Is(err, activation.ErrUserDisabled):
			return jsonError(c, fiber.StatusForbidden, "account_disabled", err.Error())
		default:
			return internalError(c, "failed to activate account", err)
		}
	}

	return c.JSON(fiber.Map{"user": user})
}

// HandleResendActivation always answers 202 so addresses cannot be probed.
func (ac *AuthController) HandleResendActivation(c *fiber.Ctx) error {
	var in resendRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	tenant := currentTenant(c)

	if err := ac.activation.Resend(c.UserContext(), tenant, in.Email); err != nil {
		logger.L().Warn("resend activation failed",
			zap.String("tenant", tenant.Slug),
			zap.Error(err))
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// HandleMe returns the logged-in user and the tenant.
func (ac *AuthController) HandleMe(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	tenant := currentTenant(c)

	user, err := ac.users.GetByID(c.UserContext(), tenant.ID, uc.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = session.Logout(c)
			return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
		}
		return internalError(c, "failed to load user", err)
	}

	return c.JSON(fiber.Map{
		"user":   user,
		"tenant": tenant,
	})
}

