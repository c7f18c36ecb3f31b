package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/activation"
	"github.com/ManuelReschke/TalentFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/usercontext"
)

// UserController lets tenant admins manage the users of their company
type UserController struct {
	users      repository.UserRepository
	activation *activation.Service
}

// NewUserController creates a new user controller
func NewUserController(users repository.UserRepository, activationService *activation.Service) *UserController {
	return &UserController{users: users, activation: activationService}
}

type createUserRequest struct {
	Email string `json:"email" validate:"required,email,max=200"`
	Name  string `json:"name" validate:"max=150,singleline"`
	Role  string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

type updateUserRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=150,singleline"`
	Role   *string `json:"role" validate:"omitempty,oneof=ADMIN USER"`
	Status *string `json:"status" validate:"omitempty,oneof=active disabled"`
}

// HandleList lists the users of the tenant.
func (uc *UserController) HandleList(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	offset, limit := pagination(c)

	users, err := uc.users.ListByTenant(c.UserContext(), tenant.ID, offset, limit)
	if err != nil {
		return internalError(c, "failed to list users", err)
	}
	total, err := uc.users.CountByTenant(c.UserContext(), tenant.ID)
	if err != nil {
		return internalError(c, "failed to count users", err)
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// HandleCreate invites a user, within the plan's user limit.
func (uc *UserController) HandleCreate(c *fiber.Ctx) error {
	var in createUserRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	tenant := currentTenant(c)

	count, err := uc.users.CountByTenant(c.UserContext(), tenant.ID)
	if err != nil {
		return internalError(c, "failed to count users", err)
	}
	if !entitlements.CanAddUser(tenant.Plan, count) {
		return jsonError(c, fiber.StatusPaymentRequired, "plan_limit_reached", entitlements.ErrPlanLimitReached.Error())
	}

	if _, err := uc.users.GetByEmail(c.UserContext(), tenant.ID, in.Email); err == nil {
		return jsonError(c, fiber.StatusConflict, "email_taken", "a user with this email already exists")
	}

	user, err := uc.activation.Invite(c.UserContext(), tenant, in.Email, in.Name, in.Role)
	if err != nil {
		return internalError(c, "failed to invite user", err)
	}
	logger.L().Info("user invited",
		zap.String("tenant", tenant.Slug),
		zap.Uint("user_id", user.ID),
		zap.Uint("by", usercontext.GetUserID(c)))
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleGet returns one user of the tenant.
func (uc *UserController) HandleGet(c *fiber.Ctx) error {
	user, err := uc.load(c)
	if err != nil {
		return notFoundOr(c, err, "user")
	}
	return c.JSON(user)
}

// HandleUpdate changes name, role or status. The last active admin cannot be
// demoted or disabled.
func (uc *UserController) HandleUpdate(c *fiber.Ctx) error {
	var in updateUserRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	user, err := uc.load(c)
	if err != nil {
		return notFoundOr(c, err, "user")
	}

	losesAdmin := user.IsAdmin() &&
		((in.Role != nil && *in.Role != models.ROLE_ADMIN) ||
			(in.Status != nil && *in.Status != models.STATUS_ACTIVE))
	if losesAdmin {
		if resp, err := uc.guardLastAdmin(c); resp {
			return err
		}
	}
	if in.Status != nil && *in.Status == models.STATUS_ACTIVE && user.Status == models.STATUS_INACTIVE {
		return jsonError(c, fiber.StatusUnprocessableEntity, "not_activated", "user has not activated the account yet")
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.Status != nil {
		user.Status = *in.Status
	}
	if err := uc.users.Update(c.UserContext(), user); err != nil {
		return internalError(c, "failed to update user", err)
	}
	return c.JSON(user)
}

// HandleDelete removes a user. Admins cannot delete themselves or the last admin.
func (uc *UserController) HandleDelete(c *fiber.Ctx) error {
	user, err := uc.load(c)
	if err != nil {
		return notFoundOr(c, err, "user")
	}
	if user.ID == usercontext.GetUserID(c) {
		return jsonError(c, fiber.StatusConflict, "self_delete", "you cannot delete your own account")
	}
	if user.IsAdmin() {
		if resp, err := uc.guardLastAdmin(c); resp {
			return err
		}
	}

	if err := uc.users.Delete(c.UserContext(), user.TenantID, user.ID); err != nil {
		return notFoundOr(c, err, "user")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (uc *UserController) load(c *fiber.Ctx) (*models.User, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil, errInvalidID
	}
	return uc.users.GetByID(c.UserContext(), currentTenant(c).ID, uint(id))
}

// guardLastAdmin writes a 409 when the tenant has a single admin left and
// reports whether a response was written.
func (uc *UserController) guardLastAdmin(c *fiber.Ctx) (bool, error) {
	admins, err := uc.users.CountAdmins(c.UserContext(), currentTenant(c).ID)
	if err != nil {
		return true, internalError(c, "failed to count admins", err)
	}
	if admins <= 1 {
		return true, jsonError(c, fiber.StatusConflict, "last_admin", "a tenant needs at least one admin")
	}
	return false, nil
}
