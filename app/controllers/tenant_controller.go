package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/assets"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

// TenantController exposes the settings of the current tenant
type TenantController struct {
	tenants  repository.TenantRepository
	resolver *tenancy.Resolver
	logos    *assets.LogoUploader
}

// NewTenantController creates a new tenant controller. logos may be nil when
// no bucket is configured; uploads then answer 503.
func NewTenantController(tenants repository.TenantRepository, resolver *tenancy.Resolver, logos *assets.LogoUploader) *TenantController {
	return &TenantController{tenants: tenants, resolver: resolver, logos: logos}
}

type brandingInput struct {
	PrimaryColor *string `json:"primary_color" validate:"omitempty,hexcolor"`
}

type careersPageInput struct {
	Enabled  *bool   `json:"enabled"`
	Headline *string `json:"headline" validate:"omitempty,max=200,singleline"`
}

type updateTenantRequest struct {
	Name        *string           `json:"name" validate:"omitempty,min=2,max=200,singleline"`
	Branding    *brandingInput    `json:"branding"`
	CareersPage *careersPageInput `json:"careers_page"`
}

// HandleGet returns the current tenant.
func (tc *TenantController) HandleGet(c *fiber.Ctx) error {
	return c.JSON(currentTenant(c))
}

// HandleUpdate changes the name and settings sections. Only the given fields
// are touched.
func (tc *TenantController) HandleUpdate(c *fiber.Ctx) error {
	var in updateTenantRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	tenant := currentTenant(c)

	if in.Name != nil {
		tenant.Name = *in.Name
	}
	if in.Branding != nil && in.Branding.PrimaryColor != nil {
		tenant.SettingsSection("branding")["primary_color"] = *in.Branding.PrimaryColor
	}
	if in.CareersPage != nil {
		section := tenant.SettingsSection("careers_page")
		if in.CareersPage.Enabled != nil {
			section["enabled"] = *in.CareersPage.Enabled
		}
		if in.CareersPage.Headline != nil {
			section["headline"] = *in.CareersPage.Headline
		}
	}

	if err := tenant.Validate(); err != nil {
		return validationError(c, err)
	}
	if err := tc.save(c, tenant.Slug, func() error { return tc.tenants.Update(c.UserContext(), tenant) }); err != nil {
		return internalError(c, "failed to update tenant", err)
	}
	return c.JSON(tenant)
}

// HandleUploadLogo stores the multipart field "logo" as the tenant logo.
func (tc *TenantController) HandleUploadLogo(c *fiber.Ctx) error {
	tenant := currentTenant(c)

	header, err := c.FormFile("logo")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "multipart field logo is required")
	}
	if header.Size > assets.MaxLogoBytes {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "logo_too_large", assets.ErrLogoTooLarge.Error())
	}
	file, err := header.Open()
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "unreadable upload")
	}
	defer file.Close()

	url, err := tc.logos.Upload(c.UserContext(), tenant.Slug, file)
	if err != nil {
		switch {
		case errors.Is(err, assets.ErrStorageMissing):
			return jsonError(c, fiber.StatusServiceUnavailable, "storage_unavailable", err.Error())
		case errors.Is(err, assets.ErrLogoTooLarge):
			return jsonError(c, fiber.StatusRequestEntityTooLarge, "logo_too_large", err.Error())
		case errors.Is(err, assets.ErrInvalidImage):
			return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_image", err.Error())
		default:
			return internalError(c, "failed to store logo", err)
		}
	}

	tenant.SettingsSection("branding")["logo_url"] = url
	if err := tc.save(c, tenant.Slug, func() error { return tc.tenants.Update(c.UserContext(), tenant) }); err != nil {
		return internalError(c, "failed to update tenant", err)
	}
	logger.L().Info("tenant logo updated", zap.String("tenant", tenant.Slug), zap.String("url", url))
	return c.JSON(fiber.Map{"logo_url": url})
}

func (tc *TenantController) save(c *fiber.Ctx, slug string, update func() error) error {
	if err := update(); err != nil {
		return err
	}
	if tc.resolver != nil {
		tc.resolver.Invalidate(c.UserContext(), slug)
	}
	return nil
}
