package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
	"github.com/ManuelReschke/TalentFox/internal/pkg/metrics/counter"
)

// PortalController serves the public career portal of a tenant
type PortalController struct {
	jobs  repository.JobPostingRepository
	views *counter.JobViews
}

// NewPortalController creates a new portal controller. views may be nil.
func NewPortalController(jobs repository.JobPostingRepository, views *counter.JobViews) *PortalController {
	return &PortalController{jobs: jobs, views: views}
}

// HandleInfo returns the public profile of the tenant.
func (pc *PortalController) HandleInfo(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	return c.JSON(fiber.Map{
		"slug":         tenant.Slug,
		"name":         tenant.Name,
		"branding":     tenant.SettingsSection("branding"),
		"careers_page": tenant.SettingsSection("careers_page"),
	})
}

// HandleJobs lists published postings.
func (pc *PortalController) HandleJobs(c *fiber.Ctx) error {
	if !careersPageEnabled(c) {
		return jsonError(c, fiber.StatusNotFound, "not_found", "career portal is disabled")
	}
	offset, limit := pagination(c)
	jobs, err := pc.jobs.ListPublished(c.UserContext(), currentTenant(c).ID, offset, limit)
	if err != nil {
		return internalError(c, "failed to list jobs", err)
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// HandleJob returns a published posting; drafts and closed postings are 404.
func (pc *PortalController) HandleJob(c *fiber.Ctx) error {
	if !careersPageEnabled(c) {
		return jsonError(c, fiber.StatusNotFound, "not_found", "career portal is disabled")
	}
	job, err := pc.jobs.GetByUUID(c.UserContext(), currentTenant(c).ID, c.Params("uuid"))
	if err != nil {
		return notFoundOr(c, err, "job")
	}
	if !job.IsPublished() {
		return jsonError(c, fiber.StatusNotFound, "not_found", "job not found")
	}
	if err := pc.views.Add(c.UserContext(), job.ID); err != nil {
		logger.L().Warn("failed to count job view", zap.String("job", job.UUID), zap.Error(err))
	}
	return c.JSON(job)
}

func careersPageEnabled(c *fiber.Ctx) bool {
	enabled, ok := currentTenant(c).SettingsSection("careers_page")["enabled"].(bool)
	return !ok || enabled
}
