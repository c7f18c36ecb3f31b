package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/TalentFox/internal/pkg/tenancy"
)

// JobController manages the job postings of the current tenant
type JobController struct {
	jobs repository.JobPostingRepository
}

// NewJobController creates a new job controller
func NewJobController(jobs repository.JobPostingRepository) *JobController {
	return &JobController{jobs: jobs}
}

type jobRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=3,max=200,singleline"`
	Location       *string `json:"location" validate:"omitempty,max=200,singleline"`
	EmploymentType *string `json:"employment_type" validate:"omitempty,oneof=full_time part_time contract internship temporary"`
	Remote         *bool   `json:"remote"`
	Description    *string `json:"description" validate:"omitempty,max=20000"`
	SalaryMin      *int64  `json:"salary_min" validate:"omitempty,gte=0"`
	SalaryMax      *int64  `json:"salary_max" validate:"omitempty,gte=0"`
	Currency       *string `json:"currency" validate:"omitempty,len=3"`
}

func (in *jobRequest) apply(job *models.JobPosting) {
	if in.Title != nil {
		job.Title = *in.Title
		job.Slug = tenancy.Slugify(*in.Title)
	}
	if in.Location != nil {
		job.Location = *in.Location
	}
	if in.EmploymentType != nil {
		job.EmploymentType = *in.EmploymentType
	}
	if in.Remote != nil {
		job.Remote = *in.Remote
	}
	if in.Description != nil {
		job.Description = *in.Description
	}
	if in.SalaryMin != nil {
		job.SalaryMin = in.SalaryMin
	}
	if in.SalaryMax != nil {
		job.SalaryMax = in.SalaryMax
	}
	if in.Currency != nil {
		job.Currency = *in.Currency
	}
}

// HandleList lists postings, optionally filtered by ?status=.
func (jc *JobController) HandleList(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", models.JOB_STATUS_DRAFT, models.JOB_STATUS_PUBLISHED, models.JOB_STATUS_CLOSED:
	default:
		return jsonError(c, fiber.StatusBadRequest, "invalid_status", "unknown status filter")
	}
	offset, limit := pagination(c)

	jobs, err := jc.jobs.ListByTenant(c.UserContext(), currentTenant(c).ID, status, offset, limit)
	if err != nil {
		return internalError(c, "failed to list jobs", err)
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// HandleCreate stores a new draft posting.
func (jc *JobController) HandleCreate(c *fiber.Ctx) error {
	var in jobRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	if in.Title == nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "title is required")
	}

	job := &models.JobPosting{
		TenantID:       currentTenant(c).ID,
		EmploymentType: "full_time",
		Status:         models.JOB_STATUS_DRAFT,
	}
	in.apply(job)
	if err := job.Validate(); err != nil {
		return validationError(c, err)
	}
	if err := jc.jobs.Create(c.UserContext(), job); err != nil {
		return internalError(c, "failed to create job", err)
	}
	return c.Status(fiber.StatusCreated).JSON(job)
}

// HandleGet returns one posting of the tenant in any status.
func (jc *JobController) HandleGet(c *fiber.Ctx) error {
	job, err := jc.jobs.GetByUUID(c.UserContext(), currentTenant(c).ID, c.Params("uuid"))
	if err != nil {
		return notFoundOr(c, err, "job")
	}
	return c.JSON(job)
}

// HandleUpdate changes the given fields of a posting.
func (jc *JobController) HandleUpdate(c *fiber.Ctx) error {
	var in jobRequest
	if ok, err := bindJSON(c, &in); !ok {
		return err
	}
	job, err := jc.jobs.GetByUUID(c.UserContext(), currentTenant(c).ID, c.Params("uuid"))
	if err != nil {
		return notFoundOr(c, err, "job")
	}

	in.apply(job)
	if err := job.Validate(); err != nil {
		return validationError(c, err)
	}
	if err := jc.jobs.Update(c.UserContext(), job); err != nil {
		return internalError(c, "failed to update job", err)
	}
	return c.JSON(job)
}

// HandleDelete soft deletes a posting.
func (jc *JobController) HandleDelete(c *fiber.Ctx) error {
	if err := jc.jobs.Delete(c.UserContext(), currentTenant(c).ID, c.Params("uuid")); err != nil {
		return notFoundOr(c, err, "job")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandlePublish puts a posting on the portal, within the plan's job limit.
func (jc *JobController) HandlePublish(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	job, err := jc.jobs.GetByUUID(c.UserContext(), tenant.ID, c.Params("uuid"))
	if err != nil {
		return notFoundOr(c, err, "job")
	}
	if job.IsPublished() {
		return c.JSON(job)
	}

	active, err := jc.jobs.CountPublished(c.UserContext(), tenant.ID)
	if err != nil {
		return internalError(c, "failed to count jobs", err)
	}
	if !entitlements.CanPublishJob(tenant.Plan, active) {
		return jsonError(c, fiber.StatusPaymentRequired, "plan_limit_reached", entitlements.ErrPlanLimitReached.Error())
	}

	job.Publish()
	if err := jc.jobs.Update(c.UserContext(), job); err != nil {
		return internalError(c, "failed to publish job", err)
	}
	return c.JSON(job)
}

// HandleClose takes a posting off the portal.
func (jc *JobController) HandleClose(c *fiber.Ctx) error {
	job, err := jc.jobs.GetByUUID(c.UserContext(), currentTenant(c).ID, c.Params("uuid"))
	if err != nil {
		return notFoundOr(c, err, "job")
	}
	if job.Status != models.JOB_STATUS_CLOSED {
		job.Close()
		if err := jc.jobs.Update(c.UserContext(), job); err != nil {
			return internalError(c, "failed to close job", err)
		}
	}
	return c.JSON(job)
}
