package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	JOB_STATUS_DRAFT     = "draft"
	JOB_STATUS_PUBLISHED = "published"
	JOB_STATUS_CLOSED    = "closed"
)

var ErrSalaryRange = errors.New("salary_max must not be lower than salary_min")

// JobPosting is a vacancy shown on the tenant's career portal once published.
type JobPosting struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	UUID           string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	TenantID       uint           `gorm:"not null;index:idx_job_postings_tenant_status,priority:1" json:"-"`
	Title          string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200,singleline"`
	Slug           string         `gorm:"type:varchar(220)" json:"slug"`
	Location       string         `gorm:"type:varchar(200)" json:"location" validate:"max=200,singleline"`
	EmploymentType string         `gorm:"type:varchar(32);default:'full_time'" json:"employment_type" validate:"oneof=full_time part_time contract internship temporary"`
	Remote         bool           `gorm:"default:false" json:"remote"`
	Description    string         `gorm:"type:text" json:"description" validate:"max=20000"`
	SalaryMin      *int64         `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax      *int64         `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	Currency       string         `gorm:"type:varchar(3)" json:"currency,omitempty" validate:"omitempty,len=3"`
	Status         string         `gorm:"type:varchar(16);default:'draft';index:idx_job_postings_tenant_status,priority:2" json:"status" validate:"oneof=draft published closed"`
	PublishedAt    *time.Time     `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	ClosedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"closed_at,omitempty"`
	ViewCount      int64          `gorm:"not null;default:0" json:"view_count"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (j *JobPosting) Validate() error {
	v := NewValidator()

	if err := v.Struct(j); err != nil {
		return err
	}
	if j.SalaryMin != nil && j.SalaryMax != nil && *j.SalaryMax < *j.SalaryMin {
		return ErrSalaryRange
	}
	return nil
}

// BeforeCreate assigns the public UUID.
func (j *JobPosting) BeforeCreate(tx *gorm.DB) error {
	if j.UUID == "" {
		j.UUID = uuid.New().String()
	}
	return nil
}

// Publish moves a draft or closed posting to published.
func (j *JobPosting) Publish() {
	now := time.Now()
	j.Status = JOB_STATUS_PUBLISHED
	j.PublishedAt = &now
	j.ClosedAt = nil
}

// Close takes a posting off the portal.
func (j *JobPosting) Close() {
	now := time.Now()
	j.Status = JOB_STATUS_CLOSED
	j.ClosedAt = &now
}

func (j *JobPosting) IsPublished() bool {
	return j.Status == JOB_STATUS_PUBLISHED
}
