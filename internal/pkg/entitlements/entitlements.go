package entitlements

import (
	"errors"
	"strings"

	"github.com/ManuelReschke/TalentFox/app/models"
)

type Plan string

const (
	PlanStarter    Plan = models.PLAN_STARTER
	PlanGrowth     Plan = models.PLAN_GROWTH
	PlanEnterprise Plan = models.PLAN_ENTERPRISE
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

var ErrPlanLimitReached = errors.New("plan limit reached")

// Limits are the per-plan quotas enforced by the admin API.
type Limits struct {
	ActiveJobs int
	Users      int
}

// NormalizePlan maps unknown or empty plan names to starter.
func NormalizePlan(plan string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanGrowth:
		return PlanGrowth
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return PlanStarter
	}
}

// LimitsFor returns the quotas of a plan
func LimitsFor(plan string) Limits {
	switch NormalizePlan(plan) {
	case PlanEnterprise:
		return Limits{ActiveJobs: Unlimited, Users: Unlimited}
	case PlanGrowth:
		return Limits{ActiveJobs: 25, Users: 10}
	default:
		return Limits{ActiveJobs: 3, Users: 2}
	}
}

// CanPublishJob reports whether one more posting may be published when
// active postings are already live.
func CanPublishJob(plan string, active int64) bool {
	return below(LimitsFor(plan).ActiveJobs, active)
}

// CanAddUser reports whether one more user fits next to count existing users.
func CanAddUser(plan string, count int64) bool {
	return below(LimitsFor(plan).Users, count)
}

// CanServe reports whether a tenant in status may serve its portal and
// mutate data.
func CanServe(status string) bool {
	return status == models.TENANT_STATUS_ACTIVE || status == models.TENANT_STATUS_PAST_DUE
}

func below(limit int, n int64) bool {
	if limit == Unlimited {
		return true
	}
	return n < int64(limit)
}
