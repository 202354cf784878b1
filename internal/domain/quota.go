// Package domain contains core business types and interfaces.
//
// This file defines quota types for gating resource creation by subscription tier.
package domain

import "fmt"

// ResourceType identifies the resource being admitted.
type ResourceType string

const (
	ResourceCategory ResourceType = "category"
	ResourceProject  ResourceType = "project"
)

// TierQuota defines the resource ceilings for a subscription tier.
//
// Limits are only meaningful when the matching Unlimited flag is false.
// Quotas must be non-decreasing from Free to Premium on every dimension.
type TierQuota struct {
	MaxCategories          int
	MaxProjectsPerCategory int
	UnlimitedCategories    bool
	UnlimitedProjects      bool
	HasExtendedAccess      bool
}

// TierQuotas maps subscription tiers to their quota limits.
// Free tier has strict limits; paid tiers are unlimited.
var TierQuotas = map[Tier]TierQuota{
	TierFree: {
		MaxCategories:          3,
		MaxProjectsPerCategory: 3,
	},
	TierPaid: {
		UnlimitedCategories: true,
		UnlimitedProjects:   true,
	},
	TierPremium: {
		UnlimitedCategories: true,
		UnlimitedProjects:   true,
		HasExtendedAccess:   true,
	},
}

// QuotaFor returns the quota for a tier, defaulting to free tier for unknown tiers.
func QuotaFor(tier Tier) TierQuota {
	if quota, ok := TierQuotas[tier]; ok {
		return quota
	}
	return TierQuotas[TierFree]
}

// AllowsCategories reports whether an account holding count categories may create another.
func (q TierQuota) AllowsCategories(count int64) bool {
	return q.UnlimitedCategories || count < int64(q.MaxCategories)
}

// AllowsProjects reports whether a category holding count projects may receive another.
func (q TierQuota) AllowsProjects(count int64) bool {
	return q.UnlimitedProjects || count < int64(q.MaxProjectsPerCategory)
}

// AtMost reports whether q is no more generous than other on every dimension.
func (q TierQuota) AtMost(other TierQuota) bool {
	return limitAtMost(q.MaxCategories, q.UnlimitedCategories, other.MaxCategories, other.UnlimitedCategories) &&
		limitAtMost(q.MaxProjectsPerCategory, q.UnlimitedProjects, other.MaxProjectsPerCategory, other.UnlimitedProjects) &&
		(!q.HasExtendedAccess || other.HasExtendedAccess)
}

func limitAtMost(a int, aUnlimited bool, b int, bUnlimited bool) bool {
	if bUnlimited {
		return true
	}
	if aUnlimited {
		return false
	}
	return a <= b
}

// Decision is the outcome of an admission check. A denial is a normal result,
// not an error; Reason is suitable for showing to the end user.
type Decision struct {
	Allowed  bool
	Resource ResourceType
	Count    int64
	Limit    int64 // -1 when unbounded
	Reason   string
}

// Allow returns an admitting decision.
func Allow(resource ResourceType, count, limit int64) Decision {
	return Decision{Allowed: true, Resource: resource, Count: count, Limit: limit}
}

// DenyCategory returns the denial for a full category quota.
func DenyCategory(count, limit int64) Decision {
	return Decision{
		Resource: ResourceCategory,
		Count:    count,
		Limit:    limit,
		Reason:   fmt.Sprintf("You have reached the maximum number of categories (%d) for your subscription tier.", limit),
	}
}

// DenyProject returns the denial for a full per-category project quota.
func DenyProject(count, limit int64) Decision {
	return Decision{
		Resource: ResourceProject,
		Count:    count,
		Limit:    limit,
		Reason:   fmt.Sprintf("You have reached the maximum number of projects (%d) for this category.", limit),
	}
}
