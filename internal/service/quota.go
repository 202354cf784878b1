// This file implements the quota enforcer for gating resource creation by
// subscription tier.
package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaEnforcer performs admission control for resource creation.
//
// A denial is returned as a Decision, not an error. Errors are reserved for
// store failures.
type QuotaEnforcer interface {
	// CheckCategoryCreation denies when the identity already owns
	// quotaFor(tier).MaxCategories categories.
	CheckCategoryCreation(ctx context.Context, identity string, tier domain.Tier) (domain.Decision, error)

	// CheckProjectCreation denies when the category already holds
	// quotaFor(tier).MaxProjectsPerCategory projects owned by the identity.
	CheckProjectCreation(ctx context.Context, identity string, categoryID uuid.UUID, tier domain.Tier) (domain.Decision, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaEnforcer struct {
	catalog CatalogStore
	logger  *slog.Logger
}

// NewQuotaEnforcer creates a new QuotaEnforcer.
func NewQuotaEnforcer(catalog CatalogStore, logger *slog.Logger) QuotaEnforcer {
	return &quotaEnforcer{
		catalog: catalog,
		logger:  logger,
	}
}

func (q *quotaEnforcer) CheckCategoryCreation(ctx context.Context, identity string, tier domain.Tier) (domain.Decision, error) {
	const op = "quota.check_category"

	quota := domain.QuotaFor(tier)

	count, err := q.catalog.CountCategories(ctx, identity)
	if err != nil {
		return domain.Decision{}, domain.Wrap(err, domain.ErrorCode(err), op, "failed to count categories")
	}

	var decision domain.Decision
	switch {
	case quota.UnlimitedCategories:
		decision = domain.Allow(domain.ResourceCategory, count, -1)
	case quota.AllowsCategories(count):
		decision = domain.Allow(domain.ResourceCategory, count, int64(quota.MaxCategories))
	default:
		decision = domain.DenyCategory(count, int64(quota.MaxCategories))
		q.logger.Info("Category quota exceeded",
			"email", identity,
			"tier", tier,
			"used", count,
			"limit", quota.MaxCategories,
		)
	}

	metrics.QuotaDecided(string(domain.ResourceCategory), decision.Allowed)
	return decision, nil
}

func (q *quotaEnforcer) CheckProjectCreation(ctx context.Context, identity string, categoryID uuid.UUID, tier domain.Tier) (domain.Decision, error) {
	const op = "quota.check_project"

	quota := domain.QuotaFor(tier)

	count, err := q.catalog.CountProjects(ctx, identity, categoryID)
	if err != nil {
		return domain.Decision{}, domain.Wrap(err, domain.ErrorCode(err), op, "failed to count projects")
	}

	var decision domain.Decision
	switch {
	case quota.UnlimitedProjects:
		decision = domain.Allow(domain.ResourceProject, count, -1)
	case quota.AllowsProjects(count):
		decision = domain.Allow(domain.ResourceProject, count, int64(quota.MaxProjectsPerCategory))
	default:
		decision = domain.DenyProject(count, int64(quota.MaxProjectsPerCategory))
		q.logger.Info("Project quota exceeded",
			"email", identity,
			"category_id", categoryID,
			"tier", tier,
			"used", count,
			"limit", quota.MaxProjectsPerCategory,
		)
	}

	metrics.QuotaDecided(string(domain.ResourceProject), decision.Allowed)
	return decision, nil
}
