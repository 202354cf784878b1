package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/folio/internal/domain"
)

// DefaultCategoryIcon is used when a category is created without an icon.
const DefaultCategoryIcon = "Folder"

// CatalogService creates portfolio categories and projects behind the quota enforcer.
//
// Check and insert run under the identity lock, so concurrent requests from
// one account cannot both pass a check and exceed the quota.
type CatalogService struct {
	accounts AccountStore
	catalog  CatalogStore
	quota    QuotaEnforcer
	locker   *IdentityLocker
	logger   *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(accounts AccountStore, catalog CatalogStore, quota QuotaEnforcer, locker *IdentityLocker, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		accounts: accounts,
		catalog:  catalog,
		quota:    quota,
		locker:   locker,
		logger:   logger,
	}
}

// CreateCategory creates a category for identity.
// Returns domain.EPAYMENT with the denial reason when the tier quota is reached.
func (s *CatalogService) CreateCategory(ctx context.Context, identity string, params domain.CreateCategoryParams) (*domain.Category, error) {
	const op = "catalog.create_category"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, domain.Invalid(op, "Category name is required")
	}
	if params.Icon == "" {
		params.Icon = DefaultCategoryIcon
	}

	identity = domain.NormalizeIdentity(identity)
	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		return nil, domain.Wrap(err, domain.EUNAVAILABLE, op, "request canceled")
	}
	defer unlock()

	account, err := s.accounts.FindAccount(ctx, identity)
	if err != nil {
		return nil, err
	}

	decision, err := s.quota.CheckCategoryCreation(ctx, identity, account.Tier)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, domain.QuotaExceeded(op, decision)
	}

	category, err := s.catalog.CreateCategory(ctx, identity, params)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("category created", "email", identity, "category_id", category.ID)
	return category, nil
}

// CreateProject creates a project inside one of identity's categories.
// Returns domain.EPAYMENT with the denial reason when the tier quota is reached.
func (s *CatalogService) CreateProject(ctx context.Context, identity string, params domain.CreateProjectParams) (*domain.Project, error) {
	const op = "catalog.create_project"

	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, domain.Invalid(op, "Project title is required")
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, domain.Invalid(op, "Project description is required")
	}

	identity = domain.NormalizeIdentity(identity)
	unlock, err := s.locker.Lock(ctx, identity)
	if err != nil {
		return nil, domain.Wrap(err, domain.EUNAVAILABLE, op, "request canceled")
	}
	defer unlock()

	account, err := s.accounts.FindAccount(ctx, identity)
	if err != nil {
		return nil, err
	}

	decision, err := s.quota.CheckProjectCreation(ctx, identity, params.CategoryID, account.Tier)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, domain.QuotaExceeded(op, decision)
	}

	project, err := s.catalog.CreateProject(ctx, identity, params)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("project created", "email", identity, "project_id", project.ID)
	return project, nil
}
