// Package service contains the business logic layer.
//
// Services orchestrate interactions between the store, the billing provider,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Per-identity serialization
// - Error translation (store/provider errors -> domain errors)
package service

import (
	"context"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Collaborator Contracts
// =============================================================================

// AccountStore persists accounts keyed by identity.
// Implemented by repository.Store.
type AccountStore interface {
	// FindAccount returns domain.ENOTFOUND when no account exists.
	FindAccount(ctx context.Context, email string) (*domain.Account, error)
	// CreateAccount reports false when an account already existed for the email.
	CreateAccount(ctx context.Context, account *domain.Account) (bool, error)
	UpdateAccountTier(ctx context.Context, email string, tier domain.Tier) error
	UpdateAccountRole(ctx context.Context, email string, role domain.Role) error
	ListIdentities(ctx context.Context) ([]string, error)
}

// CatalogStore persists categories and projects.
type CatalogStore interface {
	CountCategories(ctx context.Context, email string) (int64, error)
	CountProjects(ctx context.Context, email string, categoryID uuid.UUID) (int64, error)
	CreateCategory(ctx context.Context, email string, params domain.CreateCategoryParams) (*domain.Category, error)
	CreateProject(ctx context.Context, email string, params domain.CreateProjectParams) (*domain.Project, error)
}

// PaymentFailureStore records payment events that could not be applied.
type PaymentFailureStore interface {
	RecordPaymentEventFailure(ctx context.Context, failure domain.PaymentEventFailure) error
	ListPaymentEventFailures(ctx context.Context, limit int) ([]domain.PaymentEventFailure, error)
}

// BillingProvider is the read side of the billing provider used by reconciliation.
// Implemented by billing.Service.
type BillingProvider interface {
	GetActiveSubscription(ctx context.Context, email string) (*domain.BillingRecord, error)
}

// TierResolver maps provider state to tiers. Implemented by *billing.Policy.
type TierResolver interface {
	ResolveTier(record *domain.BillingRecord) domain.Tier
	TierForPriceID(priceID string) (domain.Tier, bool)
}

// CredentialHasher hashes and verifies secrets.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}
