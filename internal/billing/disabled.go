package billing

import (
	"context"
	"errors"

	"github.com/DukeRupert/folio/internal/domain"
)

// ErrNotConfigured is returned by Disabled for every provider query.
var ErrNotConfigured = errors.New("billing provider not configured")

// Disabled stands in for the provider when no Stripe key is set.
// Every query fails as unavailable, so reconciliation keeps stored tiers.
type Disabled struct{}

func (Disabled) GetActiveSubscription(ctx context.Context, email string) (*domain.BillingRecord, error) {
	return nil, domain.Unavailable(ErrNotConfigured, "billing.get_active_subscription", "Billing is not configured.")
}
