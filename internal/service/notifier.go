package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/folio/internal/domain"
)

// Notifier is told about account lifecycle events worth telling a user about.
// Delivery is best effort; implementations must not fail the calling operation.
type Notifier interface {
	AccountProvisioned(ctx context.Context, account *domain.Account)
	TierChanged(ctx context.Context, email string, from, to domain.Tier)
}

// LogNotifier records notification decisions in the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a Notifier backed by the logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) AccountProvisioned(ctx context.Context, account *domain.Account) {
	n.logger.InfoContext(ctx, "notify: account provisioned",
		"email", account.Email,
		"tier", account.Tier,
	)
}

func (n *LogNotifier) TierChanged(ctx context.Context, email string, from, to domain.Tier) {
	n.logger.InfoContext(ctx, "notify: tier changed",
		"email", email,
		"old_tier", from,
		"new_tier", to,
	)
}
