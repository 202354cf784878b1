package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/metrics"
)

// Reasons recorded for payment events that can never be applied.
const (
	// ReasonNoPendingCredential: unknown identity and no credential supplied at checkout.
	ReasonNoPendingCredential = "payment confirmed for unknown account without a pending credential"
	// ReasonNoIdentity: the confirmed payment carries no customer email.
	ReasonNoIdentity = "payment confirmed without a customer email"
	// ReasonUnreadablePayload: the event body could not be decoded.
	ReasonUnreadablePayload = "payment event payload could not be decoded"
)

// ProvisioningCoordinator applies provider-confirmed payments to accounts.
//
// Redelivery of the same confirmation is safe: an existing account has its
// tier set (not transitioned), and creation is guarded by the identity lock
// and the store's conflict handling.
type ProvisioningCoordinator struct {
	accounts AccountStore
	failures PaymentFailureStore
	provider BillingProvider
	policy   TierResolver
	hasher   CredentialHasher
	locker   *IdentityLocker
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProvisioningCoordinator creates a ProvisioningCoordinator.
// providerTimeout bounds the wait for the identity lock and the fallback
// provider lookup for unrecognized plans.
func NewProvisioningCoordinator(
	accounts AccountStore,
	failures PaymentFailureStore,
	provider BillingProvider,
	policy TierResolver,
	hasher CredentialHasher,
	locker *IdentityLocker,
	notifier Notifier,
	providerTimeout time.Duration,
	logger *slog.Logger,
) *ProvisioningCoordinator {
	if providerTimeout <= 0 {
		providerTimeout = DefaultReconcileConfig().Timeout
	}
	return &ProvisioningCoordinator{
		accounts: accounts,
		failures: failures,
		provider: provider,
		policy:   policy,
		hasher:   hasher,
		locker:   locker,
		notifier: notifier,
		timeout:  providerTimeout,
		logger:   logger,
	}
}

// OnPaymentConfirmed creates or upgrades the account behind a confirmed payment.
//
// Returns domain.EUNPROCESSABLE for an inconsistent event, after recording it;
// such events must not be retried. Any other error is transient.
func (p *ProvisioningCoordinator) OnPaymentConfirmed(ctx context.Context, c domain.PaymentConfirmation) error {
	const op = "provisioning.on_payment_confirmed"

	identity := domain.NormalizeIdentity(c.Identity)
	if identity == "" {
		return p.recordInconsistent(ctx, domain.PaymentEventFailure{
			EventID:        c.EventID,
			PlanIdentifier: c.PlanIdentifier,
			Reason:         ReasonNoIdentity,
		})
	}

	tier, err := p.resolveTier(ctx, identity, c.PlanIdentifier)
	if err != nil {
		metrics.ProvisioningRecorded("error")
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, p.timeout)
	unlock, err := p.locker.Lock(lockCtx, identity)
	cancel()
	if err != nil {
		metrics.ProvisioningRecorded("error")
		return domain.Wrap(err, domain.EUNAVAILABLE, op, "timed out waiting for account lock")
	}
	defer unlock()

	account, err := p.accounts.FindAccount(ctx, identity)
	switch {
	case err == nil:
		return p.setTier(ctx, account, tier)
	case !domain.IsNotFound(err):
		metrics.ProvisioningRecorded("error")
		return err
	}

	if c.PendingCredential == "" {
		return p.recordInconsistent(ctx, domain.PaymentEventFailure{
			EventID:        c.EventID,
			Identity:       identity,
			PlanIdentifier: c.PlanIdentifier,
			Reason:         ReasonNoPendingCredential,
		})
	}

	hash, err := p.hasher.Hash(c.PendingCredential)
	if err != nil {
		metrics.ProvisioningRecorded("error")
		return domain.Internal(err, op, "failed to hash credential")
	}

	account = &domain.Account{
		Email:        identity,
		Name:         defaultName(c.Name, identity),
		PasswordHash: hash,
		Tier:         tier,
		Role:         domain.RoleUser,
	}
	created, err := p.accounts.CreateAccount(ctx, account)
	if err != nil {
		metrics.ProvisioningRecorded("error")
		return err
	}
	if !created {
		// Created concurrently by another process; apply the tier to that account.
		existing, err := p.accounts.FindAccount(ctx, identity)
		if err != nil {
			metrics.ProvisioningRecorded("error")
			return err
		}
		return p.setTier(ctx, existing, tier)
	}

	p.logger.Info("account provisioned from payment",
		"email", identity,
		"tier", tier,
		"event_id", c.EventID,
	)
	metrics.ProvisioningRecorded("created")
	p.notifier.AccountProvisioned(ctx, account)
	return nil
}

// resolveTier trusts a recognized plan identifier. An unrecognized one is
// resolved against a freshly fetched billing record so it can never grant
// more than reconciliation would.
func (p *ProvisioningCoordinator) resolveTier(ctx context.Context, identity, planID string) (domain.Tier, error) {
	const op = "provisioning.resolve_tier"

	if tier, ok := p.policy.TierForPriceID(planID); ok {
		return tier, nil
	}

	p.logger.Warn("payment for unrecognized plan, resolving from provider",
		"email", identity,
		"plan_id", planID,
	)

	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record, err := p.provider.GetActiveSubscription(lookupCtx, identity)
	if err != nil {
		return "", domain.Wrap(err, domain.EUNAVAILABLE, op, "billing provider unavailable")
	}
	return p.policy.ResolveTier(record), nil
}

func (p *ProvisioningCoordinator) setTier(ctx context.Context, account *domain.Account, tier domain.Tier) error {
	if err := p.accounts.UpdateAccountTier(ctx, account.Email, tier); err != nil {
		metrics.ProvisioningRecorded("error")
		return err
	}

	metrics.ProvisioningRecorded("updated")
	if account.Tier != tier {
		p.logger.Info("tier set from payment",
			"email", account.Email,
			"old_tier", account.Tier,
			"new_tier", tier,
		)
		metrics.TierChanged(string(account.Tier), string(tier))
		p.notifier.TierChanged(ctx, account.Email, account.Tier, tier)
	}
	return nil
}

// RecordUnreadableEvent records a confirmed payment whose payload could not be
// decoded, so it reaches an operator instead of being acknowledged silently.
func (p *ProvisioningCoordinator) RecordUnreadableEvent(ctx context.Context, eventID string, cause error) error {
	p.logger.Error("unreadable payment event", "event_id", eventID, "error", cause)
	err := p.recordInconsistent(ctx, domain.PaymentEventFailure{
		EventID: eventID,
		Reason:  ReasonUnreadablePayload,
	})
	if domain.ErrorCode(err) == domain.EUNPROCESSABLE {
		return nil
	}
	return err
}

// recordInconsistent writes f to the failure ledger. It returns
// domain.EUNPROCESSABLE once recorded, or the store error so the provider
// redelivers.
func (p *ProvisioningCoordinator) recordInconsistent(ctx context.Context, f domain.PaymentEventFailure) error {
	const op = "provisioning.on_payment_confirmed"

	p.logger.Error("inconsistent payment event",
		"email", f.Identity,
		"event_id", f.EventID,
		"plan_id", f.PlanIdentifier,
		"reason", f.Reason,
	)

	if err := p.failures.RecordPaymentEventFailure(ctx, f); err != nil {
		metrics.ProvisioningRecorded("error")
		return err
	}

	metrics.ProvisioningRecorded("inconsistent")
	return domain.Unprocessable(op, f.Reason)
}

// ListPaymentEventFailures returns recorded inconsistent events for operators.
func (p *ProvisioningCoordinator) ListPaymentEventFailures(ctx context.Context, limit int) ([]domain.PaymentEventFailure, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return p.failures.ListPaymentEventFailures(ctx, limit)
}

// defaultName falls back to the local part of the email.
func defaultName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
