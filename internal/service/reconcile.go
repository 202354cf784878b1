package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Reconciliation triggers, used as metric labels and log attributes.
const (
	TriggerSignIn         = "signin"
	TriggerExternalSignIn = "external_signin"
	TriggerBatch          = "batch"
	TriggerWebhook        = "webhook"
)

// Failure reasons surfaced in VerificationResult.Reason.
const (
	ReasonNoSuchAccount   = "no such account"
	ReasonProviderTimeout = "billing provider timed out"
	ReasonLockTimeout     = "timed out waiting for account lock"
)

// =============================================================================
// Configuration
// =============================================================================

// ReconcileConfig bounds provider usage during reconciliation.
type ReconcileConfig struct {
	// Timeout bounds lock acquisition plus the provider query for one identity.
	Timeout time.Duration
	// Concurrency is the number of identities reconciled in parallel by ReconcileAll.
	Concurrency int
	// RatePerSecond caps provider queries issued by ReconcileAll. Zero disables the cap.
	RatePerSecond float64
}

// DefaultReconcileConfig returns the defaults used when configuration is absent.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Timeout:       5 * time.Second,
		Concurrency:   4,
		RatePerSecond: 20,
	}
}

// =============================================================================
// Implementation
// =============================================================================

// ReconciliationEngine brings stored tiers into agreement with the billing provider.
type ReconciliationEngine struct {
	accounts AccountStore
	provider BillingProvider
	policy   TierResolver
	locker   *IdentityLocker
	notifier Notifier
	cfg      ReconcileConfig
	logger   *slog.Logger
}

// NewReconciliationEngine creates a ReconciliationEngine.
// The locker must be shared with every other writer of account tiers.
func NewReconciliationEngine(
	accounts AccountStore,
	provider BillingProvider,
	policy TierResolver,
	locker *IdentityLocker,
	notifier Notifier,
	cfg ReconcileConfig,
	logger *slog.Logger,
) *ReconciliationEngine {
	defaults := DefaultReconcileConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	return &ReconciliationEngine{
		accounts: accounts,
		provider: provider,
		policy:   policy,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// ReconcileOne makes the stored tier of identity match the provider.
//
// It never returns an error: every failure becomes a Failed result and leaves
// the stored tier untouched.
func (e *ReconciliationEngine) ReconcileOne(ctx context.Context, identity, trigger string) domain.VerificationResult {
	identity = domain.NormalizeIdentity(identity)
	result := e.reconcile(ctx, identity)

	metrics.ReconciliationRecorded(trigger, string(result.Outcome))
	switch result.Outcome {
	case domain.OutcomeFailed:
		e.logger.Warn("reconciliation failed",
			"email", identity,
			"trigger", trigger,
			"error", result.Reason,
		)
	case domain.OutcomeUpdated:
		e.logger.Info("tier reconciled",
			"email", identity,
			"trigger", trigger,
			"old_tier", result.OldTier,
			"new_tier", result.NewTier,
		)
		metrics.TierChanged(string(result.OldTier), string(result.NewTier))
		e.notifier.TierChanged(ctx, identity, result.OldTier, result.NewTier)
	}

	return result
}

func (e *ReconciliationEngine) reconcile(ctx context.Context, identity string) domain.VerificationResult {
	boundedCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	unlock, err := e.locker.Lock(boundedCtx, identity)
	if err != nil {
		return domain.Failed(identity, ReasonLockTimeout)
	}
	defer unlock()

	record, err := e.provider.GetActiveSubscription(boundedCtx, identity)
	if err != nil {
		return domain.Failed(identity, failureReason(err))
	}
	newTier := e.policy.ResolveTier(record)

	// Store calls use the caller's context so a slow provider cannot starve the write.
	account, err := e.accounts.FindAccount(ctx, identity)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Failed(identity, ReasonNoSuchAccount)
		}
		return domain.Failed(identity, failureReason(err))
	}

	if account.Tier == newTier {
		return domain.Unchanged(identity, newTier)
	}

	if err := e.accounts.UpdateAccountTier(ctx, identity, newTier); err != nil {
		return domain.Failed(identity, failureReason(err))
	}
	return domain.Updated(identity, account.Tier, newTier)
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonProviderTimeout
	}
	if errors.Is(err, context.Canceled) {
		return "reconciliation canceled"
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Code != domain.EINTERNAL {
		return de.Message
	}
	return "internal error"
}

// ReconcileAll reconciles every stored identity and reports each outcome in
// store order. A failure for one identity never stops the others.
//
// The only error returned is a failure to list identities.
func (e *ReconciliationEngine) ReconcileAll(ctx context.Context) (*domain.BatchVerificationReport, error) {
	const op = "reconcile.all"

	identities, err := e.accounts.ListIdentities(ctx)
	if err != nil {
		return nil, domain.Wrap(err, domain.ErrorCode(err), op, "failed to list accounts")
	}

	start := time.Now()
	results := make([]domain.VerificationResult, len(identities))

	var limiter *rate.Limiter
	if e.cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.RatePerSecond), 1)
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i, identity := range identities {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results[i] = domain.Failed(domain.NormalizeIdentity(identity), failureReason(err))
					metrics.ReconciliationRecorded(TriggerBatch, string(domain.OutcomeFailed))
					return nil
				}
			}
			results[i] = e.ReconcileOne(ctx, identity, TriggerBatch)
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewBatchVerificationReport(results)
	e.logger.Info("batch reconciliation complete",
		"total", report.Total(),
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return report, nil
}
