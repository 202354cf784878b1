package billing

import (
	"log/slog"

	"github.com/DukeRupert/folio/internal/domain"
)

// PriceConfig holds the Stripe price IDs for each paid tier.
//
// PaidPriceID and PremiumPriceID are both required for anything to resolve
// above Free. The Extra lists carry alternate prices for the same tier
// (currency or interval variants).
type PriceConfig struct {
	PaidPriceID          string
	PremiumPriceID       string
	ExtraPaidPriceIDs    []string
	ExtraPremiumPriceIDs []string
}

// Configured returns true if both primary price IDs are present.
func (c PriceConfig) Configured() bool {
	return c.PaidPriceID != "" && c.PremiumPriceID != ""
}

// Policy maps provider plan identifiers to tiers and tiers to quotas. It does no I/O.
type Policy struct {
	priceToTier map[string]domain.Tier // maps price ID -> tier
	configured  bool
	logger      *slog.Logger
}

// NewPolicy builds the price lookup table.
//
// When either primary price ID is missing the table is left empty, so every
// active subscription resolves to Free. This is logged once here and again on
// each resolution it affects.
func NewPolicy(prices PriceConfig, logger *slog.Logger) *Policy {
	p := &Policy{
		priceToTier: make(map[string]domain.Tier),
		configured:  prices.Configured(),
		logger:      logger,
	}

	if !p.configured {
		logger.Warn("stripe price IDs not configured, all subscriptions resolve to free tier",
			"paid_configured", prices.PaidPriceID != "",
			"premium_configured", prices.PremiumPriceID != "")
		return p
	}

	p.add(domain.TierPaid, prices.PaidPriceID)
	p.add(domain.TierPaid, prices.ExtraPaidPriceIDs...)
	// Premium last so a price listed under both tiers resolves to premium.
	p.add(domain.TierPremium, prices.PremiumPriceID)
	p.add(domain.TierPremium, prices.ExtraPremiumPriceIDs...)

	return p
}

func (p *Policy) add(tier domain.Tier, priceIDs ...string) {
	for _, id := range priceIDs {
		if id != "" {
			p.priceToTier[id] = tier
		}
	}
}

// Configured reports whether paid tiers can be resolved at all.
func (p *Policy) Configured() bool {
	return p.configured
}

// TierForPriceID returns the paid tier for a recognized price ID.
// The boolean is false for unknown IDs and for every ID when misconfigured.
func (p *Policy) TierForPriceID(priceID string) (domain.Tier, bool) {
	tier, ok := p.priceToTier[priceID]
	return tier, ok
}

// ResolveTier derives the entitled tier from a billing record.
//
// No subscription, a non-active status, or an unrecognized price all resolve
// to Free. An unknown plan must never grant paid features.
func (p *Policy) ResolveTier(record *domain.BillingRecord) domain.Tier {
	if record == nil || record.ActiveSubscription == nil {
		return domain.TierFree
	}

	sub := record.ActiveSubscription
	if sub.Status != domain.SubscriptionStatusActive {
		return domain.TierFree
	}

	tier, ok := p.TierForPriceID(sub.PlanIdentifier)
	if !ok {
		if !p.configured {
			p.logger.Error("active subscription unresolvable, price IDs missing",
				"email", record.Identity, "price_id", sub.PlanIdentifier)
		} else {
			p.logger.Warn("active subscription has unrecognized price, resolving to free",
				"email", record.Identity, "price_id", sub.PlanIdentifier)
		}
		return domain.TierFree
	}

	return tier
}

// QuotaFor returns the resource quota for a tier.
func (p *Policy) QuotaFor(tier domain.Tier) domain.TierQuota {
	return domain.QuotaFor(tier)
}
