package metrics

import "time"

// BillingRequestObserved records one billing provider call.
func BillingRequestObserved(op, status string, duration time.Duration) {
	BillingRequestsTotal.WithLabelValues(op, status).Inc()
	BillingRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ReconciliationRecorded records a reconciliation outcome.
// trigger is "signin", "batch", "webhook" or "external_signin".
func ReconciliationRecorded(trigger, outcome string) {
	ReconciliationsTotal.WithLabelValues(trigger, outcome).Inc()
}

// TierChanged records a stored tier transition.
func TierChanged(from, to string) {
	TierChangesTotal.WithLabelValues(from, to).Inc()
}

// QuotaDecided records an admission decision.
func QuotaDecided(resource string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	QuotaDecisionsTotal.WithLabelValues(resource, decision).Inc()
}

// ProvisioningRecorded records the result of a payment confirmation.
// result is "created", "updated", "inconsistent" or "error".
func ProvisioningRecorded(result string) {
	ProvisioningTotal.WithLabelValues(result).Inc()
}
