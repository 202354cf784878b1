package domain

// Outcome classifies the result of reconciling one identity.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
)

// VerificationResult is one row of a reconciliation run. It is never persisted.
type VerificationResult struct {
	Identity string  `json:"email"`
	Outcome  Outcome `json:"status"`
	OldTier  Tier    `json:"old_tier,omitempty"`
	NewTier  Tier    `json:"new_tier,omitempty"`
	Reason   string  `json:"error,omitempty"`
}

// Unchanged reports that the stored tier already matched the provider.
func Unchanged(identity string, tier Tier) VerificationResult {
	return VerificationResult{Identity: identity, Outcome: OutcomeUnchanged, OldTier: tier, NewTier: tier}
}

// Updated reports that the stored tier was moved from old to new.
func Updated(identity string, old, new Tier) VerificationResult {
	return VerificationResult{Identity: identity, Outcome: OutcomeUpdated, OldTier: old, NewTier: new}
}

// Failed reports that reconciliation did not run to completion. No tier was changed.
func Failed(identity, reason string) VerificationResult {
	return VerificationResult{Identity: identity, Outcome: OutcomeFailed, Reason: reason}
}

// IsFailed returns true if the result is a failure.
func (r VerificationResult) IsFailed() bool {
	return r.Outcome == OutcomeFailed
}

// BatchVerificationReport is the ordered outcome of reconciling every account.
type BatchVerificationReport struct {
	Results   []VerificationResult `json:"updates"`
	Updated   int                  `json:"updated"`
	Unchanged int                  `json:"unchanged"`
	Failed    int                  `json:"failed"`
}

// NewBatchVerificationReport builds a report, preserving the order of results.
func NewBatchVerificationReport(results []VerificationResult) *BatchVerificationReport {
	report := &BatchVerificationReport{Results: make([]VerificationResult, 0, len(results))}
	for _, r := range results {
		report.Add(r)
	}
	return report
}

// Add appends a result and updates the counts.
func (b *BatchVerificationReport) Add(r VerificationResult) {
	b.Results = append(b.Results, r)
	switch r.Outcome {
	case OutcomeUpdated:
		b.Updated++
	case OutcomeUnchanged:
		b.Unchanged++
	case OutcomeFailed:
		b.Failed++
	}
}

// Total returns the number of identities in the report.
func (b *BatchVerificationReport) Total() int {
	return len(b.Results)
}
