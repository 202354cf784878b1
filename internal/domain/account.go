// Package domain contains core business types and interfaces.
//
// This file defines the Account domain type and the billing-provider view of it.
// Accounts are keyed by identity (the normalized email address), which is also
// the key used to correlate them with billing-provider customers.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Tier represents the entitlement level of an account.
type Tier string

const (
	TierFree    Tier = "free"
	TierPaid    Tier = "paid"
	TierPremium Tier = "premium"
)

// Tiers lists every tier in ascending rank order.
var Tiers = []Tier{TierFree, TierPaid, TierPremium}

// Valid returns true if t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Rank orders tiers from Free (0) upward. Unknown tiers rank -1.
func (t Tier) Rank() int {
	for i, known := range Tiers {
		if t == known {
			return i
		}
	}
	return -1
}

// DisplayName returns the label shown to users. Unknown tiers display as Free.
func (t Tier) DisplayName() string {
	switch t {
	case TierPremium:
		return "Premium"
	case TierPaid:
		return "Paid"
	default:
		return "Free"
	}
}

// Role is the authorization axis of an account. It is independent of tier.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid returns true if r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account represents one tenant of the portfolio builder.
//
// Email is the identity and never changes after creation. PasswordHash is
// empty for externally-authenticated accounts.
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string // Never expose this in API responses
	Tier         Tier
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin returns true if the account has the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HasPassword returns true if the account can sign in with a credential.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// DisplayName returns the account's name or email if name is empty.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// NormalizeIdentity trims and case-folds an email so that lookups against the
// store and the billing provider use the same key.
func NormalizeIdentity(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SubscriptionStatus mirrors the billing provider's subscription states.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// Subscription is the provider's current subscription for a customer.
type Subscription struct {
	ID             string
	PlanIdentifier string // provider price ID
	Status         SubscriptionStatus
}

// BillingRecord is the provider-sourced view of an identity. It is never persisted.
type BillingRecord struct {
	Identity           string
	CustomerID         string
	ActiveSubscription *Subscription // nil when the provider reports none
}

// PaymentConfirmation is the typed extraction of a provider-confirmed checkout.
// PendingCredential is the secret chosen at checkout time, empty when absent.
type PaymentConfirmation struct {
	EventID           string
	Identity          string
	Name              string
	PlanIdentifier    string
	PendingCredential string
}

// PaymentEventFailure records a confirmed payment that could not be applied.
type PaymentEventFailure struct {
	EventID        string
	Identity       string
	PlanIdentifier string
	Reason         string
	CreatedAt      time.Time
}

// RegisterParams contains the parameters for self-registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, will be hashed by service
	Name     string
}

// ExternalSignInParams describes a sign-in already authenticated by an external provider.
type ExternalSignInParams struct {
	Email string
	Name  string
}

// LoginResult contains the result of a successful sign-in.
type LoginResult struct {
	Account *Account
	Token   string
	// Reconciliation is the inline reconciliation outcome for this sign-in.
	Reconciliation VerificationResult
}
