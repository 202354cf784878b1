// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/metrics"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Checkout session metadata keys read back by the webhook handler.
const (
	MetadataKeyName       = "name"
	MetadataKeyCredential = "password"
)

// Service defines the interface for billing operations.
type Service interface {
	// GetActiveSubscription returns the provider's view of the customer with this email.
	// A customer with no subscription yields a record with a nil ActiveSubscription.
	// Returns domain.EUNAVAILABLE when the provider cannot be reached.
	GetActiveSubscription(ctx context.Context, email string) (*domain.BillingRecord, error)

	// GetCustomerEmail returns the email on a provider customer record.
	GetCustomerEmail(ctx context.Context, customerID string) (string, error)

	// GetSubscriptionPriceID returns the price ID of the first item of a subscription.
	GetSubscriptionPriceID(ctx context.Context, subscriptionID string) (string, error)

	// CreateCheckoutSession creates a Stripe Checkout session for subscribing.
	// Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

// CheckoutParams describes a subscription checkout for a prospective or existing account.
type CheckoutParams struct {
	Email             string
	Name              string
	PendingCredential string // Raw password for accounts created on payment, may be empty
	PriceID           string
	SuccessURL        string
	CancelURL         string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// backends may be nil to use the default Stripe endpoints.
func NewStripeService(secretKey, webhookSecret string, backends *stripe.Backends, logger *slog.Logger) Service {
	return &stripeService{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (s *stripeService) GetActiveSubscription(ctx context.Context, email string) (*domain.BillingRecord, error) {
	const op = "billing.get_active_subscription"
	start := time.Now()

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true
	params.AddExpand("data.subscriptions")

	record := &domain.BillingRecord{Identity: email}

	iter := s.api.Customers.List(params)
	if iter.Next() {
		c := iter.Customer()
		record.CustomerID = c.ID
		record.ActiveSubscription = pickSubscription(c.Subscriptions)
	}
	if err := iter.Err(); err != nil {
		metrics.BillingRequestObserved(op, "error", time.Since(start))
		return nil, domain.Unavailable(err, op, "billing provider unavailable")
	}

	metrics.BillingRequestObserved(op, "ok", time.Since(start))
	return record, nil
}

// pickSubscription prefers an active subscription and otherwise returns the first listed.
func pickSubscription(list *stripe.SubscriptionList) *domain.Subscription {
	if list == nil || len(list.Data) == 0 {
		return nil
	}

	chosen := list.Data[0]
	for _, sub := range list.Data {
		if sub.Status == stripe.SubscriptionStatusActive {
			chosen = sub
			break
		}
	}

	return &domain.Subscription{
		ID:             chosen.ID,
		PlanIdentifier: firstPriceID(chosen),
		Status:         domain.SubscriptionStatus(chosen.Status),
	}
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func (s *stripeService) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	const op = "billing.get_customer"
	start := time.Now()

	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := s.api.Customers.Get(customerID, params)
	if err != nil {
		metrics.BillingRequestObserved(op, "error", time.Since(start))
		return "", domain.Unavailable(err, op, "billing provider unavailable")
	}

	metrics.BillingRequestObserved(op, "ok", time.Since(start))
	return c.Email, nil
}

func (s *stripeService) GetSubscriptionPriceID(ctx context.Context, subscriptionID string) (string, error) {
	const op = "billing.get_subscription"
	start := time.Now()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		metrics.BillingRequestObserved(op, "error", time.Since(start))
		return "", domain.Unavailable(err, op, "billing provider unavailable")
	}

	metrics.BillingRequestObserved(op, "ok", time.Since(start))
	return firstPriceID(sub), nil
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	const op = "billing.create_checkout_session"
	start := time.Now()

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(p.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.Name != "" {
		params.AddMetadata(MetadataKeyName, p.Name)
	}
	if p.PendingCredential != "" {
		params.AddMetadata(MetadataKeyCredential, p.PendingCredential)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		metrics.BillingRequestObserved(op, "error", time.Since(start))
		return "", domain.Unavailable(err, op, "failed to create checkout session")
	}

	metrics.BillingRequestObserved(op, "ok", time.Since(start))
	return sess.URL, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	const op = "billing.verify_webhook"

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, domain.Wrap(err, domain.EUNAUTHORIZED, op, "stripe webhook signature verification failed")
	}
	return event, nil
}
