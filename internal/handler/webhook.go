// Package handler contains HTTP handlers for the portfolio builder API.
//
// This file implements the Stripe webhook handler for processing billing events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/folio/internal/billing"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/service"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBytes caps webhook payloads.
const maxWebhookBytes = 65536

// PaymentConfirmer applies confirmed payments. Implemented by *service.ProvisioningCoordinator.
type PaymentConfirmer interface {
	OnPaymentConfirmed(ctx context.Context, c domain.PaymentConfirmation) error
	RecordUnreadableEvent(ctx context.Context, eventID string, cause error) error
}

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing    billing.Service
	payments   PaymentConfirmer
	reconciler service.Reconciler
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, payments PaymentConfirmer, reconciler service.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:    billingService,
		payments:   payments,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC, no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// A non-2xx response asks Stripe to redeliver, so only transient failures
// return 500. Events that can never be applied are recorded and acknowledged.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(r.Context(), event)
	case "customer.subscription.updated", "customer.subscription.deleted":
		err = h.handleSubscriptionChanged(r.Context(), event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("webhook event not applied, requesting redelivery",
			"type", event.Type, "id", event.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err, "event_id", event.ID)
		return h.payments.RecordUnreadableEvent(ctx, event.ID, err)
	}

	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Subscription == nil {
		h.logger.Debug("ignoring non-subscription checkout", "session_id", session.ID)
		return nil
	}

	email := session.CustomerEmail
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = session.CustomerDetails.Email
	}

	priceID, err := h.billing.GetSubscriptionPriceID(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}

	confirmation := domain.PaymentConfirmation{
		EventID:           event.ID,
		Identity:          email,
		Name:              session.Metadata[billing.MetadataKeyName],
		PlanIdentifier:    priceID,
		PendingCredential: session.Metadata[billing.MetadataKeyCredential],
	}

	err = h.payments.OnPaymentConfirmed(ctx, confirmation)
	switch domain.ErrorCode(err) {
	case "":
		return nil
	case domain.EUNPROCESSABLE:
		// Recorded for operator review; redelivery cannot succeed.
		h.logger.Warn("payment confirmation not applied", "event_id", event.ID, "error", err)
		return nil
	default:
		return err
	}
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "event_id", event.ID)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return nil
	}

	email := sub.Customer.Email
	if email == "" {
		var err error
		email, err = h.billing.GetCustomerEmail(ctx, sub.Customer.ID)
		if err != nil {
			return err
		}
	}

	result := h.reconciler.ReconcileOne(ctx, email, service.TriggerWebhook)
	if result.IsFailed() && result.Reason != service.ReasonNoSuchAccount {
		return domain.Unavailable(nil, "webhook.subscription_changed", result.Reason)
	}

	h.logger.Info("subscription event processed",
		"event_id", event.ID,
		"subscription_id", sub.ID,
		"email", result.Identity,
		"outcome", result.Outcome,
	)
	return nil
}
