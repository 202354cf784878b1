// Package handler contains HTTP handlers for the portfolio builder API.
//
// This file implements subscription checkout backed by Stripe.
//
// Routes handled:
//   - POST /api/checkout -> CreateCheckout
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/billing"
	"github.com/DukeRupert/folio/internal/domain"
)

// Plan names accepted at checkout.
const (
	PlanPaid    = "paid"
	PlanPremium = "premium"
)

// BillingHandler handles subscription checkout HTTP requests.
type BillingHandler struct {
	billing billing.Service
	baseURL string
	prices  billing.PriceConfig
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, baseURL string, prices billing.PriceConfig, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billingService,
		baseURL: baseURL,
		prices:  prices,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux. Checkout is
// open to visitors; withAccount attaches the account when a token is sent.
func (h *BillingHandler) RegisterRoutes(
	mux *http.ServeMux,
	limit func(http.Handler) http.Handler,
	withAccount func(http.Handler) http.Handler,
) {
	mux.Handle("POST /api/checkout", limit(withAccount(http.HandlerFunc(h.CreateCheckout))))
}

type checkoutRequest struct {
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Name     string `json:"name" validate:"max=100"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
	Plan     string `json:"plan" validate:"required,oneof=paid premium"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// CreateCheckout starts a subscription checkout and returns the provider URL.
//
// A visitor may pass a password; the account is then created with it when
// the payment is confirmed. A signed-in account always checks out as itself.
//
// Responses:
// - 200: {"url": ...}
// - 400: validation failure
// - 503: billing not configured or provider unavailable
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_checkout"

	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "Billing is not configured"))
		return
	}

	var req checkoutRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	account := auth.GetAccountFromRequest(r)
	if account == nil && req.Email == "" {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "email", "is required"))
		return
	}

	priceID := h.priceFor(req.Plan)
	if priceID == "" {
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "Plan is not available"))
		return
	}

	params := billing.CheckoutParams{
		Email:             domain.NormalizeIdentity(req.Email),
		Name:              req.Name,
		PendingCredential: req.Password,
		PriceID:           priceID,
		SuccessURL:        h.baseURL + "/welcome?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         h.baseURL + "/pricing",
	}
	if account != nil {
		params.Email = account.Email
		params.Name = account.DisplayName()
		params.PendingCredential = ""
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("checkout session created", "email", params.Email, "plan", req.Plan)
	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

func (h *BillingHandler) priceFor(plan string) string {
	switch plan {
	case PlanPaid:
		return h.prices.PaidPriceID
	case PlanPremium:
		return h.prices.PremiumPriceID
	default:
		return ""
	}
}
