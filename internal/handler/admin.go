package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/service"
)

// BatchReconciler reconciles every account. Implemented by *service.ReconciliationEngine.
type BatchReconciler interface {
	ReconcileAll(ctx context.Context) (*domain.BatchVerificationReport, error)
}

// PaymentFailureLister lists recorded inconsistent payment events.
// Implemented by *service.ProvisioningCoordinator.
type PaymentFailureLister interface {
	ListPaymentEventFailures(ctx context.Context, limit int) ([]domain.PaymentEventFailure, error)
}

// AdminHandler handles administrative HTTP requests.
type AdminHandler struct {
	reconciler BatchReconciler
	accounts   service.AccountService
	failures   PaymentFailureLister
	logger     *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reconciler BatchReconciler, accounts service.AccountService, failures PaymentFailureLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		reconciler: reconciler,
		accounts:   accounts,
		failures:   failures,
		logger:     logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireAdmin func(http.Handler) http.Handler,
) {
	mux.Handle("POST /admin/subscriptions/verify", requireAdmin(http.HandlerFunc(h.VerifySubscriptions)))
	mux.Handle("PUT /admin/accounts/{email}/tier", requireAdmin(http.HandlerFunc(h.SetTier)))
	mux.Handle("PUT /admin/accounts/{email}/role", requireAdmin(http.HandlerFunc(h.SetRole)))
	mux.Handle("GET /admin/payment-failures", requireAdmin(http.HandlerFunc(h.PaymentFailures)))
}

type verifyResponse struct {
	Message string `json:"message"`
	*domain.BatchVerificationReport
}

// VerifySubscriptions reconciles every account against the billing provider.
// Per-account failures appear in the report; only a failure to list accounts
// fails the request.
func (h *AdminHandler) VerifySubscriptions(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.ReconcileAll(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("subscription verification requested",
		"admin", actor(r),
		"total", report.Total(),
		"updated", report.Updated,
		"failed", report.Failed,
	)

	writeJSON(w, http.StatusOK, verifyResponse{
		Message:                 "Verified " + strconv.Itoa(report.Total()) + " subscriptions",
		BatchVerificationReport: report,
	})
}

type setTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free paid premium"`
}

// SetTier overrides an account's tier without consulting the billing provider.
func (h *AdminHandler) SetTier(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_set_tier"

	var req setTierRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.OverrideTier(r.Context(), r.PathValue("email"), domain.Tier(req.Tier))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("tier overridden",
		"admin", actor(r),
		"email", account.Email,
		"tier", account.Tier,
	)
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// SetRole changes an account's authorization role.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_set_role"

	var req setRoleRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.OverrideRole(r.Context(), r.PathValue("email"), domain.Role(req.Role))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("role overridden",
		"admin", actor(r),
		"email", account.Email,
		"role", account.Role,
	)
	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

type paymentFailureResponse struct {
	EventID        string    `json:"event_id"`
	Email          string    `json:"email"`
	PlanIdentifier string    `json:"plan"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentFailures lists confirmed payments that could not be applied,
// newest first. The optional limit query parameter caps the result.
func (h *AdminHandler) PaymentFailures(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_payment_failures"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	failures, err := h.failures.ListPaymentEventFailures(r.Context(), limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]paymentFailureResponse, 0, len(failures))
	for _, f := range failures {
		resp = append(resp, paymentFailureResponse{
			EventID:        f.EventID,
			Email:          f.Identity,
			PlanIdentifier: f.PlanIdentifier,
			Reason:         f.Reason,
			CreatedAt:      f.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// actor returns the email of the signed-in admin for audit logs.
func actor(r *http.Request) string {
	if a := auth.GetAccountFromRequest(r); a != nil {
		return a.Email
	}
	return ""
}
