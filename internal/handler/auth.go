// Package handler contains HTTP handlers for the portfolio builder API.
//
// This file implements account registration, credential sign-in, and the
// current-account view.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/service"
)

// AuthHandler handles authentication-related HTTP requests.
//
// Routes handled:
// - POST /api/auth/register    -> Register
// - POST /api/auth/login       -> Login
// - GET  /api/auth/check-email -> CheckEmail
// - GET  /api/me               -> Me
type AuthHandler struct {
	accounts service.AccountService
	logins   LoginLimitResetter
	logger   *slog.Logger
}

// LoginLimitResetter clears sign-in rate limiting for the client behind r.
// Implemented by *middleware.EndpointRateLimiter.
type LoginLimitResetter interface {
	ResetLogin(r *http.Request)
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts service.AccountService, logins LoginLimitResetter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logins:   logins,
		logger:   logger,
	}
}

// RegisterRoutes registers auth routes. The limit middleware wrap the
// unauthenticated routes; check-email shares the registration budget.
// requireAccount wraps the rest.
func (h *AuthHandler) RegisterRoutes(
	mux *http.ServeMux,
	limitRegister func(http.Handler) http.Handler,
	limitLogin func(http.Handler) http.Handler,
	requireAccount func(http.Handler) http.Handler,
) {
	mux.Handle("POST /api/auth/register", limitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(h.Login)))
	mux.Handle("GET /api/auth/check-email", limitRegister(http.HandlerFunc(h.CheckEmail)))
	mux.Handle("GET /api/me", requireAccount(http.HandlerFunc(h.Me)))
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates a Free account and signs it in.
//
// Responses:
// - 201: LoginResponse
// - 400: validation failure
// - 409: email already registered
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handler.register"

	var req registerRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if _, err := h.accounts.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// A checkout may have completed before registration, so sign in through
	// the same path as Login to pick up the reconciled tier.
	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newLoginResponse(result))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// Login verifies a credential and returns a bearer token.
//
// Responses:
// - 200: LoginResponse
// - 400: validation failure
// - 401: invalid credentials
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handler.login"

	var req loginRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logins.ResetLogin(r)

	if result.Reconciliation.IsFailed() {
		h.logger.Warn("sign-in proceeded with stored tier",
			"email", result.Account.Email,
			"tier", result.Account.Tier,
			"reason", result.Reconciliation.Reason,
		)
	}

	writeJSON(w, http.StatusOK, newLoginResponse(result))
}

type checkEmailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type checkEmailResponse struct {
	Exists bool `json:"exists"`
}

// CheckEmail reports whether an account exists for ?email=, so checkout can
// decide whether to ask for a password.
//
// Responses:
// - 200: {"exists": bool}
// - 400: missing or malformed email
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	const op = "handler.check_email"

	req := checkEmailRequest{Email: r.URL.Query().Get("email")}
	if err := validateStruct(op, req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	_, err := h.accounts.GetByEmail(r.Context(), req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, checkEmailResponse{Exists: true})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusOK, checkEmailResponse{Exists: false})
	default:
		ErrorResponse(w, r, h.logger, err)
	}
}

// Me returns the signed-in account with its tier quotas.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccountFromRequest(r)
	if account == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}
