// Package middleware contains HTTP middleware for the portfolio builder API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/DukeRupert/folio/internal/handler"
)

// Authenticator resolves a bearer token to the current stored account.
// Implemented by service.AccountService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Account, error)
}

// AuthMiddleware provides authentication middleware functionality.
//
// Create one instance and use its methods as middleware.
type AuthMiddleware struct {
	accounts Authenticator
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(accounts Authenticator, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		accounts: accounts,
		logger:   logger,
	}
}

// WithAccount loads the account named by the Authorization bearer token and
// stores it in the request context. It always calls the next handler; a
// missing or invalid token leaves the request anonymous.
//
// The account is re-read on every request, so a tier changed by
// reconciliation or a webhook applies to the very next request.
func (m *AuthMiddleware) WithAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		account, err := m.accounts.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.Debug("bearer token rejected", "error", err, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetAccount(r.Context(), account)))
	})
}

// RequireAccount returns 401 unless WithAccount stored an account.
//
// IMPORTANT: This middleware must be used AFTER WithAccount in the middleware chain.
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetAccountFromRequest(r) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin returns 401 for anonymous requests and 403 for non-admin accounts.
// Role and tier are independent; a Premium account is not an admin.
//
// IMPORTANT: Use this AFTER WithAccount in the middleware chain.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := auth.GetAccountFromRequest(r)
		if account == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		if !account.IsAdmin() {
			m.logger.Warn("admin route denied", "email", account.Email, "path", r.URL.Path)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(authMw.WithAccount, authMw.RequireAccount)
//	mux.Handle("GET /api/me", stack(meHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Ensure middleware functions have correct signature
var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithAccount
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAccount
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireAdmin
)
