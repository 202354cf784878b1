// Package auth provides authentication context helpers and bearer token issuance.
//
// This package is imported by both middleware and handler packages without
// causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/folio/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const accountContextKey contextKey = "account"

// GetAccount retrieves the authenticated account from the context.
//
// Returns nil if no account is authenticated.
func GetAccount(ctx context.Context) *domain.Account {
	account, ok := ctx.Value(accountContextKey).(*domain.Account)
	if !ok {
		return nil
	}
	return account
}

// GetAccountFromRequest is a convenience wrapper around GetAccount.
func GetAccountFromRequest(r *http.Request) *domain.Account {
	return GetAccount(r.Context())
}

// SetAccount stores an account in the context.
func SetAccount(ctx context.Context, account *domain.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
