package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/DukeRupert/folio/internal/auth"
	"github.com/DukeRupert/folio/internal/billing"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// =============================================================================
// Mock AccountService Implementation
// =============================================================================

// mockAccountService implements the service.AccountService interface for testing.
type mockAccountService struct {
	RegisterFunc       func(ctx context.Context, params domain.RegisterParams) (*domain.Account, error)
	LoginFunc          func(ctx context.Context, email, password string) (*domain.LoginResult, error)
	ExternalSignInFunc func(ctx context.Context, params domain.ExternalSignInParams) (*domain.LoginResult, error)
	AuthenticateFunc   func(ctx context.Context, token string) (*domain.Account, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*domain.Account, error)
	OverrideTierFunc   func(ctx context.Context, email string, tier domain.Tier) (*domain.Account, error)
	OverrideRoleFunc   func(ctx context.Context, email string, role domain.Role) (*domain.Account, error)
}

func (m *mockAccountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, errors.New("RegisterFunc not implemented")
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, errors.New("LoginFunc not implemented")
}

func (m *mockAccountService) ExternalSignIn(ctx context.Context, params domain.ExternalSignInParams) (*domain.LoginResult, error) {
	if m.ExternalSignInFunc != nil {
		return m.ExternalSignInFunc(ctx, params)
	}
	return nil, errors.New("ExternalSignInFunc not implemented")
}

func (m *mockAccountService) Authenticate(ctx context.Context, token string) (*domain.Account, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, token)
	}
	return nil, errors.New("AuthenticateFunc not implemented")
}

func (m *mockAccountService) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, errors.New("GetByEmailFunc not implemented")
}

func (m *mockAccountService) OverrideTier(ctx context.Context, email string, tier domain.Tier) (*domain.Account, error) {
	if m.OverrideTierFunc != nil {
		return m.OverrideTierFunc(ctx, email, tier)
	}
	return nil, errors.New("OverrideTierFunc not implemented")
}

func (m *mockAccountService) OverrideRole(ctx context.Context, email string, role domain.Role) (*domain.Account, error) {
	if m.OverrideRoleFunc != nil {
		return m.OverrideRoleFunc(ctx, email, role)
	}
	return nil, errors.New("OverrideRoleFunc not implemented")
}

// =============================================================================
// Mock billing.Service Implementation
// =============================================================================

type mockBilling struct {
	GetActiveSubscriptionFunc  func(ctx context.Context, email string) (*domain.BillingRecord, error)
	GetCustomerEmailFunc       func(ctx context.Context, customerID string) (string, error)
	GetSubscriptionPriceIDFunc func(ctx context.Context, subscriptionID string) (string, error)
	CreateCheckoutSessionFunc  func(ctx context.Context, params billing.CheckoutParams) (string, error)
	VerifyWebhookSignatureFunc func(payload []byte, signature string) (stripe.Event, error)
}

func (m *mockBilling) GetActiveSubscription(ctx context.Context, email string) (*domain.BillingRecord, error) {
	if m.GetActiveSubscriptionFunc != nil {
		return m.GetActiveSubscriptionFunc(ctx, email)
	}
	return nil, errors.New("GetActiveSubscriptionFunc not implemented")
}

func (m *mockBilling) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	if m.GetCustomerEmailFunc != nil {
		return m.GetCustomerEmailFunc(ctx, customerID)
	}
	return "", errors.New("GetCustomerEmailFunc not implemented")
}

func (m *mockBilling) GetSubscriptionPriceID(ctx context.Context, subscriptionID string) (string, error) {
	if m.GetSubscriptionPriceIDFunc != nil {
		return m.GetSubscriptionPriceIDFunc(ctx, subscriptionID)
	}
	return "", errors.New("GetSubscriptionPriceIDFunc not implemented")
}

func (m *mockBilling) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (string, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	return "", errors.New("CreateCheckoutSessionFunc not implemented")
}

func (m *mockBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature)
	}
	return stripe.Event{}, errors.New("VerifyWebhookSignatureFunc not implemented")
}

// =============================================================================
// Helpers
// =============================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAccount(email string, tier domain.Tier, role domain.Role) *domain.Account {
	return &domain.Account{
		ID:        uuid.New(),
		Email:     email,
		Name:      "Test",
		Tier:      tier,
		Role:      role,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// withAccount attaches account to the request as the auth middleware would.
func withAccount(r *http.Request, account *domain.Account) *http.Request {
	return r.WithContext(auth.SetAccount(r.Context(), account))
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// passthrough stands in for middleware in RegisterRoutes tests.
func passthrough(next http.Handler) http.Handler {
	return next
}

type mockLoginResets struct {
	calls int
}

func (m *mockLoginResets) ResetLogin(*http.Request) {
	m.calls++
}
