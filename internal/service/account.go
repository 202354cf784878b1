package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/DukeRupert/folio/internal/domain"
)

// dummyHash is compared against when no account matches, to keep sign-in timing uniform.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// =============================================================================
// Interface Definition
// =============================================================================

// AccountService defines account lifecycle and sign-in operations.
type AccountService interface {
	// Register creates a Free account with a credential.
	// Returns domain.ECONFLICT if the email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error)

	// Login verifies the credential, reconciles the tier inline, and issues a token.
	// A failed reconciliation does not fail the sign-in; the stored tier is used.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// ExternalSignIn signs in an identity already authenticated by an external
	// provider, creating the account on first sign-in.
	ExternalSignIn(ctx context.Context, params domain.ExternalSignInParams) (*domain.LoginResult, error)

	// Authenticate resolves a bearer token to the current stored account.
	// Returns domain.EUNAUTHORIZED if the token is invalid or the account is gone.
	Authenticate(ctx context.Context, token string) (*domain.Account, error)

	// GetByEmail returns domain.ENOTFOUND if the account does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// OverrideTier sets a tier without consulting the billing provider.
	// The next reconciliation may overwrite it.
	OverrideTier(ctx context.Context, email string, tier domain.Tier) (*domain.Account, error)

	// OverrideRole sets the authorization role of an account.
	OverrideRole(ctx context.Context, email string, role domain.Role) (*domain.Account, error)
}

// Reconciler reconciles a single identity. Implemented by *ReconciliationEngine.
type Reconciler interface {
	ReconcileOne(ctx context.Context, identity, trigger string) domain.VerificationResult
}

// TokenIssuer issues and verifies bearer tokens. Implemented by *auth.TokenIssuer.
type TokenIssuer interface {
	Issue(email string) (string, error)
	Verify(token string) (string, error)
}

// =============================================================================
// Implementation
// =============================================================================

type accountService struct {
	accounts    AccountStore
	reconciler  Reconciler
	hasher      CredentialHasher
	tokens      TokenIssuer
	locker      *IdentityLocker
	adminEmails map[string]struct{}
	logger      *slog.Logger
}

// NewAccountService creates a new AccountService.
//
// Accounts created for any of adminEmails are given the admin role.
func NewAccountService(
	accounts AccountStore,
	reconciler Reconciler,
	hasher CredentialHasher,
	tokens TokenIssuer,
	locker *IdentityLocker,
	adminEmails []string,
	logger *slog.Logger,
) AccountService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = domain.NormalizeIdentity(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &accountService{
		accounts:    accounts,
		reconciler:  reconciler,
		hasher:      hasher,
		tokens:      tokens,
		locker:      locker,
		adminEmails: admins,
		logger:      logger,
	}
}

func (s *accountService) roleFor(email string) domain.Role {
	if _, ok := s.adminEmails[email]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

func (s *accountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error) {
	const op = "account.register"

	email := domain.NormalizeIdentity(params.Email)
	name := strings.TrimSpace(params.Name)

	if err := validateEmail(op, email); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if err := validatePassword(op, params.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	account := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Tier:         domain.TierFree,
		Role:         s.roleFor(email),
	}
	created, err := s.accounts.CreateAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.Conflict(op, "Email already registered")
	}

	s.logger.Info("account registered", "email", email)

	account.PasswordHash = ""
	return account, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "account.login"

	email = domain.NormalizeIdentity(email)

	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			s.hasher.Compare(dummyHash, password)
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, err
	}

	if !account.HasPassword() || !s.hasher.Compare(account.PasswordHash, password) {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	return s.signIn(ctx, account, TriggerSignIn)
}

func (s *accountService) ExternalSignIn(ctx context.Context, params domain.ExternalSignInParams) (*domain.LoginResult, error) {
	const op = "account.external_sign_in"

	email := domain.NormalizeIdentity(params.Email)
	if err := validateEmail(op, email); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	if account == nil {
		account = &domain.Account{
			Email: email,
			Name:  defaultName(params.Name, email),
			Tier:  domain.TierFree,
			Role:  s.roleFor(email),
		}
		created, err := s.accounts.CreateAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Info("account created from external sign-in", "email", email)
		} else if account, err = s.accounts.FindAccount(ctx, email); err != nil {
			return nil, err
		}
	}

	// A new account starts at Free and is raised by the inline reconciliation.
	return s.signIn(ctx, account, TriggerExternalSignIn)
}

// signIn reconciles inline and issues a token. Reconciliation failure is
// logged by the engine and the stored tier stands.
func (s *accountService) signIn(ctx context.Context, account *domain.Account, trigger string) (*domain.LoginResult, error) {
	const op = "account.sign_in"

	result := s.reconciler.ReconcileOne(ctx, account.Email, trigger)
	if result.Outcome == domain.OutcomeUpdated {
		account.Tier = result.NewTier
	}

	token, err := s.tokens.Issue(account.Email)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINTERNAL, op, "Failed to issue token")
	}

	s.logger.Info("signed in",
		"email", account.Email,
		"tier", account.Tier,
		"reconciliation", result.Outcome,
	)

	account.PasswordHash = ""
	return &domain.LoginResult{
		Account:        account,
		Token:          token,
		Reconciliation: result,
	}, nil
}

func (s *accountService) Authenticate(ctx context.Context, token string) (*domain.Account, error) {
	const op = "account.authenticate"

	email, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.Unauthorized(op, "Account no longer exists")
		}
		return nil, err
	}
	return account, nil
}

func (s *accountService) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.accounts.FindAccount(ctx, domain.NormalizeIdentity(email))
}

func (s *accountService) OverrideTier(ctx context.Context, email string, tier domain.Tier) (*domain.Account, error) {
	const op = "account.override_tier"

	if !tier.Valid() {
		return nil, domain.Invalid(op, "Unknown tier")
	}

	email = domain.NormalizeIdentity(email)
	unlock, err := s.locker.Lock(ctx, email)
	if err != nil {
		return nil, domain.Wrap(err, domain.EUNAVAILABLE, op, "request canceled")
	}
	defer unlock()

	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateAccountTier(ctx, email, tier); err != nil {
		return nil, err
	}

	s.logger.Warn("tier overridden by admin",
		"email", email,
		"old_tier", account.Tier,
		"new_tier", tier,
	)
	account.Tier = tier
	return account, nil
}

func (s *accountService) OverrideRole(ctx context.Context, email string, role domain.Role) (*domain.Account, error) {
	const op = "account.override_role"

	if !role.Valid() {
		return nil, domain.Invalid(op, "Unknown role")
	}

	email = domain.NormalizeIdentity(email)
	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateAccountRole(ctx, email, role); err != nil {
		return nil, err
	}

	s.logger.Warn("role overridden by admin",
		"email", email,
		"old_role", account.Role,
		"new_role", role,
	)
	account.Role = role
	return account, nil
}

// validateEmail performs a basic shape check: one @ and a dotted domain.
func validateEmail(op, email string) error {
	if email == "" {
		return domain.Invalid(op, "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid(op, "Email must be 254 characters or less")
	}
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(host, "@") {
		return domain.Invalid(op, "Email must contain exactly one @ symbol")
	}
	if dot := strings.LastIndex(host, "."); dot <= 0 || dot == len(host)-1 {
		return domain.Invalid(op, "Email domain is invalid")
	}
	return nil
}
