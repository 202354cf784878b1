package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/folio/internal/billing"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
)

const (
	testPaidPrice    = "price_paid"
	testPremiumPrice = "price_premium"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPolicy() *billing.Policy {
	return billing.NewPolicy(billing.PriceConfig{
		PaidPriceID:    testPaidPrice,
		PremiumPriceID: testPremiumPrice,
	}, newTestLogger())
}

// =============================================================================
// In-memory store
// =============================================================================

type memStore struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	order      []string
	categories map[string]int64
	projects   map[string]map[uuid.UUID]int64
	failures   []domain.PaymentEventFailure
	tierWrites int

	findErr     error
	updateErr   error
	createDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		accounts:   make(map[string]*domain.Account),
		categories: make(map[string]int64),
		projects:   make(map[string]map[uuid.UUID]int64),
	}
}

func (s *memStore) seed(email string, tier domain.Tier) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &domain.Account{ID: uuid.New(), Email: email, Name: email, Tier: tier, Role: domain.RoleUser}
	s.accounts[email] = a
	s.order = append(s.order, email)
	return a
}

func (s *memStore) tierOf(email string) domain.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[email].Tier
}

func (s *memStore) FindAccount(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	a, ok := s.accounts[email]
	if !ok {
		return nil, domain.NotFound("mem.find", "account", email)
	}
	found := *a
	return &found, nil
}

func (s *memStore) CreateAccount(_ context.Context, account *domain.Account) (bool, error) {
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Email]; ok {
		return false, nil
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	stored := *account
	s.accounts[account.Email] = &stored
	s.order = append(s.order, account.Email)
	return true, nil
}

func (s *memStore) UpdateAccountTier(_ context.Context, email string, tier domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	a, ok := s.accounts[email]
	if !ok {
		return domain.NotFound("mem.update_tier", "account", email)
	}
	a.Tier = tier
	s.tierWrites++
	return nil
}

func (s *memStore) UpdateAccountRole(_ context.Context, email string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[email]
	if !ok {
		return domain.NotFound("mem.update_role", "account", email)
	}
	a.Role = role
	return nil
}

func (s *memStore) ListIdentities(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *memStore) CountCategories(_ context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories[email], nil
}

func (s *memStore) CountProjects(_ context.Context, email string, categoryID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[email][categoryID], nil
}

func (s *memStore) CreateCategory(_ context.Context, email string, params domain.CreateCategoryParams) (*domain.Category, error) {
	// Widen the check-then-insert window so unsynchronized callers would race.
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories[email]++
	return &domain.Category{ID: uuid.New(), OwnerEmail: email, Name: params.Name, Icon: params.Icon}, nil
}

func (s *memStore) CreateProject(_ context.Context, email string, params domain.CreateProjectParams) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.projects[email] == nil {
		s.projects[email] = make(map[uuid.UUID]int64)
	}
	s.projects[email][params.CategoryID]++
	return &domain.Project{ID: uuid.New(), OwnerEmail: email, CategoryID: params.CategoryID, Title: params.Title}, nil
}

func (s *memStore) RecordPaymentEventFailure(_ context.Context, f domain.PaymentEventFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.failures {
		if f.EventID != "" && existing.EventID == f.EventID {
			return nil
		}
	}
	s.failures = append(s.failures, f)
	return nil
}

func (s *memStore) ListPaymentEventFailures(_ context.Context, limit int) ([]domain.PaymentEventFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.failures) {
		limit = len(s.failures)
	}
	return append([]domain.PaymentEventFailure(nil), s.failures[:limit]...), nil
}

// =============================================================================
// Fake billing provider
// =============================================================================

type fakeProvider struct {
	mu      sync.Mutex
	records map[string]*domain.BillingRecord
	errs    map[string]error
	hang    map[string]bool // block until the context is done
	calls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		records: make(map[string]*domain.BillingRecord),
		errs:    make(map[string]error),
		hang:    make(map[string]bool),
	}
}

func (p *fakeProvider) subscribe(email, priceID string, status domain.SubscriptionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[email] = &domain.BillingRecord{
		Identity:   email,
		CustomerID: "cus_" + email,
		ActiveSubscription: &domain.Subscription{
			ID:             "sub_" + email,
			PlanIdentifier: priceID,
			Status:         status,
		},
	}
}

func (p *fakeProvider) GetActiveSubscription(ctx context.Context, email string) (*domain.BillingRecord, error) {
	p.mu.Lock()
	p.calls++
	hang := p.hang[email]
	err := p.errs[email]
	record, ok := p.records[email]
	p.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, domain.Unavailable(ctx.Err(), "fake.get_active_subscription", "billing provider unavailable")
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &domain.BillingRecord{Identity: email}, nil
	}
	return record, nil
}

// =============================================================================
// Other fakes
// =============================================================================

// plainHasher marks hashes so tests can tell them from plaintext without bcrypt cost.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }
func (plainHasher) Compare(hash, secret string) bool   { return hash == "hashed:"+secret }

type fakeTokens struct{}

func (fakeTokens) Issue(email string) (string, error) { return "token:" + email, nil }
func (fakeTokens) Verify(token string) (string, error) {
	email, ok := strings.CutPrefix(token, "token:")
	if !ok {
		return "", domain.Unauthorized("fake.verify", "invalid token")
	}
	return email, nil
}

type recordingNotifier struct {
	mu          sync.Mutex
	provisioned []string
	changes     []string
}

func (n *recordingNotifier) AccountProvisioned(_ context.Context, account *domain.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.provisioned = append(n.provisioned, account.Email)
}

func (n *recordingNotifier) TierChanged(_ context.Context, email string, from, to domain.Tier) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, email+":"+string(from)+"->"+string(to))
}
