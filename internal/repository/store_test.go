package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return New(db), mock
}

var accountRowColumns = []string{"id", "email", "name", "password_hash", "tier", "role", "created_at", "updated_at"}

func TestFindAccount(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email = $1")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).
			AddRow(id, "ana@example.com", "Ana", nil, "paid", "user", now, now))

	account, err := store.FindAccount(t.Context(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Equal(t, domain.TierPaid, account.Tier)
	assert.Equal(t, domain.RoleUser, account.Role)
	assert.False(t, account.HasPassword())
}

func TestFindAccount_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE email = $1")).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindAccount(t.Context(), "ghost@example.com")
	assert.True(t, domain.IsNotFound(err))
}

func TestFindAccount_DatabaseError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts")).
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindAccount(t.Context(), "ana@example.com")
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestCreateAccount_Created(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "ana@example.com", "Ana", "hash", "premium", "user").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	account := &domain.Account{Email: "ana@example.com", Name: "Ana", PasswordHash: "hash", Tier: domain.TierPremium, Role: domain.RoleUser}
	created, err := store.CreateAccount(t.Context(), account)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.Equal(t, now, account.CreatedAt)
}

func TestCreateAccount_ExistingIdentityIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "ana@example.com", "", nil, "free", "user").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

	created, err := store.CreateAccount(t.Context(), &domain.Account{Email: "ana@example.com", Tier: domain.TierFree, Role: domain.RoleUser})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateAccount_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.CreateAccount(t.Context(), &domain.Account{Email: "ana@example.com", Tier: domain.TierFree, Role: domain.RoleUser})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestUpdateAccountTier(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET tier = $2")).
		WithArgs("ana@example.com", "premium").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateAccountTier(t.Context(), "ana@example.com", domain.TierPremium))
}

func TestUpdateAccountTier_Missing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET tier = $2")).
		WithArgs("ghost@example.com", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateAccountTier(t.Context(), "ghost@example.com", domain.TierPaid)
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdateAccountRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET role = $2")).
		WithArgs("ana@example.com", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateAccountRole(t.Context(), "ana@example.com", domain.RoleAdmin))
}

func TestListIdentities(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email FROM accounts ORDER BY created_at, email")).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("a@example.com").AddRow("b@example.com"))

	emails, err := store.ListIdentities(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, emails)
}

func TestCountCategoriesAndProjects(t *testing.T) {
	store, mock := newMockStore(t)
	categoryID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM categories WHERE owner_email = $1")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM projects WHERE owner_email = $1 AND category_id = $2")).
		WithArgs("ana@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	categories, err := store.CountCategories(t.Context(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), categories)

	projects, err := store.CountProjects(t.Context(), "ana@example.com", categoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), projects)
}

func TestCreateCategory(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO categories")).
		WithArgs(sqlmock.AnyArg(), "ana@example.com", "Web", "Sites", "Globe", 1).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	c, err := store.CreateCategory(t.Context(), "ana@example.com", domain.CreateCategoryParams{
		Name: "Web", Description: "Sites", Icon: "Globe", Position: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c.OwnerEmail)
	assert.Equal(t, now, c.CreatedAt)
}

func TestCreateProject_ForeignCategory(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE EXISTS (SELECT 1 FROM categories WHERE id = $3 AND owner_email = $2)")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	_, err := store.CreateProject(t.Context(), "ana@example.com", domain.CreateProjectParams{
		CategoryID: uuid.New(), Title: "Site", Description: "A site",
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestRecordAndListPaymentEventFailures(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payment_event_failures")).
		WithArgs("evt_1", "ana@example.com", "price_unknown", "unrecognized plan").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_event_failures")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "email", "plan_id", "reason", "created_at"}).
			AddRow("evt_1", "ana@example.com", "price_unknown", "unrecognized plan", now))

	require.NoError(t, store.RecordPaymentEventFailure(t.Context(), domain.PaymentEventFailure{
		EventID: "evt_1", Identity: "ana@example.com", PlanIdentifier: "price_unknown", Reason: "unrecognized plan",
	}))

	failures, err := store.ListPaymentEventFailures(t.Context(), 50)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "evt_1", failures[0].EventID)
}

func TestRecordPaymentEventFailure_RedeliveryIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
		WithArgs("evt_1", "", "price_paid", "payment confirmed without a customer email").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RecordPaymentEventFailure(t.Context(), domain.PaymentEventFailure{
		EventID: "evt_1", PlanIdentifier: "price_paid", Reason: "payment confirmed without a customer email",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
