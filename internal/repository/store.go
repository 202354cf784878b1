// Package repository persists accounts, catalog content, and payment event failures in Postgres.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/DukeRupert/folio/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed account and catalog store.
type Store struct {
	db DBTX
}

// New creates a Store over the given connection or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const accountColumns = `id, email, name, password_hash, tier, role, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var (
		a        domain.Account
		password sql.NullString
		tier     string
		role     string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &password, &tier, &role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PasswordHash = password.String
	a.Tier = domain.Tier(tier)
	a.Role = domain.Role(role)
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FindAccount returns the account for an identity or ENOTFOUND.
func (s *Store) FindAccount(ctx context.Context, email string) (*domain.Account, error) {
	const op = "repository.find_account"

	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "account", email)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load account")
	}
	return account, nil
}

// CreateAccount inserts the account unless one already exists for its email.
// It reports whether a row was created. On success ID and timestamps are filled in.
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) (bool, error) {
	const op = "repository.create_account"

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, name, password_hash, tier, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at, updated_at`,
		account.ID, account.Email, account.Name, nullString(account.PasswordHash),
		string(account.Tier), string(account.Role),
	)

	err := row.Scan(&account.CreatedAt, &account.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case isUniqueViolation(err):
		// id collision; email conflicts are absorbed by ON CONFLICT
		return false, domain.Conflict(op, "account already exists")
	case err != nil:
		return false, domain.Internal(err, op, "failed to create account")
	}
	return true, nil
}

// UpdateAccountTier overwrites the stored tier of an identity.
func (s *Store) UpdateAccountTier(ctx context.Context, email string, tier domain.Tier) error {
	const op = "repository.update_account_tier"

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET tier = $2, updated_at = now() WHERE email = $1`, email, string(tier))
	if err != nil {
		return domain.Internal(err, op, "failed to update tier")
	}
	return requireAffected(res, op, email)
}

// UpdateAccountRole overwrites the stored role of an identity.
func (s *Store) UpdateAccountRole(ctx context.Context, email string, role domain.Role) error {
	const op = "repository.update_account_role"

	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET role = $2, updated_at = now() WHERE email = $1`, email, string(role))
	if err != nil {
		return domain.Internal(err, op, "failed to update role")
	}
	return requireAffected(res, op, email)
}

func requireAffected(res sql.Result, op, email string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Internal(err, op, "failed to read affected rows")
	}
	if n == 0 {
		return domain.NotFound(op, "account", email)
	}
	return nil
}

// ListIdentities returns every account email, oldest first.
func (s *Store) ListIdentities(ctx context.Context) ([]string, error) {
	const op = "repository.list_identities"

	rows, err := s.db.QueryContext(ctx, `SELECT email FROM accounts ORDER BY created_at, email`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list accounts")
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, domain.Internal(err, op, "failed to scan account")
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list accounts")
	}
	return emails, nil
}

// CountCategories returns how many categories the identity owns.
func (s *Store) CountCategories(ctx context.Context, email string) (int64, error) {
	const op = "repository.count_categories"

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE owner_email = $1`, email).Scan(&n)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count categories")
	}
	return n, nil
}

// CountProjects returns how many projects the identity owns within one category.
func (s *Store) CountProjects(ctx context.Context, email string, categoryID uuid.UUID) (int64, error) {
	const op = "repository.count_projects"

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner_email = $1 AND category_id = $2`, email, categoryID).Scan(&n)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count projects")
	}
	return n, nil
}

// CreateCategory inserts a category owned by email.
func (s *Store) CreateCategory(ctx context.Context, email string, params domain.CreateCategoryParams) (*domain.Category, error) {
	const op = "repository.create_category"

	c := &domain.Category{
		ID:          uuid.New(),
		OwnerEmail:  email,
		Name:        params.Name,
		Description: params.Description,
		Icon:        params.Icon,
		Position:    params.Position,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, owner_email, name, description, icon, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.ID, c.OwnerEmail, c.Name, c.Description, c.Icon, c.Position,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create category")
	}
	return c, nil
}

// CreateProject inserts a project into a category owned by email.
// Returns ENOTFOUND when the category does not exist or belongs to someone else.
func (s *Store) CreateProject(ctx context.Context, email string, params domain.CreateProjectParams) (*domain.Project, error) {
	const op = "repository.create_project"

	p := &domain.Project{
		ID:          uuid.New(),
		OwnerEmail:  email,
		CategoryID:  params.CategoryID,
		Title:       params.Title,
		Description: params.Description,
		ImageURL:    params.ImageURL,
		LiveURL:     params.LiveURL,
		RepoURL:     params.RepoURL,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, owner_email, category_id, title, description, image_url, live_url, repo_url)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM categories WHERE id = $3 AND owner_email = $2)
		RETURNING created_at`,
		p.ID, p.OwnerEmail, p.CategoryID, p.Title, p.Description, p.ImageURL, p.LiveURL, p.RepoURL,
	).Scan(&p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound(op, "category", params.CategoryID.String())
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create project")
	}
	return p, nil
}

// RecordPaymentEventFailure stores a confirmed payment that could not be applied.
// A redelivered event whose id is already recorded is a no-op.
func (s *Store) RecordPaymentEventFailure(ctx context.Context, f domain.PaymentEventFailure) error {
	const op = "repository.record_payment_event_failure"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_event_failures (event_id, email, plan_id, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		f.EventID, f.Identity, f.PlanIdentifier, f.Reason,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to record payment event failure")
	}
	return nil
}

// ListPaymentEventFailures returns the most recent failures, newest first.
func (s *Store) ListPaymentEventFailures(ctx context.Context, limit int) ([]domain.PaymentEventFailure, error) {
	const op = "repository.list_payment_event_failures"

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, email, plan_id, reason, created_at
		FROM payment_event_failures
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list payment event failures")
	}
	defer rows.Close()

	failures := []domain.PaymentEventFailure{}
	for rows.Next() {
		var f domain.PaymentEventFailure
		if err := rows.Scan(&f.EventID, &f.Identity, &f.PlanIdentifier, &f.Reason, &f.CreatedAt); err != nil {
			return nil, domain.Internal(err, op, "failed to scan payment event failure")
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list payment event failures")
	}
	return failures, nil
}
