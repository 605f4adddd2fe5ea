package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"babyshop/internal/domain"
)

const accountColumns = `id, first_name, last_name, username, email, password_hash, is_active, last_login, created_at`

// AccountRepository implements domain.AccountRepository for PostgreSQL
type AccountRepository struct {
	db                *sql.DB
	createStmt        *sql.Stmt
	getByIDStmt       *sql.Stmt
	getByUsernameStmt *sql.Stmt
	getByEmailStmt    *sql.Stmt
}

// NewAccountRepository creates a new AccountRepository with prepared statements.
func NewAccountRepository(db *sql.DB) (*AccountRepository, error) {
	repo := &AccountRepository{db: db}

	var err error
	repo.createStmt, err = db.Prepare(`
		INSERT INTO accounts (first_name, last_name, username, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare create statement: %w", err)
	}

	repo.getByIDStmt, err = db.Prepare(`SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByID statement: %w", err)
	}

	repo.getByUsernameStmt, err = db.Prepare(`SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByUsername statement: %w", err)
	}

	repo.getByEmailStmt, err = db.Prepare(`SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByEmail statement: %w", err)
	}

	return repo, nil
}

// Create inserts a new account. Unique violations are reported as
// domain.ErrUsernameExists or domain.ErrEmailExists.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	defer observeQuery("insert", "accounts", time.Now())

	err := r.createStmt.QueryRowContext(ctx,
		account.FirstName,
		account.LastName,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.IsActive,
	).Scan(&account.ID, &account.CreatedAt)

	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err, constraintAccountsUsername):
		return domain.ErrUsernameExists
	case IsUniqueViolation(err, constraintAccountsEmail):
		return domain.ErrEmailExists
	default:
		return fmt.Errorf("failed to create account: %w", err)
	}
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	defer observeQuery("select", "accounts", time.Now())
	return scanAccount(r.getByIDStmt.QueryRowContext(ctx, id))
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	defer observeQuery("select", "accounts", time.Now())
	return scanAccount(r.getByUsernameStmt.QueryRowContext(ctx, username))
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	defer observeQuery("select", "accounts", time.Now())
	return scanAccount(r.getByEmailStmt.QueryRowContext(ctx, email))
}

// Close releases the prepared statements.
func (r *AccountRepository) Close() error {
	return errors.Join(
		r.createStmt.Close(),
		r.getByIDStmt.Close(),
		r.getByUsernameStmt.Close(),
		r.getByEmailStmt.Close(),
	)
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}
	var lastLogin sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.FirstName,
		&account.LastName,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&account.IsActive,
		&lastLogin,
		&account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		account.LastLogin = &t
	}
	return account, nil
}
