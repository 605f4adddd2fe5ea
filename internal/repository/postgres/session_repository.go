package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"babyshop/internal/domain"
)

const (
	insertSessionQuery = `
		INSERT INTO sessions (account_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	touchLastLoginQuery = `UPDATE accounts SET last_login = $1 WHERE id = $2`
)

type SessionRepository struct {
	db                *sql.DB
	tx                *TxManager
	getByTokenStmt    *sql.Stmt
	deleteStmt        *sql.Stmt
	deleteExpiredStmt *sql.Stmt
	now               func() time.Time
}

// NewSessionRepository creates a new SessionRepository with prepared statements.
// Returns an error if statement preparation fails.
func NewSessionRepository(db *sql.DB) (*SessionRepository, error) {
	repo := &SessionRepository{
		db:  db,
		tx:  NewTxManager(db),
		now: time.Now,
	}

	var err error
	repo.getByTokenStmt, err = db.Prepare(`
		SELECT id, account_id, token, expires_at, created_at
		FROM sessions
		WHERE token = $1 AND expires_at > $2
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare getByToken statement: %w", err)
	}

	repo.deleteStmt, err = db.Prepare(`DELETE FROM sessions WHERE token = $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	repo.deleteExpiredStmt, err = db.Prepare(`DELETE FROM sessions WHERE expires_at <= $1`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare deleteExpired statement: %w", err)
	}

	return repo, nil
}

// Create stores the session and stamps the account's last login in one transaction.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	defer observeQuery("insert", "sessions", time.Now())

	return r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, insertSessionQuery,
			session.AccountID,
			session.Token,
			session.ExpiresAt,
		).Scan(&session.ID, &session.CreatedAt)
		if IsForeignKeyViolation(err) {
			return domain.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, touchLastLoginQuery, r.now(), session.AccountID); err != nil {
			return fmt.Errorf("failed to update last login: %w", err)
		}
		return nil
	})
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	defer observeQuery("select", "sessions", time.Now())

	session := &domain.Session{}
	err := r.getByTokenStmt.QueryRowContext(ctx, token, r.now()).Scan(
		&session.ID,
		&session.AccountID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}
	return session, nil
}

// Delete removes the session and reports whether one existed.
func (r *SessionRepository) Delete(ctx context.Context, token string) (bool, error) {
	defer observeQuery("delete", "sessions", time.Now())

	result, err := r.deleteStmt.ExecContext(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count > 0, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	defer observeQuery("delete", "sessions", time.Now())

	result, err := r.deleteExpiredStmt.ExecContext(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

// Close releases the prepared statements.
func (r *SessionRepository) Close() error {
	return errors.Join(
		r.getByTokenStmt.Close(),
		r.deleteStmt.Close(),
		r.deleteExpiredStmt.Close(),
	)
}
