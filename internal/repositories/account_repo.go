package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licenseguard/licenseguard/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflicting concurrent update")
	ErrDuplicateUsername = errors.New("username already taken")
)

const pgUniqueViolation = "23505"

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (license_code, state)
              VALUES ($1, $2)
              RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, account.LicenseCode, account.State).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

const accountColumns = `id, license_code, COALESCE(username, ''), COALESCE(password_hash, ''), state, created_at, last_login_at`

func (r *PostgresAccountRepository) scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.LicenseCode,
		&account.Username,
		&account.PasswordHash,
		&account.State,
		&account.CreatedAt,
		&account.LastLoginAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresAccountRepository) GetByCode(ctx context.Context, licenseCode string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE license_code = $1`
	return r.scanAccount(r.pool.QueryRow(ctx, query, licenseCode))
}

func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.scanAccount(r.pool.QueryRow(ctx, query, username))
}

// Activate runs the whole activation write in one transaction: the
// conditional state flip serializes racing activations (only one caller
// sees rows affected), and the first device lands in the same commit so a
// credential without its device is never observable.
func (r *PostgresAccountRepository) Activate(ctx context.Context, id uuid.UUID, username, passwordHash, fingerprint string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE accounts
	          SET username = $2, password_hash = $3, state = $4
	          WHERE id = $1 AND state = $5`

	result, err := tx.Exec(ctx, query, id, username, passwordHash, models.StateActivated, models.StateUnactivated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to activate account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConflict
	}

	deviceQuery := `INSERT INTO devices (account_id, fingerprint)
	                VALUES ($1, $2)
	                ON CONFLICT (account_id, fingerprint) DO NOTHING`
	if _, err := tx.Exec(ctx, deviceQuery, id, fingerprint); err != nil {
		return fmt.Errorf("failed to register first device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts SET last_login_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
