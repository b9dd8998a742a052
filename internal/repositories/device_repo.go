package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licenseguard/licenseguard/internal/models"
)

var ErrQuotaExceeded = errors.New("device quota exceeded")

type PostgresDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{pool: pool}
}

const deviceColumns = `id, account_id, fingerprint, first_seen_at, last_seen_at`

func (r *PostgresDeviceRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + `
	          FROM devices
	          WHERE account_id = $1
	          ORDER BY first_seen_at ASC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		var device models.Device
		err := rows.Scan(
			&device.ID,
			&device.AccountID,
			&device.Fingerprint,
			&device.FirstSeenAt,
			&device.LastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

func (r *PostgresDeviceRepository) GetByFingerprint(ctx context.Context, accountID uuid.UUID, fingerprint string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + `
	          FROM devices
	          WHERE account_id = $1 AND fingerprint = $2`

	var device models.Device
	err := r.pool.QueryRow(ctx, query, accountID, fingerprint).Scan(
		&device.ID,
		&device.AccountID,
		&device.Fingerprint,
		&device.FirstSeenAt,
		&device.LastSeenAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

// AddIfUnderQuota serializes device admission per account by locking the
// account row for the duration of the transaction. Two logins racing to
// take the last slot are forced through here one at a time, so the count
// they check against cannot go stale between the check and the insert.
func (r *PostgresDeviceRepository) AddIfUnderQuota(ctx context.Context, accountID uuid.UUID, fingerprint string, quota int) (*models.Device, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin device admission: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	// Known fingerprint: touch and return, no quota check.
	var device models.Device
	err = tx.QueryRow(ctx, `UPDATE devices SET last_seen_at = NOW()
	                        WHERE account_id = $1 AND fingerprint = $2
	                        RETURNING `+deviceColumns, accountID, fingerprint).Scan(
		&device.ID,
		&device.AccountID,
		&device.Fingerprint,
		&device.FirstSeenAt,
		&device.LastSeenAt,
	)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit device touch: %w", err)
		}
		return &device, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to touch device: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE account_id = $1`, accountID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	if count >= quota {
		return nil, ErrQuotaExceeded
	}

	err = tx.QueryRow(ctx, `INSERT INTO devices (account_id, fingerprint)
	                        VALUES ($1, $2)
	                        RETURNING `+deviceColumns, accountID, fingerprint).Scan(
		&device.ID,
		&device.AccountID,
		&device.Fingerprint,
		&device.FirstSeenAt,
		&device.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit device admission: %w", err)
	}
	return &device, nil
}

func (r *PostgresDeviceRepository) Remove(ctx context.Context, accountID uuid.UUID, fingerprint string) error {
	query := `DELETE FROM devices WHERE account_id = $1 AND fingerprint = $2`
	result, err := r.pool.Exec(ctx, query, accountID, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to remove device: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
