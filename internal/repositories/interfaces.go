package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/licenseguard/licenseguard/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByCode(ctx context.Context, licenseCode string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	// Activate atomically sets the username and password hash, flips the
	// account to activated, and registers the first device. Returns
	// ErrConflict if the account was already activated by a concurrent
	// caller, ErrDuplicateUsername if another account owns the username.
	Activate(ctx context.Context, id uuid.UUID, username, passwordHash, fingerprint string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

type DeviceRepository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error)
	GetByFingerprint(ctx context.Context, accountID uuid.UUID, fingerprint string) (*models.Device, error)
	// AddIfUnderQuota admits a fingerprint under the account's quota in a
	// single serialized step: an already-registered fingerprint is touched
	// and returned regardless of quota; a new one is inserted only while
	// the device count is below quota, otherwise ErrQuotaExceeded.
	AddIfUnderQuota(ctx context.Context, accountID uuid.UUID, fingerprint string, quota int) (*models.Device, error)
	Remove(ctx context.Context, accountID uuid.UUID, fingerprint string) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}
