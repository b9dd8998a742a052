package repositories

import (
	"context"
	"testing"

	"github.com/licenseguard/licenseguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_Activate(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	account := setupTestAccount(t, ctx, pool)

	// ACT: Activate with credential and first device in one commit
	err := repo.Activate(ctx, account.ID, "alice-"+account.ID.String()[:8], "hashed", "HW1")
	require.NoError(t, err)

	// ASSERT: State flipped and the device is present
	reloaded, err := repo.GetByCode(ctx, account.LicenseCode)
	require.NoError(t, err)
	assert.Equal(t, models.StateActivated, reloaded.State)
	assert.Equal(t, "hashed", reloaded.PasswordHash)

	deviceRepo := NewPostgresDeviceRepository(pool)
	device, err := deviceRepo.GetByFingerprint(ctx, account.ID, "HW1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, device.AccountID)

	// A second activation attempt loses the conditional update
	err = repo.Activate(ctx, account.ID, "bob-"+account.ID.String()[:8], "other", "HW2")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAccountRepository_Activate_DuplicateUsername(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	first := setupTestAccount(t, ctx, pool)
	second := setupTestAccount(t, ctx, pool)

	username := "taken-" + first.ID.String()[:8]
	require.NoError(t, repo.Activate(ctx, first.ID, username, "hashed", "HW1"))

	err := repo.Activate(ctx, second.ID, username, "hashed", "HW2")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestAccountRepository_GetByCode_NotFound(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAccountRepository(pool)

	_, err := repo.GetByCode(context.Background(), "TEST-MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRepository_TouchLastLogin(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAccountRepository(pool)
	ctx := context.Background()

	account := setupTestAccount(t, ctx, pool)
	require.Nil(t, account.LastLoginAt)

	require.NoError(t, repo.TouchLastLogin(ctx, account.ID))

	reloaded, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLoginAt)
}
