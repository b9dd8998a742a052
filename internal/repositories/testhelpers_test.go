package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licenseguard/licenseguard/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Repository tests run against live backends. Set TEST_DATABASE_URL /
// TEST_REDIS_URL to enable them; they skip otherwise.

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres repository tests")
	}

	pool, err := pgxpool.New(context.Background(), databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set, skipping redis repository tests")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

// setupTestAccount provisions and activates a throwaway account.
func setupTestAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool) *models.Account {
	t.Helper()

	repo := NewPostgresAccountRepository(pool)
	account := &models.Account{
		LicenseCode: "TEST-" + uuid.NewString(),
		State:       models.StateUnactivated,
	}
	require.NoError(t, repo.Create(ctx, account))

	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM accounts WHERE id = $1`, account.ID)
	})
	return account
}
