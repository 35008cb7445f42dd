package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

var (
	sharedOnce      sync.Once
	sharedInitErr   error
	sharedContainer *postgres.PostgresContainer
	sharedPool      *pgxpool.Pool
	sharedDBURL     string
)

const sharedContainerName = "checkin-storage-db"

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupShared()
	os.Exit(code)
}

func setupPostgres(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	initShared(t)
	resetDatabase(t, sharedPool)

	return sharedPool, sharedDBURL
}

func initShared(t *testing.T) {
	t.Helper()
	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := postgres.Run(
			ctx,
			"docker.io/postgres:16-alpine",
			postgres.WithDatabase("checkin"),
			postgres.WithUsername("checkin"),
			postgres.WithPassword("checkin_dev"),
			testcontainers.WithReuseByName(sharedContainerName),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedContainer = container

		dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedDBURL = dbURL

		if err := migrateWithRetry(dbURL, 10*time.Second); err != nil {
			sharedInitErr = err
			return
		}

		pool, err := NewPool(ctx, dbURL, 20)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedPool = pool
	})

	require.NoError(t, sharedInitErr)
}

func cleanupShared() {
	if sharedPool != nil {
		sharedPool.Close()
	}
}

// resetDatabase empties every table and restarts id sequences so each test
// sees ids from 1.
func resetDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	require.NotNil(t, pool, "shared pool is nil")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, "TRUNCATE TABLE checkins, events, users RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

// migrateWithRetry tolerates the window where the container logs ready
// before it accepts connections.
func migrateWithRetry(databaseURL string, timeout time.Duration) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	err := MigrateUp(databaseURL)
	for err != nil {
		select {
		case <-deadline:
			return err
		case <-ticker.C:
			err = MigrateUp(databaseURL)
		}
	}
	return nil
}

func insertUser(t *testing.T, ctx context.Context, repo *Repository, username string, role auth.Role) *users.User {
	t.Helper()
	user, err := repo.Users().Create(ctx, users.CreateParams{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		CreatedOn:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return user
}

func insertEvent(t *testing.T, ctx context.Context, repo *Repository, name string, start time.Time) *events.Event {
	t.Helper()
	event, err := repo.Events().Create(ctx, events.CreateParams{
		Name:      name,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return event
}
