package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GetTestDatabasePool creates a database connection pool for testing
func GetTestDatabasePool(ctx context.Context) (*pgxpool.Pool, error) {
	databaseURL := buildDatabaseURL()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// buildDatabaseURL constructs the database URL from environment variables
func buildDatabaseURL() string {
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "readings_test"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer",
		user, password, host, port, dbname)
}

// TestDatabase provides database utilities for testing
type TestDatabase struct {
	Pool *pgxpool.Pool
	ctx  context.Context
}

// NewTestDatabase creates a new test database instance. The test is
// skipped when no database is reachable, so the suite stays runnable
// without infrastructure.
func NewTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	if os.Getenv("TEST_DATABASE_URL") == "" && os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("set TEST_DATABASE_URL or POSTGRES_HOST to run database integration tests")
	}

	pool, err := GetTestDatabasePool(ctx)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	return &TestDatabase{
		Pool: pool,
		ctx:  ctx,
	}
}

// Close closes the database connection
func (db *TestDatabase) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanupReadings removes rows created by a test, matched by user id.
func (db *TestDatabase) CleanupReadings(t *testing.T, userID string) {
	if _, err := db.Pool.Exec(db.ctx, `DELETE FROM readings WHERE user_id = $1`, userID); err != nil {
		t.Logf("Warning: failed to clean up readings for %s: %v", userID, err)
	}
}

// CleanupUser removes a seeded test user.
func (db *TestDatabase) CleanupUser(t *testing.T, email string) {
	if _, err := db.Pool.Exec(db.ctx, `DELETE FROM users WHERE email = $1`, email); err != nil {
		t.Logf("Warning: failed to clean up user %s: %v", email, err)
	}
}
