// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/passportxyz/scorer/internal/config"
)

// testClient connects to SCORER_TEST_DATABASE_URL and runs migrations, or
// skips the calling test if it isn't set — same env-gated-skip convention
// the teacher uses for its own repository tests.
func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("SCORER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SCORER_TEST_DATABASE_URL not set, skipping database test")
	}

	client, err := NewClient(&config.Config{
		DatabaseURL:         dsn,
		DatabaseMaxConns:    5,
		DatabaseMinConns:    1,
		DatabaseMaxIdleTime: 300,
		DatabaseMaxLifetime: 3600,
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.MigrateUp(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return client
}
