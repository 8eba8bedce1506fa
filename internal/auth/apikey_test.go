package auth

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/passportxyz/scorer/internal/config"
	"github.com/passportxyz/scorer/internal/database"
)

func testDBClient(t *testing.T) *database.Client {
	t.Helper()
	dsn := os.Getenv("SCORER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SCORER_TEST_DATABASE_URL not set, skipping database test")
	}
	client, err := database.NewClient(&config.Config{
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

func seedAPIKey(t *testing.T, client *database.Client, rawKey string, readScores bool) {
	t.Helper()
	sum := sha512.Sum512([]byte(rawKey))
	hash := "sha512$$" + hex.EncodeToString(sum[:])
	_, err := client.ExecContext(context.Background(), `
		INSERT INTO api_key_credentials (key_prefix, key_hash, read_scores)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_prefix) DO UPDATE SET key_hash = EXCLUDED.key_hash, read_scores = EXCLUDED.read_scores`,
		rawKey[:8], hash, readScores)
	if err != nil {
		t.Fatalf("failed to seed api key: %v", err)
	}
}

func TestAPIKeyVerifierVerifyAcceptsCorrectKey(t *testing.T) {
	client := testDBClient(t)
	rawKey := "testkey-valid-0001"
	seedAPIKey(t, client, rawKey, true)

	v := NewAPIKeyVerifier(database.NewAPIKeyRepository(), client, "")
	cred, err := v.Verify(context.Background(), rawKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cred.ReadScores {
		t.Error("expected ReadScores to be true")
	}
}

func TestAPIKeyVerifierVerifyRejectsTamperedKey(t *testing.T) {
	client := testDBClient(t)
	rawKey := "testkey-valid-0002"
	seedAPIKey(t, client, rawKey, true)

	v := NewAPIKeyVerifier(database.NewAPIKeyRepository(), client, "")
	if _, err := v.Verify(context.Background(), rawKey+"x"); err == nil {
		t.Error("expected an error for a key whose prefix matches but whose hash does not")
	}
}

func TestAPIKeyVerifierVerifyReadScoresRejectsScopelessKey(t *testing.T) {
	client := testDBClient(t)
	rawKey := "testkey-noscope-01"
	seedAPIKey(t, client, rawKey, false)

	v := NewAPIKeyVerifier(database.NewAPIKeyRepository(), client, "")
	if _, err := v.VerifyReadScores(context.Background(), rawKey); err == nil {
		t.Error("expected VerifyReadScores to reject a key without read_scores")
	}
}

func TestAPIKeyVerifierDemoKeyAlias(t *testing.T) {
	client := testDBClient(t)
	demoKey := "demo-alias-key-001"
	seedAPIKey(t, client, demoKey, true)

	v := NewAPIKeyVerifier(database.NewAPIKeyRepository(), client, demoKey)
	if _, err := v.Verify(context.Background(), demoKey); err != nil {
		t.Fatalf("unexpected error verifying demo key: %v", err)
	}
	if _, err := v.Verify(context.Background(), "demo"); err != nil {
		t.Fatalf("unexpected error verifying literal 'demo' alias: %v", err)
	}
}

func TestAPIKeyVerifierDemoAliasRejectedWithoutConfiguredDemoKey(t *testing.T) {
	client := testDBClient(t)

	v := NewAPIKeyVerifier(database.NewAPIKeyRepository(), client, "")
	if _, err := v.Verify(context.Background(), "demo"); err == nil {
		t.Error("expected the literal 'demo' alias to be rejected when no DEMO_API_KEY is configured")
	}
}

func TestExtractKeyPrefersAPIKeyHeader(t *testing.T) {
	if got := ExtractKey("from-header", "Bearer from-bearer"); got != "from-header" {
		t.Errorf("ExtractKey = %q, want from-header", got)
	}
	if got := ExtractKey("", "Bearer from-bearer"); got != "from-bearer" {
		t.Errorf("ExtractKey = %q, want from-bearer", got)
	}
}
