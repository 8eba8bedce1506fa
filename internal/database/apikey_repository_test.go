// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"testing"
)

func TestAPIKeyRepositoryGetByPrefixRoundTrip(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	_, err := client.ExecContext(ctx, `
		INSERT INTO api_key_credentials (key_prefix, key_hash, read_scores, embed_rate_limit)
		VALUES ('testpfx1', 'sha512$$deadbeef', true, '100/minute')
		ON CONFLICT (key_prefix) DO UPDATE SET key_hash = EXCLUDED.key_hash`)
	if err != nil {
		t.Fatalf("failed to seed api key row: %v", err)
	}

	repo := NewAPIKeyRepository()
	cred, err := repo.GetByPrefix(ctx, client, "testpfx1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.KeyHash != "sha512$$deadbeef" {
		t.Errorf("KeyHash = %q, want sha512$$deadbeef", cred.KeyHash)
	}
	if !cred.ReadScores {
		t.Error("expected ReadScores to be true")
	}
	if !cred.EmbedRateLimit.Valid || cred.EmbedRateLimit.String != "100/minute" {
		t.Errorf("EmbedRateLimit = %+v, want 100/minute", cred.EmbedRateLimit)
	}
}

func TestAPIKeyRepositoryGetByPrefixNotFound(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	repo := NewAPIKeyRepository()
	if _, err := repo.GetByPrefix(ctx, client, "nosuchkey"); err != ErrAPIKeyNotFound {
		t.Errorf("err = %v, want ErrAPIKeyNotFound", err)
	}
}
