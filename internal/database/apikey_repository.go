// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// APIKeyRepository backs spec.md §6's API-key auth: 8-char prefix lookup,
// SHA-512 of the full key compared against the stored "sha512$$<hex>".
type APIKeyRepository struct{}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository() *APIKeyRepository { return &APIKeyRepository{} }

// GetByPrefix looks up a credential by its 8-char prefix.
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, db DBTX, prefix string) (*APIKeyCredential, error) {
	c := &APIKeyCredential{}
	err := db.QueryRowContext(ctx, `
		SELECT key_prefix, key_hash, read_scores, embed_rate_limit
		FROM api_key_credentials WHERE key_prefix = $1`, prefix,
	).Scan(&c.KeyPrefix, &c.KeyHash, &c.ReadScores, &c.EmbedRateLimit)
	if err == sql.ErrNoRows {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	return c, nil
}
