// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CeramicRepository manages the ceramic-cache stamp table shared by the
// PASSPORT (JWT) and EMBED write paths (spec.md §3 "Ceramic Stamp Cache",
// §6 ceramic-cache/embed routes).
type CeramicRepository struct{}

// NewCeramicRepository creates a new ceramic repository.
func NewCeramicRepository() *CeramicRepository { return &CeramicRepository{} }

// SoftDeleteProviders marks the active row for each of the given providers
// as deleted for an address, used by the bulk POST/PATCH/DELETE handlers
// before inserting replacements.
func (r *CeramicRepository) SoftDeleteProviders(ctx context.Context, db DBTX, address string, providers []string) error {
	for _, provider := range providers {
		_, err := db.ExecContext(ctx, `
			UPDATE ceramic_stamps SET deleted_at = now(), updated_at = now()
			WHERE address = $1 AND provider = $2 AND type = 1 AND deleted_at IS NULL`,
			address, provider)
		if err != nil {
			return fmt.Errorf("failed to soft-delete provider %s: %w", provider, err)
		}
	}
	return nil
}

// Insert writes a new ceramic stamp row.
func (r *CeramicRepository) Insert(ctx context.Context, db DBTX, address, provider string, stamp json.RawMessage, proofValue string, sourceApp CeramicSourceApp, sourceScorerID int64, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ceramic_stamps (address, provider, stamp, proof_value, source_app, source_scorer_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		address, provider, stamp, proofValue, int16(sourceApp), sourceScorerID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert ceramic stamp: %w", err)
	}
	return nil
}

// ActiveForAddress returns every non-soft-deleted, non-revoked ceramic
// stamp for an address (spec.md §4.8 step 4 — used to check emptiness for
// the zero-score short-circuit).
func (r *CeramicRepository) ActiveForAddress(ctx context.Context, db DBTX, address string) ([]CeramicStamp, error) {
	query := `
		SELECT ceramic_stamps.id, ceramic_stamps.address, ceramic_stamps.provider, ceramic_stamps.stamp,
			ceramic_stamps.proof_value, ceramic_stamps.source_app, ceramic_stamps.source_scorer_id,
			ceramic_stamps.deleted_at, ceramic_stamps.expires_at, ceramic_stamps.created_at, ceramic_stamps.updated_at
		FROM ceramic_stamps
		LEFT JOIN ceramic_stamp_revocations USING (proof_value)
		WHERE ceramic_stamps.address = $1 AND ceramic_stamps.type = 1
			AND ceramic_stamps.deleted_at IS NULL
			AND ceramic_stamp_revocations.proof_value IS NULL`

	rows, err := db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query active stamps: %w", err)
	}
	defer rows.Close()

	var out []CeramicStamp
	for rows.Next() {
		var c CeramicStamp
		if err := rows.Scan(&c.ID, &c.Address, &c.Provider, &c.Stamp, &c.ProofValue,
			&c.SourceApp, &c.SourceScorerID, &c.DeletedAt, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stamp: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
