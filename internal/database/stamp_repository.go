// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StampRepository handles Stamp row operations.
type StampRepository struct{}

// NewStampRepository creates a new stamp repository.
func NewStampRepository() *StampRepository {
	return &StampRepository{}
}

// DeleteAllForPassport deletes every Stamp owned by a Passport — spec.md
// §4.5 step 2, always run before the bulk-insert of the rescored set.
func (r *StampRepository) DeleteAllForPassport(ctx context.Context, db DBTX, passportID int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM stamps WHERE passport_id = $1`, passportID)
	if err != nil {
		return fmt.Errorf("failed to delete stamps: %w", err)
	}
	return nil
}

// BulkInsert inserts one stamp of the rescored set of valid stamps — spec.md
// §4.5 step 3; the caller invokes it once per valid stamp.
func (r *StampRepository) BulkInsert(ctx context.Context, db DBTX, passportID int64, provider string, credential json.RawMessage, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stamps (passport_id, provider, credential, expires_at)
		VALUES ($1, $2, $3, $4)`,
		passportID, provider, credential, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert stamp: %w", err)
	}
	return nil
}

// LatestPerProvider fetches the latest-per-provider ceramic-cache-backed
// stamps via a DISTINCT ON query, per spec.md §4.8 step 5. It reads from
// ceramic_stamps since that is the system's authoritative stamp source of
// truth prior to validation.
func (r *StampRepository) LatestPerProvider(ctx context.Context, db DBTX, address string) ([]CeramicStamp, error) {
	query := `
		SELECT DISTINCT ON (provider) id, address, provider, stamp, proof_value,
			source_app, source_scorer_id, deleted_at, expires_at, created_at, updated_at
		FROM ceramic_stamps
		LEFT JOIN ceramic_stamp_revocations USING (proof_value)
		WHERE ceramic_stamps.address = $1
			AND ceramic_stamps.type = 1
			AND ceramic_stamps.deleted_at IS NULL
			AND ceramic_stamp_revocations.proof_value IS NULL
		ORDER BY provider, updated_at DESC`

	rows, err := db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest stamps: %w", err)
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
