// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// NullifierRepository manages the shared hash_scorer_links registry — the
// single contention point in the system (spec.md §3, §4.3), grounded on
// original_source/rust-scorer/src/db/queries/dedup.rs's
// load_hash_scorer_links/bulk_upsert_hash_links/verify_hash_links.
type NullifierRepository struct{}

// NewNullifierRepository creates a new nullifier repository.
func NewNullifierRepository() *NullifierRepository {
	return &NullifierRepository{}
}

// LoadLinks loads existing hash_scorer_links rows for a community restricted
// to the given nullifier set — spec.md §4.3 step 2.
func (r *NullifierRepository) LoadLinks(ctx context.Context, db DBTX, communityID int64, hashes []string) ([]HashScorerLink, error) {
	if len(hashes) == 0 {
		return nil, nil
	}

	query := `
		SELECT hash, community_id, address, expires_at
		FROM hash_scorer_links
		WHERE community_id = $1 AND hash = ANY($2)`

	rows, err := db.QueryContext(ctx, query, communityID, pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("failed to load hash links: %w", err)
	}
	defer rows.Close()

	var out []HashScorerLink
	for rows.Next() {
		var l HashScorerLink
		if err := rows.Scan(&l.Hash, &l.CommunityID, &l.Address, &l.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan hash link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LinkWrite is one queued create or update for BulkUpsertLinks.
type LinkWrite struct {
	Hash        string
	Address     string
	CommunityID int64
	ExpiresAt   time.Time
}

// BulkUpsertLinks applies queued creates then updates in bulk — spec.md
// §4.3 step 7. Creates are issued before updates (spec.md §5 ordering
// guarantee); a unique-violation on a concurrent create is surfaced
// unwrapped so the dedup retry loop can classify it as retryable.
func (r *NullifierRepository) BulkUpsertLinks(ctx context.Context, db DBTX, creates, updates []LinkWrite) error {
	for _, c := range creates {
		_, err := db.ExecContext(ctx, `
			INSERT INTO hash_scorer_links (hash, community_id, address, expires_at)
			VALUES ($1, $2, $3, $4)`,
			c.Hash, c.CommunityID, c.Address, c.ExpiresAt)
		if err != nil {
			return err
		}
	}
	for _, u := range updates {
		_, err := db.ExecContext(ctx, `
			UPDATE hash_scorer_links SET address = $3, expires_at = $4
			WHERE hash = $1 AND community_id = $2`,
			u.Hash, u.CommunityID, u.Address, u.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to update hash link: %w", err)
		}
	}
	return nil
}

// VerifyOwnership counts links now owned by address within the given
// nullifier set and returns whether it matches the expected count — spec.md
// §4.3 step 8.
func (r *NullifierRepository) VerifyOwnership(ctx context.Context, db DBTX, address string, communityID int64, nullifiers []string, expected int) (bool, error) {
	if len(nullifiers) == 0 {
		return expected == 0, nil
	}

	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hash_scorer_links
		WHERE community_id = $1 AND address = $2 AND hash = ANY($3)`,
		communityID, address, pq.Array(nullifiers),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to verify hash links: %w", err)
	}
	return count == expected, nil
}
