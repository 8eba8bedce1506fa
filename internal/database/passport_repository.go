// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PassportRepository handles Passport row operations. Its methods take a
// DBTX explicitly (rather than storing a *Client) so the scoring
// orchestrator can thread one transaction through passport, stamp, score,
// and nullifier writes (spec.md §4.5, §9).
type PassportRepository struct{}

// NewPassportRepository creates a new passport repository.
func NewPassportRepository() *PassportRepository {
	return &PassportRepository{}
}

// Upsert inserts or returns the existing Passport for (address, community_id)
// — spec.md §4.5 step 1.
func (r *PassportRepository) Upsert(ctx context.Context, db DBTX, address string, communityID int64) (*Passport, error) {
	query := `
		INSERT INTO passports (address, community_id)
		VALUES ($1, $2)
		ON CONFLICT (address, community_id) DO UPDATE SET updated_at = now()
		RETURNING id, address, community_id, created_at, updated_at`

	p := &Passport{}
	err := db.QueryRowContext(ctx, query, address, communityID).Scan(
		&p.ID, &p.Address, &p.CommunityID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert passport: %w", err)
	}
	return p, nil
}

// Get retrieves a Passport by (address, community_id).
func (r *PassportRepository) Get(ctx context.Context, db DBTX, address string, communityID int64) (*Passport, error) {
	query := `
		SELECT id, address, community_id, created_at, updated_at
		FROM passports WHERE address = $1 AND community_id = $2`

	p := &Passport{}
	err := db.QueryRowContext(ctx, query, address, communityID).Scan(
		&p.ID, &p.Address, &p.CommunityID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPassportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get passport: %w", err)
	}
	return p, nil
}
