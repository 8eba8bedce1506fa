// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CommunityRepository handles Community row lookups.
type CommunityRepository struct{}

// NewCommunityRepository creates a new community repository.
func NewCommunityRepository() *CommunityRepository { return &CommunityRepository{} }

// Get retrieves a Community by id — spec.md §4.8 step 1.
func (r *CommunityRepository) Get(ctx context.Context, db DBTX, id int64) (*Community, error) {
	c := &Community{}
	err := db.QueryRowContext(ctx, `
		SELECT id, human_points_program FROM communities WHERE id = $1`, id,
	).Scan(&c.ID, &c.HumanPointsProgram)
	if err == sql.ErrNoRows {
		return nil, ErrCommunityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return c, nil
}
