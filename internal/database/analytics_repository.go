// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// AnalyticsRepository records the usage/analytics rows spec.md §7 requires
// on both success and failure paths, modeled on the interface-behind-a-
// concrete-repository pattern the teacher uses throughout pkg/database.
type AnalyticsRepository struct{}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository() *AnalyticsRepository { return &AnalyticsRepository{} }

// Record inserts one analytics row.
func (r *AnalyticsRepository) Record(ctx context.Context, db DBTX, requestPath, address string, communityID sql.NullInt64, statusCode int, success bool) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO analytics_events (request_path, address, community_id, status_code, success)
		VALUES ($1, $2, $3, $4, $5)`,
		requestPath, address, communityID, statusCode, success)
	if err != nil {
		return fmt.Errorf("failed to record analytics event: %w", err)
	}
	return nil
}

// CgrantsRepository backs GET /internal/cgrants/contributor_statistics.
type CgrantsRepository struct{}

// NewCgrantsRepository creates a new cgrants repository.
func NewCgrantsRepository() *CgrantsRepository { return &CgrantsRepository{} }

// ContributorStatistics aggregates num_grants_contribute_to and
// total_contribution_amount across non-squelched contributions, applying
// the per-contribution 0.95 minimum from spec.md §6.
func (r *CgrantsRepository) ContributorStatistics(ctx context.Context, db DBTX, address string) (numGrants int64, totalAmount float64, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT grant_id), COALESCE(SUM(GREATEST(amount, 0.95)), 0)
		FROM cgrants_contributions
		WHERE contributor_address = $1 AND squelched = false`, address,
	).Scan(&numGrants, &totalAmount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate contributor statistics: %w", err)
	}
	return numGrants, totalAmount, nil
}

// AddressListRepository backs GET /internal/allow-list/{list}/{address}.
type AddressListRepository struct{}

// NewAddressListRepository creates a new address list repository.
func NewAddressListRepository() *AddressListRepository { return &AddressListRepository{} }

// IsMember reports whether address is on list.
func (r *AddressListRepository) IsMember(ctx context.Context, db DBTX, list, address string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM address_list_members WHERE list_name = $1 AND address = $2)`,
		list, address,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check list membership: %w", err)
	}
	return exists, nil
}
