// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// HumanPointsRepository backs the Human-Points Processor (C6), grounded on
// original_source/rust-scorer/src/domain/human_points.rs.
type HumanPointsRepository struct{}

// NewHumanPointsRepository creates a new human points repository.
func NewHumanPointsRepository() *HumanPointsRepository { return &HumanPointsRepository{} }

// MarkQualified inserts (address, community_id) into the qualified-users
// relation if absent — spec.md §4.6 step 1.
func (r *HumanPointsRepository) MarkQualified(ctx context.Context, db DBTX, address string, communityID int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO human_points_qualified_users (address, community_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, address, communityID)
	if err != nil {
		return fmt.Errorf("failed to mark qualified user: %w", err)
	}
	return nil
}

// QualifiedCommunityCount returns count_distinct(community_id) for an
// address — spec.md §4.6 step 3 (SCB threshold).
func (r *HumanPointsRepository) QualifiedCommunityCount(ctx context.Context, db DBTX, address string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT community_id) FROM human_points_qualified_users WHERE address = $1`, address,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count qualified communities: %w", err)
	}
	return count, nil
}

// HasEntry reports whether an (address, action, chain_id, provider,
// tx_hash) row already exists.
func (r *HumanPointsRepository) HasEntry(ctx context.Context, db DBTX, address, action string, chainID sql.NullInt64, provider, txHash sql.NullString) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM human_points_entries
			WHERE address = $1 AND action = $2
			AND chain_id IS NOT DISTINCT FROM $3
			AND provider IS NOT DISTINCT FROM $4
			AND tx_hash IS NOT DISTINCT FROM $5)`,
		address, action, chainID, provider, txHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check human points entry: %w", err)
	}
	return exists, nil
}

// HasEntryForProvider reports whether an address already has an entry for
// the given (action, provider) pair, ignoring chain_id/tx_hash — used for
// the HKY "not already recorded for that provider" check (spec.md §4.6
// step 2), where tx_hash varies per call.
func (r *HumanPointsRepository) HasEntryForProvider(ctx context.Context, db DBTX, address, action, provider string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM human_points_entries
			WHERE address = $1 AND action = $2 AND provider = $3)`,
		address, action, provider,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check human points provider entry: %w", err)
	}
	return exists, nil
}

// InsertEntry inserts one human-points row, idempotent on the composite
// unique key.
func (r *HumanPointsRepository) InsertEntry(ctx context.Context, db DBTX, e HumanPointsEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO human_points_entries (address, action, chain_id, provider, tx_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address, action, chain_id, provider, tx_hash) DO NOTHING`,
		e.Address, e.Action, e.ChainID, e.Provider, e.TxHash)
	if err != nil {
		return fmt.Errorf("failed to insert human points entry: %w", err)
	}
	return nil
}

// CountEntriesByAction counts every entry with the given action across all
// addresses, used to enforce the MTA 5000 cap — spec.md §4.6 step 4, P9.
func (r *HumanPointsRepository) CountEntriesByAction(ctx context.Context, db DBTX, action string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM human_points_entries WHERE action = $1`, action).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries by action: %w", err)
	}
	return count, nil
}

// EntriesForAddress returns every entry recorded for an address, used to
// build points_data (spec.md §4.6 "Reporting").
func (r *HumanPointsRepository) EntriesForAddress(ctx context.Context, db DBTX, address string) ([]HumanPointsEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT address, action, chain_id, provider, tx_hash
		FROM human_points_entries WHERE address = $1`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for address: %w", err)
	}
	defer rows.Close()

	var out []HumanPointsEntry
	for rows.Next() {
		var e HumanPointsEntry
		if err := rows.Scan(&e.Address, &e.Action, &e.ChainID, &e.Provider, &e.TxHash); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ProgramConfigs returns the per-action point values, used to build both
// points_data and possible_points_data.
func (r *HumanPointsRepository) ProgramConfigs(ctx context.Context, db DBTX) (map[string]decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx, `SELECT action, points FROM human_points_program_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query program configs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var action, points string
		if err := rows.Scan(&action, &points); err != nil {
			return nil, fmt.Errorf("failed to scan program config: %w", err)
		}
		d, err := decimal.NewFromString(points)
		if err != nil {
			return nil, fmt.Errorf("failed to parse points for %s: %w", action, err)
		}
		out[action] = d
	}
	return out, rows.Err()
}

// Multiplier returns the per-address multiplier, defaulting to 1.
func (r *HumanPointsRepository) Multiplier(ctx context.Context, db DBTX, address string) (decimal.Decimal, error) {
	var m string
	err := db.QueryRowContext(ctx, `SELECT multiplier FROM human_points_multipliers WHERE address = $1`, address).Scan(&m)
	if err == sql.ErrNoRows {
		return decimal.NewFromInt(1), nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load multiplier: %w", err)
	}
	return decimal.NewFromString(m)
}

// IsListMember reports whether an address is on a named address list
// (MetaMaskOG, SeasonedPassport, ChosenOne) — spec.md §4.6 steps 4-5.
func (r *HumanPointsRepository) IsListMember(ctx context.Context, db DBTX, listName, address string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM address_list_members WHERE list_name = $1 AND address = $2)`,
		listName, address,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check list membership: %w", err)
	}
	return exists, nil
}
