// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// StakeRepository backs the Chain Indexer's Staking contract-type handler
// (C7) and the /internal/stake endpoints, grounded on
// original_source/indexer/src/staking_indexer.rs and
// original_source/rust-indexer/src/postgres.rs.
type StakeRepository struct{}

// NewStakeRepository creates a new stake repository.
func NewStakeRepository() *StakeRepository { return &StakeRepository{} }

// ApplyDelta updates the running sum for (chain, staker, stakee), adding
// amount (signed: positive for stakes/release, negative for
// withdrawn/slash — spec.md §4.7 "Staking"). lockTime/unlockTime are only
// advanced when non-nil, matching SelfStake/CommunityStake semantics from
// the original indexer.
func (r *StakeRepository) ApplyDelta(ctx context.Context, db DBTX, chain, staker, stakee string, amount decimal.Decimal, lockTime, unlockTime sql.NullTime, blockNumber int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stakes (chain, staker, stakee, current_amount, lock_time, unlock_time, last_updated_in_block)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chain, staker, stakee) DO UPDATE SET
			current_amount = stakes.current_amount + EXCLUDED.current_amount,
			lock_time = COALESCE(EXCLUDED.lock_time, stakes.lock_time),
			unlock_time = COALESCE(EXCLUDED.unlock_time, stakes.unlock_time),
			last_updated_in_block = EXCLUDED.last_updated_in_block`,
		chain, staker, stakee, amount, lockTime, unlockTime, blockNumber)
	if err != nil {
		return fmt.Errorf("failed to apply stake delta: %w", err)
	}
	return nil
}

// InsertEvent appends a stake event row.
func (r *StakeRepository) InsertEvent(ctx context.Context, db DBTX, e StakeEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stake_events (chain, event_type, staker, stakee, amount, block_number, tx_hash, round_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Chain, e.EventType, e.Staker, e.Stakee, e.Amount, e.BlockNumber, e.TxHash, e.RoundID)
	if err != nil {
		return fmt.Errorf("failed to insert stake event: %w", err)
	}
	return nil
}

// Snapshot returns the current stake rows involving an address as staker,
// for GET /internal/stake/gtc/{address}.
func (r *StakeRepository) Snapshot(ctx context.Context, db DBTX, address string) ([]StakeRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT chain, staker, stakee, current_amount, lock_time, unlock_time, last_updated_in_block
		FROM stakes WHERE staker = $1`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query stake snapshot: %w", err)
	}
	defer rows.Close()

	var out []StakeRow
	for rows.Next() {
		var s StakeRow
		var amount string
		if err := rows.Scan(&s.Chain, &s.Staker, &s.Stakee, &amount, &s.LockTime, &s.UnlockTime, &s.LastUpdatedInBlock); err != nil {
			return nil, fmt.Errorf("failed to scan stake: %w", err)
		}
		s.CurrentAmount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stake amount: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LegacyEventsForRound returns the round-scoped legacy stake events (no
// running sum), for GET /internal/stake/legacy-gtc/{address}/{round_id}.
func (r *StakeRepository) LegacyEventsForRound(ctx context.Context, db DBTX, address string, roundID int64) ([]StakeEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT chain, event_type, staker, stakee, amount, block_number, tx_hash, round_id
		FROM stake_events WHERE staker = $1 AND round_id = $2
		ORDER BY block_number ASC`, address, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy stake events: %w", err)
	}
	defer rows.Close()

	var out []StakeEvent
	for rows.Next() {
		var e StakeEvent
		var amount string
		if err := rows.Scan(&e.Chain, &e.EventType, &e.Staker, &e.Stakee, &amount, &e.BlockNumber, &e.TxHash, &e.RoundID); err != nil {
			return nil, fmt.Errorf("failed to scan legacy event: %w", err)
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event amount: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ChainState tracks the per-chain indexer cursor (spec.md §4.7).
type ChainState struct {
	ChainName            string
	LastCheckedBlock     uint64
	RequestedStartBlock  uint64
	TotalEventsCounter    int64
}

// GetOrInitChainState fetches (creating if absent) the indexer cursor row
// for a chain.
func (r *StakeRepository) GetOrInitChainState(ctx context.Context, db DBTX, chain string) (*ChainState, error) {
	s := &ChainState{}
	err := db.QueryRowContext(ctx, `
		INSERT INTO indexer_chain_state (chain_name) VALUES ($1)
		ON CONFLICT (chain_name) DO UPDATE SET chain_name = EXCLUDED.chain_name
		RETURNING chain_name, last_checked_block, requested_start_block, total_events_counter`,
		chain,
	).Scan(&s.ChainName, &s.LastCheckedBlock, &s.RequestedStartBlock, &s.TotalEventsCounter)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain state: %w", err)
	}
	return s, nil
}

// AdvanceLastCheckedBlock persists the new cursor position and bumps the
// total-events counter, used by the backfill subtask after each window.
func (r *StakeRepository) AdvanceLastCheckedBlock(ctx context.Context, db DBTX, chain string, block uint64, eventsProcessed int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE indexer_chain_state
		SET last_checked_block = $2, total_events_counter = total_events_counter + $3
		WHERE chain_name = $1`,
		chain, block, eventsProcessed)
	if err != nil {
		return fmt.Errorf("failed to advance chain cursor: %w", err)
	}
	return nil
}

// ConsumeReindexRequest reads and clears the requested_start_block cell —
// spec.md §4.7 "query_start_block resolution".
func (r *StakeRepository) ConsumeReindexRequest(ctx context.Context, db DBTX, chain string) (uint64, error) {
	var requested uint64
	err := db.QueryRowContext(ctx, `
		UPDATE indexer_chain_state s SET requested_start_block = 0
		FROM (SELECT chain_name, requested_start_block FROM indexer_chain_state
			WHERE chain_name = $1 AND requested_start_block > 0 FOR UPDATE) prev
		WHERE s.chain_name = prev.chain_name
		RETURNING prev.requested_start_block`, chain,
	).Scan(&requested)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume reindex request: %w", err)
	}
	return requested, nil
}

// RequestReindex sets the requested_start_block cell for an operator-driven
// reindex.
func (r *StakeRepository) RequestReindex(ctx context.Context, db DBTX, chain string, fromBlock uint64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE indexer_chain_state SET requested_start_block = $2 WHERE chain_name = $1`,
		chain, fromBlock)
	if err != nil {
		return fmt.Errorf("failed to request reindex: %w", err)
	}
	return nil
}
