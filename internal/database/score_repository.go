// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ScoreRepository handles Score row operations.
type ScoreRepository struct{}

// NewScoreRepository creates a new score repository.
func NewScoreRepository() *ScoreRepository {
	return &ScoreRepository{}
}

// Upsert writes the one Score row per Passport — spec.md §4.5 step 4.
func (r *ScoreRepository) Upsert(ctx context.Context, db DBTX, row *ScoreRow) error {
	stampScores, err := json.Marshal(row.StampScores)
	if err != nil {
		return fmt.Errorf("failed to marshal stamp_scores: %w", err)
	}
	stamps, err := json.Marshal(row.Stamps)
	if err != nil {
		return fmt.Errorf("failed to marshal stamps: %w", err)
	}
	evidence, err := json.Marshal(row.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	query := `
		INSERT INTO scores (passport_id, score, status, last_score_timestamp, expiration_date, error, stamp_scores, stamps, evidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (passport_id) DO UPDATE SET
			score = EXCLUDED.score,
			status = EXCLUDED.status,
			last_score_timestamp = EXCLUDED.last_score_timestamp,
			expiration_date = EXCLUDED.expiration_date,
			error = EXCLUDED.error,
			stamp_scores = EXCLUDED.stamp_scores,
			stamps = EXCLUDED.stamps,
			evidence = EXCLUDED.evidence`

	_, err = db.ExecContext(ctx, query,
		row.PassportID, row.Score, row.Status, row.LastScoreTimestamp,
		row.ExpirationDate, row.Error, stampScores, stamps, evidence)
	if err != nil {
		return fmt.Errorf("failed to upsert score: %w", err)
	}
	return nil
}

// Get retrieves the Score row for a Passport.
func (r *ScoreRepository) Get(ctx context.Context, db DBTX, passportID int64) (*ScoreRow, error) {
	query := `
		SELECT passport_id, score, status, last_score_timestamp, expiration_date, error, stamp_scores, stamps, evidence
		FROM scores WHERE passport_id = $1`

	var raw struct {
		stampScores []byte
		stamps      []byte
		evidence    []byte
	}
	row := &ScoreRow{}
	var score string
	err := db.QueryRowContext(ctx, query, passportID).Scan(
		&row.PassportID, &score, &row.Status, &row.LastScoreTimestamp,
		&row.ExpirationDate, &row.Error, &raw.stampScores, &raw.stamps, &raw.evidence)
	if err == sql.ErrNoRows {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}

	row.Score, err = decimal.NewFromString(score)
	if err != nil {
		return nil, fmt.Errorf("failed to parse score: %w", err)
	}
	if err := json.Unmarshal(raw.stampScores, &row.StampScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stamp_scores: %w", err)
	}
	if err := json.Unmarshal(raw.stamps, &row.Stamps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stamps: %w", err)
	}
	if err := json.Unmarshal(raw.evidence, &row.Evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
	}
	return row, nil
}
