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

// ScorerConfigRepository resolves (weights, threshold) for a scorer id with
// the binary-then-weighted fallback order from spec.md §4.2, grounded on
// original_source/rust-scorer/src/db/queries/weights.rs.
type ScorerConfigRepository struct{}

// NewScorerConfigRepository creates a new scorer config repository.
func NewScorerConfigRepository() *ScorerConfigRepository { return &ScorerConfigRepository{} }

// Load looks up a binary-weighted scorer row first, falling back to a
// weighted-scorer row, returning ErrScorerConfigNotFound if neither exists.
func (r *ScorerConfigRepository) Load(ctx context.Context, db DBTX, scorerID int64) (*ScorerConfig, error) {
	cfg, err := r.loadByType(ctx, db, scorerID, ScorerTypeBinary)
	if err == nil {
		return cfg, nil
	}
	if err != ErrScorerConfigNotFound {
		return nil, err
	}
	cfg, err = r.loadByType(ctx, db, scorerID, ScorerTypeWeighted)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *ScorerConfigRepository) loadByType(ctx context.Context, db DBTX, scorerID int64, t ScorerType) (*ScorerConfig, error) {
	var weightsJSON []byte
	var threshold string
	cfg := &ScorerConfig{ScorerID: scorerID, Type: t}

	err := db.QueryRowContext(ctx, `
		SELECT weights, threshold FROM scorer_configs
		WHERE scorer_id = $1 AND scorer_type = $2`, scorerID, string(t),
	).Scan(&weightsJSON, &threshold)
	if err == sql.ErrNoRows {
		return nil, ErrScorerConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scorer config: %w", err)
	}

	var weightsRaw map[string]string
	if err := json.Unmarshal(weightsJSON, &weightsRaw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	cfg.Weights = make(map[string]decimal.Decimal, len(weightsRaw))
	for provider, w := range weightsRaw {
		d, err := decimal.NewFromString(w)
		if err != nil {
			return nil, fmt.Errorf("failed to parse weight for %s: %w", provider, err)
		}
		cfg.Weights[provider] = d
	}

	cfg.Threshold, err = decimal.NewFromString(threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to parse threshold: %w", err)
	}

	return cfg, nil
}

// DefaultWeights returns the fixed provider→1.0 map used only by the
// weights-query endpoint when no community_id is supplied, per spec.md
// §4.2 and original_source/rust-scorer/src/db/queries/weights.rs's
// get_default_scorer_weights.
func DefaultWeights() (map[string]decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	providers := []string{
		"Ens", "NFT", "Google", "Twitter", "Discord",
		"Github", "Linkedin", "Facebook", "Brightid", "Poh",
	}
	weights := make(map[string]decimal.Decimal, len(providers))
	for _, p := range providers {
		weights[p] = one
	}
	return weights, decimal.NewFromInt(20)
}
