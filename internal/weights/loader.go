// Package weights implements the Weights Loader (C2): resolving
// (weights, threshold) for a scorer id with the binary-then-weighted
// fallback order from spec.md §4.2.
package weights

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/database"
)

// Loader resolves scorer weight configuration.
type Loader struct {
	repo *database.ScorerConfigRepository
}

// New creates a Loader.
func New(repo *database.ScorerConfigRepository) *Loader {
	return &Loader{repo: repo}
}

// Load returns (weights, threshold) for a scorer id, or
// database.ErrScorerConfigNotFound if no scorer config exists at all.
func (l *Loader) Load(ctx context.Context, db database.DBTX, scorerID int64) (map[string]decimal.Decimal, decimal.Decimal, error) {
	cfg, err := l.repo.Load(ctx, db, scorerID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return cfg.Weights, cfg.Threshold, nil
}

// Default returns the fixed provider→1.0 map used only by the
// weights-query endpoint when community_id is omitted.
func Default() (map[string]decimal.Decimal, decimal.Decimal) {
	return database.DefaultWeights()
}
