// Package scoring implements the Score Calculator (C4), grounded on
// spec.md §4.4 and on the provider-weighted accumulation pattern from
// original_source/rust-scorer/src/domain/score.rs.
package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/dedup"
)

// DedupedStamp is a stamp excluded from the raw score, either because
// another stamp of the same provider won the provider-level tie, or
// because LIFO demoted it to a clashing stamp.
type DedupedStamp struct {
	Provider       string
	Score          decimal.Decimal
	Dedup          bool
	ExpirationDate time.Time
	HasExpiration  bool
	LIFO           bool // true when LIFO demoted it, false for a provider-level duplicate
}

// Result is the output of one scoring pass — spec.md §4.4 "ScoringResult".
type Result struct {
	RawScore      decimal.Decimal
	BinaryScore   int
	ExpiresAt     time.Time
	HasExpiresAt  bool
	ValidStamps   []dedup.StampWithWeight
	DedupedStamps []DedupedStamp
}

// Calculate produces a ScoringResult from LIFO output and a threshold.
func Calculate(lifoResult *dedup.Result, threshold decimal.Decimal) *Result {
	rawScore := decimal.Zero
	seenProviders := make(map[string]bool)
	var winners []dedup.StampWithWeight
	var demoted []DedupedStamp
	var expiresAt time.Time
	hasExpiresAt := false

	for _, s := range lifoResult.ValidStamps {
		if seenProviders[s.Provider] {
			demoted = append(demoted, DedupedStamp{
				Provider:       s.Provider,
				Score:          decimal.Zero,
				Dedup:          true,
				ExpirationDate: s.Credential.ExpiresAt,
				HasExpiration:  true,
			})
			continue
		}
		seenProviders[s.Provider] = true
		rawScore = rawScore.Add(s.Weight)
		winners = append(winners, s)

		if !hasExpiresAt || s.Credential.ExpiresAt.Before(expiresAt) {
			expiresAt = s.Credential.ExpiresAt
			hasExpiresAt = true
		}
	}

	for provider, clash := range lifoResult.ClashingStamps {
		demoted = append(demoted, DedupedStamp{
			Provider:       provider,
			Score:          decimal.Zero,
			Dedup:          true,
			ExpirationDate: clash.ExpiresAt,
			HasExpiration:  true,
			LIFO:           true,
		})
	}

	binaryScore := 0
	if rawScore.Cmp(threshold) >= 0 {
		binaryScore = 1
	}

	return &Result{
		RawScore:      rawScore,
		BinaryScore:   binaryScore,
		ExpiresAt:     expiresAt,
		HasExpiresAt:  hasExpiresAt,
		ValidStamps:   winners,
		DedupedStamps: demoted,
	}
}
