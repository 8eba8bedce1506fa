package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/credential"
	"github.com/passportxyz/scorer/internal/dedup"
)

func stamp(provider string, weight string, expiresAt time.Time) dedup.StampWithWeight {
	w, _ := decimal.NewFromString(weight)
	return dedup.StampWithWeight{
		Provider: provider,
		Weight:   w,
		Credential: credential.ValidStamp{
			Provider:  provider,
			ExpiresAt: expiresAt,
		},
	}
}

func TestCalculateSumsDistinctProviderWeights(t *testing.T) {
	now := time.Now()
	lifo := &dedup.Result{
		ValidStamps: []dedup.StampWithWeight{
			stamp("Google", "1.00000", now.Add(time.Hour)),
			stamp("Discord", "2.50000", now.Add(2*time.Hour)),
		},
		ClashingStamps: map[string]dedup.ClashingStamp{},
	}

	result := Calculate(lifo, decimal.NewFromFloat(3))

	if !result.RawScore.Equal(decimal.NewFromFloat(3.5)) {
		t.Errorf("RawScore = %s, want 3.5", result.RawScore)
	}
	if result.BinaryScore != 1 {
		t.Errorf("BinaryScore = %d, want 1 (score >= threshold)", result.BinaryScore)
	}
	if len(result.DedupedStamps) != 0 {
		t.Errorf("expected no deduped stamps, got %d", len(result.DedupedStamps))
	}
}

func TestCalculateBelowThresholdIsNotPassing(t *testing.T) {
	now := time.Now()
	lifo := &dedup.Result{
		ValidStamps:    []dedup.StampWithWeight{stamp("Google", "1.00000", now.Add(time.Hour))},
		ClashingStamps: map[string]dedup.ClashingStamp{},
	}

	result := Calculate(lifo, decimal.NewFromFloat(5))

	if result.BinaryScore != 0 {
		t.Errorf("BinaryScore = %d, want 0 (score below threshold)", result.BinaryScore)
	}
}

func TestCalculateDemotesDuplicateProviderToZero(t *testing.T) {
	now := time.Now()
	lifo := &dedup.Result{
		ValidStamps: []dedup.StampWithWeight{
			stamp("Google", "1.00000", now.Add(time.Hour)),
			stamp("Google", "1.00000", now.Add(2*time.Hour)),
		},
		ClashingStamps: map[string]dedup.ClashingStamp{},
	}

	result := Calculate(lifo, decimal.NewFromFloat(1))

	if !result.RawScore.Equal(decimal.NewFromFloat(1)) {
		t.Errorf("RawScore = %s, want 1 (second Google stamp must not double-count)", result.RawScore)
	}
	if len(result.DedupedStamps) != 1 {
		t.Fatalf("expected exactly one deduped stamp, got %d", len(result.DedupedStamps))
	}
	if !result.DedupedStamps[0].Dedup {
		t.Error("expected demoted stamp to be flagged Dedup=true")
	}
}

func TestCalculateUsesEarliestExpirationAcrossWinners(t *testing.T) {
	now := time.Now()
	earlier := now.Add(time.Hour)
	later := now.Add(5 * time.Hour)
	lifo := &dedup.Result{
		ValidStamps: []dedup.StampWithWeight{
			stamp("Google", "1.00000", later),
			stamp("Discord", "1.00000", earlier),
		},
		ClashingStamps: map[string]dedup.ClashingStamp{},
	}

	result := Calculate(lifo, decimal.Zero)

	if !result.HasExpiresAt {
		t.Fatal("expected HasExpiresAt to be true")
	}
	if !result.ExpiresAt.Equal(earlier) {
		t.Errorf("ExpiresAt = %v, want the earliest winning stamp's expiry %v", result.ExpiresAt, earlier)
	}
}

func TestCalculateIncludesClashingStampsAsDeduped(t *testing.T) {
	now := time.Now()
	lifo := &dedup.Result{
		ValidStamps: nil,
		ClashingStamps: map[string]dedup.ClashingStamp{
			"Google": {Nullifiers: []string{"v1:abc"}, ExpiresAt: now.Add(time.Hour)},
		},
	}

	result := Calculate(lifo, decimal.Zero)

	if len(result.DedupedStamps) != 1 {
		t.Fatalf("expected one deduped stamp from the clash map, got %d", len(result.DedupedStamps))
	}
	if result.DedupedStamps[0].Provider != "Google" {
		t.Errorf("Provider = %q, want Google", result.DedupedStamps[0].Provider)
	}
	if !result.RawScore.IsZero() {
		t.Errorf("RawScore = %s, want 0 (only clashing stamps present)", result.RawScore)
	}
}

func TestCalculateThresholdEqualToScorePasses(t *testing.T) {
	lifo := &dedup.Result{
		ValidStamps:    []dedup.StampWithWeight{stamp("Google", "2.00000", time.Now().Add(time.Hour))},
		ClashingStamps: map[string]dedup.ClashingStamp{},
	}

	result := Calculate(lifo, decimal.NewFromFloat(2))

	if result.BinaryScore != 1 {
		t.Error("expected score exactly equal to threshold to pass")
	}
}
