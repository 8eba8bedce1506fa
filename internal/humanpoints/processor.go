// Package humanpoints implements the Human-Points Processor (C6), the
// bonus-point rule engine layered on database.HumanPointsRepository,
// grounded on spec.md §4.6 and modeled on the teacher's repository-plus-
// rule-layer split (pkg/database repositories consumed by pkg/server
// handlers).
package humanpoints

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/dedup"
	"github.com/passportxyz/scorer/internal/database"
)

// Action codes — spec.md Glossary "Provider→action table (human points)"
// and §3's fixed 3-letter action identifiers.
const (
	ActionHumanKeys       = "HKY"
	ActionScoringBonus    = "SCB"
	ActionMetaMaskOG      = "MTA"
	ActionSeasonedOG      = "SOG"
	ActionChosenOne       = "TCO"
	ActionPassportMint    = "PMT"
	ActionHumanIDMint     = "HIM"
)

// MTACap is the global cap on MetaMask OG awards — spec.md §4.6 step 4.
const MTACap = 5000

// noChain/noProvider/noTxHash are non-NULL sentinels for the nullable
// columns of the composite unique key on human_points_entries. Postgres
// never considers NULL equal to NULL under a unique constraint, so an
// action insert that leaves chain_id/provider/tx_hash at their Go zero
// value (NULL) is never deduped by ON CONFLICT — the original source
// avoids this the same way, inserting '' / 0 rather than NULL
// (original_source/rust-scorer/src/domain/human_points.rs).
var (
	noChain    = sql.NullInt64{Int64: 0, Valid: true}
	noProvider = sql.NullString{String: "", Valid: true}
	noTxHash   = sql.NullString{String: "", Valid: true}
)

// providerActionTable maps a provider name to its fixed action code —
// spec.md Glossary.
var providerActionTable = map[string]string{
	"SelfStakingBronze":       "ISB",
	"SelfStakingSilver":       "ISS",
	"SelfStakingGold":         "ISG",
	"BeginnerCommunityStaker": "CSB",
	"ExperiencedCommunityStaker": "CSE",
	"TrustedCitizen":          "CST",
	"HolonymGovIdProvider":    "HGO",
	"HolonymPhone":            "HPH",
	"CleanHands":              "HCH",
	"Biometrics":              "HBI",
}

// Processor runs the human-points rule engine inside a caller-supplied
// transaction.
type Processor struct {
	repo *database.HumanPointsRepository
}

// New creates a Processor.
func New(repo *database.HumanPointsRepository) *Processor {
	return &Processor{repo: repo}
}

// Config gates whether the processor runs at all — spec.md §4.6 preamble.
type Config struct {
	ProgramEnabled   bool
	WriteEnabled     bool
	StartTimestamp   time.Time
}

// ShouldRun reports whether the human-points rule engine applies to this
// scoring request.
func ShouldRun(cfg Config, binaryScore int) bool {
	return cfg.ProgramEnabled && cfg.WriteEnabled && binaryScore == 1 && !time.Now().Before(cfg.StartTimestamp)
}

// Process runs steps 1-5 of spec.md §4.6 against the valid stamps persisted
// earlier in the same, not yet committed, transaction. mtaEnabled gates
// step 4 independently of the overall Config gate (HUMAN_POINTS_MTA_ENABLED).
func (p *Processor) Process(ctx context.Context, db database.DBTX, address string, communityID int64, validStamps []dedup.StampWithWeight, mtaEnabled bool) error {
	if err := p.repo.MarkQualified(ctx, db, address, communityID); err != nil {
		return apierr.Wrap(apierr.Database, "failed to mark qualified user", err)
	}

	for _, stamp := range validStamps {
		if len(stamp.Credential.Nullifiers) > 0 {
			has, err := p.repo.HasEntryForProvider(ctx, db, address, ActionHumanKeys, stamp.Provider)
			if err != nil {
				return apierr.Wrap(apierr.Database, "failed to check HKY entry", err)
			}
			if !has {
				lastNullifier := stamp.Credential.Nullifiers[len(stamp.Credential.Nullifiers)-1]
				if err := p.repo.InsertEntry(ctx, db, database.HumanPointsEntry{
					Address:  address,
					Action:   ActionHumanKeys,
					Provider: sql.NullString{String: stamp.Provider, Valid: true},
					TxHash:   sql.NullString{String: lastNullifier, Valid: true},
				}); err != nil {
					return apierr.Wrap(apierr.Database, "failed to insert HKY entry", err)
				}
			}
		}

		if action, ok := providerActionTable[stamp.Provider]; ok {
			if err := p.repo.InsertEntry(ctx, db, database.HumanPointsEntry{
				Address:  address,
				Action:   action,
				ChainID:  noChain,
				Provider: noProvider,
				TxHash:   noTxHash,
			}); err != nil {
				return apierr.Wrap(apierr.Database, "failed to insert provider-action entry", err)
			}
		}
	}

	communityCount, err := p.repo.QualifiedCommunityCount(ctx, db, address)
	if err != nil {
		return apierr.Wrap(apierr.Database, "failed to count qualified communities", err)
	}
	if communityCount >= 4 {
		if err := p.repo.InsertEntry(ctx, db, database.HumanPointsEntry{
			Address: address, Action: ActionScoringBonus,
			ChainID: noChain, Provider: noProvider, TxHash: noTxHash,
		}); err != nil {
			return apierr.Wrap(apierr.Database, "failed to insert SCB entry", err)
		}
	}

	if mtaEnabled {
		onList, err := p.repo.IsListMember(ctx, db, "MetaMaskOG", address)
		if err != nil {
			return apierr.Wrap(apierr.Database, "failed to check MetaMaskOG membership", err)
		}
		if onList {
			count, err := p.repo.CountEntriesByAction(ctx, db, ActionMetaMaskOG)
			if err != nil {
				return apierr.Wrap(apierr.Database, "failed to count MTA entries", err)
			}
			if count < MTACap {
				if err := p.repo.InsertEntry(ctx, db, database.HumanPointsEntry{
					Address: address, Action: ActionMetaMaskOG,
					ChainID: noChain, Provider: noProvider, TxHash: noTxHash,
				}); err != nil {
					return apierr.Wrap(apierr.Database, "failed to insert MTA entry", err)
				}
			}
		}
	}

	for list, action := range map[string]string{"SeasonedPassportOG": ActionSeasonedOG, "ChosenOne": ActionChosenOne} {
		onList, err := p.repo.IsListMember(ctx, db, list, address)
		if err != nil {
			return apierr.Wrap(apierr.Database, "failed to check "+list+" membership", err)
		}
		if onList {
			if err := p.repo.InsertEntry(ctx, db, database.HumanPointsEntry{
				Address: address, Action: action,
				ChainID: noChain, Provider: noProvider, TxHash: noTxHash,
			}); err != nil {
				return apierr.Wrap(apierr.Database, "failed to insert "+action+" entry", err)
			}
		}
	}

	return nil
}

// PointsBreakdown is one (action[, chain]) entry in points_data or
// possible_points_data — spec.md §4.6 "Reporting".
type PointsBreakdown struct {
	Key     string
	Points  decimal.Decimal
}

// Report is the points_data/possible_points_data pair, attached to a score
// response whenever human points are requested and the community's program
// is enabled — spec.md §4.6 "Reporting".
type Report struct {
	IsEligible         bool
	TotalPoints        decimal.Decimal
	Breakdown          []PointsBreakdown
	PossibleTotal      decimal.Decimal
	PossibleBreakdown  []PointsBreakdown
}

// BuildReport computes points_data/possible_points_data independently of
// whether ShouldRun gated the write path — spec.md §4.6 "Reporting" runs
// regardless of award outcome.
func (p *Processor) BuildReport(ctx context.Context, db database.DBTX, address string, communityID int64) (*Report, error) {
	entries, err := p.repo.EntriesForAddress(ctx, db, address)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load human points entries", err)
	}
	multiplier, err := p.repo.Multiplier(ctx, db, address)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load multiplier", err)
	}
	configs, err := p.repo.ProgramConfigs(ctx, db)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load program configs", err)
	}

	total := decimal.Zero
	var breakdown []PointsBreakdown
	for _, e := range entries {
		if e.Action == ActionHumanIDMint {
			continue
		}
		points, ok := configs[e.Action]
		if !ok {
			continue
		}
		awarded := points.Mul(multiplier)
		total = total.Add(awarded)

		key := e.Action
		breakdown = append(breakdown, PointsBreakdown{Key: key, Points: awarded})
		if e.ChainID.Valid {
			breakdown = append(breakdown, PointsBreakdown{Key: key + "_" + strconv.FormatInt(e.ChainID.Int64, 10), Points: awarded})
		}
	}

	possibleTotal := decimal.Zero
	var possibleBreakdown []PointsBreakdown
	for action, points := range configs {
		awarded := points.Mul(multiplier)
		possibleTotal = possibleTotal.Add(awarded)
		possibleBreakdown = append(possibleBreakdown, PointsBreakdown{Key: action, Points: awarded})
	}

	qualified, err := p.repo.QualifiedCommunityCount(ctx, db, address)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to count qualified communities for eligibility", err)
	}

	return &Report{
		IsEligible:        qualified > 0,
		TotalPoints:       total,
		Breakdown:         breakdown,
		PossibleTotal:     decimal.Zero, // total_points reported as 0 to match existing consumers (spec.md §4.6)
		PossibleBreakdown: possibleBreakdown,
	}, nil
}
