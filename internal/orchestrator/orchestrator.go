// Copyright 2025 Certen Protocol
//
// Package orchestrator implements the Scoring Orchestrator (C8), wiring
// C1-C6 under one transaction, grounded on spec.md §4.8 and modeled on
// the teacher's handler-as-coordinator pattern (pkg/server handlers
// composing repositories and domain packages under one request).
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/credential"
	"github.com/passportxyz/scorer/internal/database"
	"github.com/passportxyz/scorer/internal/dedup"
	"github.com/passportxyz/scorer/internal/humanpoints"
	"github.com/passportxyz/scorer/internal/scoring"
	"github.com/passportxyz/scorer/internal/weights"
)

// Response is the rendered scoring result — spec.md §6 "score response
// shape". Numeric fields are pre-formatted strings with exactly 5
// fractional digits, per spec.md §4.4's numeric contract.
type Response struct {
	Address            string                               `json:"address"`
	Score              string                               `json:"score"`
	PassingScore       bool                                 `json:"passing_score"`
	Threshold          string                               `json:"threshold"`
	LastScoreTimestamp time.Time                            `json:"last_score_timestamp"`
	ExpirationDate     *time.Time                           `json:"expiration_timestamp,omitempty"`
	Error              string                               `json:"error,omitempty"`
	StampScores        map[string]string                    `json:"stamp_scores"`
	Stamps             map[string]database.ScoreStampEntry  `json:"stamps"`
	Evidence           database.Evidence                    `json:"evidence"`
	HumanPoints        *humanpoints.Report                  `json:"-"`
}

// Orchestrator runs the full score() flow from spec.md §4.8.
type Orchestrator struct {
	db *database.Client

	communities   *database.CommunityRepository
	passports     *database.PassportRepository
	ceramic       *database.CeramicRepository
	stampsRepo    *database.StampRepository
	scoresRepo    *database.ScoreRepository
	eventLog      *database.EventLogRepository

	validatorIssuers []string
	proofVerifier    credential.ProofVerifier

	weightsLoader *weights.Loader
	dedupEngine   *dedup.Engine
	humanPoints   *humanpoints.Processor

	humanPointsConfig humanpoints.Config
	mtaEnabled        bool
}

// New creates an Orchestrator.
func New(
	db *database.Client,
	communities *database.CommunityRepository,
	passports *database.PassportRepository,
	ceramic *database.CeramicRepository,
	stampsRepo *database.StampRepository,
	scoresRepo *database.ScoreRepository,
	eventLog *database.EventLogRepository,
	trustedIssuers []string,
	proofVerifier credential.ProofVerifier,
	weightsLoader *weights.Loader,
	dedupEngine *dedup.Engine,
	humanPointsProcessor *humanpoints.Processor,
	humanPointsConfig humanpoints.Config,
	mtaEnabled bool,
) *Orchestrator {
	return &Orchestrator{
		db:                db,
		communities:       communities,
		passports:         passports,
		ceramic:           ceramic,
		stampsRepo:        stampsRepo,
		scoresRepo:        scoresRepo,
		eventLog:          eventLog,
		validatorIssuers:  trustedIssuers,
		proofVerifier:     proofVerifier,
		weightsLoader:     weightsLoader,
		dedupEngine:       dedupEngine,
		humanPoints:       humanPointsProcessor,
		humanPointsConfig: humanPointsConfig,
		mtaEnabled:        mtaEnabled,
	}
}

// Score runs score(address, scorer_id, include_human_points) — spec.md
// §4.8 steps 1-10.
func (o *Orchestrator) Score(ctx context.Context, address string, scorerID int64, includeHumanPoints bool) (*Response, error) {
	community, err := o.communities.Get(ctx, o.db, scorerID)
	if err != nil {
		if err == database.ErrCommunityNotFound {
			return nil, apierr.New(apierr.NotFound, "community not found")
		}
		return nil, apierr.Wrap(apierr.Database, "failed to load community", err)
	}

	tx, err := o.db.BeginTx(ctx)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	resp, err := o.scoreInTx(ctx, tx, address, scorerID, community, includeHumanPoints)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to commit scoring transaction", err)
	}
	return resp, nil
}

func (o *Orchestrator) scoreInTx(ctx context.Context, tx *database.Tx, address string, scorerID int64, community *database.Community, includeHumanPoints bool) (*Response, error) {
	passport, err := o.passports.Upsert(ctx, tx, address, scorerID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to upsert passport", err)
	}

	active, err := o.ceramic.ActiveForAddress(ctx, tx, address)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load ceramic stamps", err)
	}

	if len(active) == 0 {
		return o.zeroScorePath(ctx, tx, passport, address)
	}

	latest, err := o.stampsRepo.LatestPerProvider(ctx, tx, address)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load latest stamps", err)
	}

	validator := credential.New(o.validatorIssuers, o.proofVerifier)
	var raw []json.RawMessage
	for _, c := range latest {
		raw = append(raw, c.Stamp)
	}
	validStamps := validator.ValidateBatch(raw, address)

	weightsByProvider, threshold, err := o.weightsLoader.Load(ctx, tx, scorerID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to load weights", err)
	}

	lifoResult, err := o.dedupEngine.Run(ctx, tx, validStamps, address, scorerID, weightsByProvider)
	if err != nil {
		return nil, err
	}

	scored := scoring.Calculate(lifoResult, threshold)

	if err := o.persist(ctx, tx, passport, address, scorerID, scored, threshold); err != nil {
		return nil, err
	}

	var report *humanpoints.Report
	if includeHumanPoints && community.HumanPointsProgram {
		if humanpoints.ShouldRun(o.humanPointsConfig, scored.BinaryScore) {
			if err := o.humanPoints.Process(ctx, tx, address, scorerID, scored.ValidStamps, o.mtaEnabled); err != nil {
				return nil, err
			}
		}
		var err error
		report, err = o.humanPoints.BuildReport(ctx, tx, address, scorerID)
		if err != nil {
			return nil, err
		}
	}

	return buildResponse(address, scored, threshold, report), nil
}

// zeroScorePath handles spec.md §4.8 step 4's short-circuit when there are
// no non-deleted, non-revoked ceramic-cache entries to score. It does not
// commit tx itself — Score commits once for every path.
func (o *Orchestrator) zeroScorePath(ctx context.Context, tx *database.Tx, passport *database.Passport, address string) (*Response, error) {
	now := time.Now()
	evidence := database.Evidence{
		Type:      "ThresholdScoreCheck",
		Success:   false,
		RawScore:  "0.00000",
		Threshold: "0.00000",
	}
	row := &database.ScoreRow{
		PassportID:         passport.ID,
		Score:              decimal.Zero,
		Status:             "DONE",
		LastScoreTimestamp: now,
		StampScores:        map[string]string{},
		Stamps:             map[string]database.ScoreStampEntry{},
		Evidence:           evidence,
	}
	if err := o.scoresRepo.Upsert(ctx, tx, row); err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to upsert zero score", err)
	}
	if err := o.eventLog.Append(ctx, tx, database.EventActionScoreUpdate, address, passport.CommunityID,
		database.NewScoreUpdateEnvelope(passport.ID, row)); err != nil {
		return nil, apierr.Wrap(apierr.Database, "failed to append zero-score SCU event", err)
	}
	return &Response{
		Address:            address,
		Score:              "0.00000",
		PassingScore:       false,
		Threshold:          "0.00000",
		LastScoreTimestamp: now,
		StampScores:        map[string]string{},
		Stamps:             map[string]database.ScoreStampEntry{},
		Evidence:           evidence,
	}, nil
}

// persist runs spec.md §4.5 steps 3-6 (step 1, the passport upsert, and
// step 2's delete via stampsRepo, run inline here and in scoreInTx).
// Note: LDP events for clashing providers are appended by the dedup engine
// itself (spec.md §4.3 step 9), not here.
func (o *Orchestrator) persist(ctx context.Context, tx *database.Tx, passport *database.Passport, address string, communityID int64, scored *scoring.Result, threshold decimal.Decimal) error {
	if err := o.stampsRepo.DeleteAllForPassport(ctx, tx, passport.ID); err != nil {
		return apierr.Wrap(apierr.Database, "failed to delete stamps", err)
	}

	stampScores := map[string]string{}
	stampEntries := map[string]database.ScoreStampEntry{}

	for _, s := range scored.ValidStamps {
		if err := o.stampsRepo.BulkInsert(ctx, tx, passport.ID, s.Provider, s.Credential.Credential, s.Credential.ExpiresAt); err != nil {
			return apierr.Wrap(apierr.Database, "failed to insert stamp", err)
		}
		stampScores[s.Provider] = s.Weight.String()
		stampEntries[s.Provider] = database.ScoreStampEntry{
			Score:          s.Weight.String(),
			Dedup:          false,
			ExpirationDate: s.Credential.ExpiresAt.Format(time.RFC3339),
		}
	}
	for _, d := range scored.DedupedStamps {
		stampScores[d.Provider] = "0"
		entry := database.ScoreStampEntry{Score: "0", Dedup: true}
		if d.HasExpiration {
			entry.ExpirationDate = d.ExpirationDate.Format(time.RFC3339)
		}
		stampEntries[d.Provider] = entry
	}

	now := time.Now()
	status := "DONE"
	evidence := database.Evidence{
		Type:      "ThresholdScoreCheck",
		Success:   scored.BinaryScore == 1,
		RawScore:  scored.RawScore.StringFixed(5),
		Threshold: threshold.StringFixed(5),
	}

	row := &database.ScoreRow{
		PassportID:         passport.ID,
		Score:              decimal.NewFromInt(int64(scored.BinaryScore)),
		Status:             status,
		LastScoreTimestamp: now,
		StampScores:        stampScores,
		Stamps:             stampEntries,
		Evidence:           evidence,
	}
	if scored.HasExpiresAt {
		row.ExpirationDate.Time = scored.ExpiresAt
		row.ExpirationDate.Valid = true
	}

	if err := o.scoresRepo.Upsert(ctx, tx, row); err != nil {
		return apierr.Wrap(apierr.Database, "failed to upsert score", err)
	}

	if err := o.eventLog.Append(ctx, tx, database.EventActionScoreUpdate, address, communityID,
		database.NewScoreUpdateEnvelope(passport.ID, row)); err != nil {
		return apierr.Wrap(apierr.Database, "failed to append SCU event", err)
	}

	return nil
}

func buildResponse(address string, scored *scoring.Result, threshold decimal.Decimal, report *humanpoints.Report) *Response {
	resp := &Response{
		Address:            address,
		Score:              decimal.NewFromInt(int64(scored.BinaryScore)).StringFixed(5),
		PassingScore:       scored.BinaryScore == 1,
		Threshold:          threshold.StringFixed(5),
		LastScoreTimestamp: time.Now(),
		StampScores:        map[string]string{},
		Stamps:             map[string]database.ScoreStampEntry{},
		Evidence: database.Evidence{
			Type:      "ThresholdScoreCheck",
			Success:   scored.BinaryScore == 1,
			RawScore:  scored.RawScore.StringFixed(5),
			Threshold: threshold.StringFixed(5),
		},
		HumanPoints: report,
	}
	if scored.HasExpiresAt {
		t := scored.ExpiresAt
		resp.ExpirationDate = &t
	}
	for _, s := range scored.ValidStamps {
		resp.StampScores[s.Provider] = s.Weight.StringFixed(5)
		resp.Stamps[s.Provider] = database.ScoreStampEntry{
			Score:          s.Weight.StringFixed(5),
			Dedup:          false,
			ExpirationDate: s.Credential.ExpiresAt.Format(time.RFC3339),
		}
	}
	for _, d := range scored.DedupedStamps {
		resp.StampScores[d.Provider] = "0.00000"
		entry := database.ScoreStampEntry{Score: "0.00000", Dedup: true}
		if d.HasExpiration {
			entry.ExpirationDate = d.ExpirationDate.Format(time.RFC3339)
		}
		resp.Stamps[d.Provider] = entry
	}
	return resp
}
