// Copyright 2025 Certen Protocol
//

package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel not-found errors, one per repository, matching the teacher's
// ErrAnchorNotFound convention (pkg/database/repository_anchor.go).
var (
	ErrPassportNotFound     = errors.New("passport not found")
	ErrScoreNotFound        = errors.New("score not found")
	ErrCommunityNotFound    = errors.New("community not found")
	ErrScorerConfigNotFound = errors.New("scorer config not found")
	ErrAPIKeyNotFound       = errors.New("api key not found")
)

// Community mirrors spec.md §3's Community entity.
type Community struct {
	ID                 int64
	HumanPointsProgram bool
}

// ScorerType distinguishes the binary/weighted scorer config fallback order
// from spec.md §4.2.
type ScorerType string

const (
	ScorerTypeBinary   ScorerType = "BINARY"
	ScorerTypeWeighted ScorerType = "WEIGHTED"
)

// ScorerConfig is the (weights, threshold) pair resolved for a scorer id.
type ScorerConfig struct {
	ScorerID  int64
	Type      ScorerType
	Weights   map[string]decimal.Decimal
	Threshold decimal.Decimal
}

// Passport identifies by (address, community_id), per spec.md §3.
type Passport struct {
	ID          int64
	Address     string
	CommunityID int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StampRow is a persisted Stamp row.
type StampRow struct {
	ID         int64
	PassportID int64
	Provider   string
	Credential json.RawMessage
	ExpiresAt  time.Time
}

// ScoreStampEntry is one entry of the Score.stamps JSON map.
type ScoreStampEntry struct {
	Score          string `json:"score"`
	Dedup          bool   `json:"dedup"`
	ExpirationDate string `json:"expiration_date,omitempty"`
}

// Evidence is the fixed-shape evidence blob on a Score row (spec.md §4.5 step 4).
type Evidence struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	RawScore  string `json:"rawScore"`
	Threshold string `json:"threshold"`
}

// ScoreRow is a persisted Score row.
type ScoreRow struct {
	PassportID         int64
	Score              decimal.Decimal
	Status             string // DONE | ERROR
	LastScoreTimestamp time.Time
	ExpirationDate      sql.NullTime
	Error               sql.NullString
	StampScores         map[string]string
	Stamps              map[string]ScoreStampEntry
	Evidence            Evidence
}

// HashScorerLink is a row of the nullifier registry (spec.md §3, §4.3).
type HashScorerLink struct {
	Hash        string
	CommunityID int64
	Address     string
	ExpiresAt   time.Time
}

// CeramicSourceApp distinguishes PASSPORT (JWT) vs EMBED writes.
type CeramicSourceApp int

const (
	SourceAppPassport CeramicSourceApp = 1
	SourceAppEmbed    CeramicSourceApp = 2
)

// CeramicStamp is a cached stamp row written by the ceramic-cache/embed
// write paths (spec.md §3 "Ceramic Stamp Cache").
type CeramicStamp struct {
	ID             int64
	Address        string
	Provider       string
	Stamp          json.RawMessage
	ProofValue     string
	SourceApp      sql.NullInt16
	SourceScorerID sql.NullInt64
	DeletedAt      sql.NullTime
	ExpiresAt      sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventAction is one of the append-only Event Log action codes.
type EventAction string

const (
	EventActionLIFODedup   EventAction = "LDP"
	EventActionScoreUpdate EventAction = "SCU"
)

// HumanPointsEntry is one row of the human-points ledger.
type HumanPointsEntry struct {
	Address  string
	Action   string
	ChainID  sql.NullInt64
	Provider sql.NullString
	TxHash   sql.NullString
}

// StakeRow is the per-(chain,staker,stakee) running sum (spec.md §3).
type StakeRow struct {
	Chain              string
	Staker             string
	Stakee             string
	CurrentAmount      decimal.Decimal
	LockTime           sql.NullTime
	UnlockTime         sql.NullTime
	LastUpdatedInBlock int64
}

// StakeEvent is an append-only stake event row.
type StakeEvent struct {
	Chain       string
	EventType   string // SST, CST, SSW, CSW, SLA, REL
	Staker      string
	Stakee      string
	Amount      decimal.Decimal
	BlockNumber int64
	TxHash      string
	RoundID     sql.NullInt64
}

// APIKeyCredential is the stored API key row (spec.md §6 "API key auth").
type APIKeyCredential struct {
	KeyPrefix      string
	KeyHash        string
	ReadScores     bool
	EmbedRateLimit sql.NullString
}
