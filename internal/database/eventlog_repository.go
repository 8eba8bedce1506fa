// Copyright 2025 Certen Protocol
//

package database

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventLogRepository appends rows to the Event Log (spec.md §3, §4.5 steps
// 5-6).
type EventLogRepository struct{}

// NewEventLogRepository creates a new event log repository.
func NewEventLogRepository() *EventLogRepository { return &EventLogRepository{} }

// Append inserts one event row.
func (r *EventLogRepository) Append(ctx context.Context, db DBTX, action EventAction, address string, communityID int64, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO event_log (action, address, community_id, data)
		VALUES ($1, $2, $3, $4)`,
		string(action), address, communityID, payload)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ScoreUpdateEnvelope is the single-element [{model, pk, fields}] wire
// format an SCU event's payload carries, per spec.md §9 — any change here
// is breaking since downstream consumers already parse this shape.
type ScoreUpdateEnvelope struct {
	Model  string      `json:"model"`
	PK     int64       `json:"pk"`
	Fields interface{} `json:"fields"`
}

// NewScoreUpdateEnvelope builds the array-of-one SCU payload.
func NewScoreUpdateEnvelope(passportID int64, fields interface{}) []ScoreUpdateEnvelope {
	return []ScoreUpdateEnvelope{{Model: "registry.score", PK: passportID, Fields: fields}}
}

// DedupEventData is the structured payload of one LDP event (spec.md §4.3
// step 9).
type DedupEventData struct {
	Provider   string   `json:"provider"`
	Nullifiers []string `json:"nullifiers"`
}
