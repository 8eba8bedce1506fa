// Copyright 2025 Certen Protocol
//

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/database"
)

// stampItem is one element of the ceramic-cache/embed bulk-write request
// body — spec.md §6 "`[{provider, stamp?}]`".
type stampItem struct {
	Provider string          `json:"provider"`
	Stamp    json.RawMessage `json:"stamp"`
}

// stampMeta is the subset of a credential this HTTP layer needs to
// populate the ceramic_stamps row, independent of C1's own validation
// (which re-parses the same credential later, inside the orchestrator).
type stampMeta struct {
	ExpirationDate string `json:"expirationDate"`
	Proof          struct {
		ProofValue string `json:"proofValue"`
	} `json:"proof"`
}

func parseStampMeta(stamp json.RawMessage) (proofValue string, expiresAt time.Time, err error) {
	var meta stampMeta
	if err := json.Unmarshal(stamp, &meta); err != nil {
		return "", time.Time{}, apierr.Wrap(apierr.BadRequest, "malformed stamp credential", err)
	}
	expiresAt, err = time.Parse(time.RFC3339, meta.ExpirationDate)
	if err != nil {
		return "", time.Time{}, apierr.Wrap(apierr.BadRequest, "malformed stamp expirationDate", err)
	}
	return meta.Proof.ProofValue, expiresAt, nil
}

// replaceStamps soft-deletes the given providers' active rows and inserts
// the new items under sourceApp, the shared body of the ceramic-cache and
// embed bulk-write handlers (spec.md §6).
func (s *Server) replaceStamps(ctx context.Context, address string, items []stampItem, sourceApp database.CeramicSourceApp, sourceScorerID int64) error {
	providers := make([]string, len(items))
	for i, item := range items {
		providers[i] = item.Provider
	}
	if err := s.ceramic.SoftDeleteProviders(ctx, s.db, address, providers); err != nil {
		return apierr.Wrap(apierr.Database, "failed to soft-delete existing stamps", err)
	}

	for _, item := range items {
		if item.Stamp == nil {
			continue // soft-delete-only entry: provider removed, nothing to insert
		}
		proofValue, expiresAt, err := parseStampMeta(item.Stamp)
		if err != nil {
			return err
		}
		if err := s.ceramic.Insert(ctx, s.db, address, item.Provider, item.Stamp, proofValue, sourceApp, sourceScorerID, expiresAt); err != nil {
			return apierr.Wrap(apierr.Database, "failed to insert stamp", err)
		}
	}
	return nil
}

func decodeJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierr.Wrap(apierr.BadRequest, "malformed request body", err)
	}
	return nil
}
