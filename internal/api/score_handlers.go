// Copyright 2025 Certen Protocol
//

package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/auth"
)

// handleScoreV2 serves GET /v2/stamps/{scorer_id}/score/{address} — API
// key auth with read_scores, analytics recorded on both outcomes
// (spec.md §6, §7).
func (s *Server) handleScoreV2(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, scorerID, err := s.pathAddressAndScorer(r)
	if err != nil {
		s.recordAndFail(ctx, r, address, 0, err, w)
		return
	}

	rawKey := auth.ExtractKey(r.Header.Get("X-API-Key"), r.Header.Get("Authorization"))
	if _, err := s.apiKeys.VerifyReadScores(ctx, rawKey); err != nil {
		s.recordAndFail(ctx, r, address, scorerID, err, w)
		return
	}

	resp, err := s.orchestrator.Score(ctx, address, scorerID, true)
	s.recordAnalytics(ctx, r, address, scorerID, err)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderScore(resp))
}

// handleInternalScoreV2 serves GET /internal/score/v2/{scorer_id}/{address}
// — no auth (internal load-balancer only), human points never attached.
func (s *Server) handleInternalScoreV2(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	scorerID, err := parseScorerID(r.PathValue("scorer_id"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	address, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	resp, err := s.orchestrator.Score(ctx, address, scorerID, false)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderScore(resp))
}

func (s *Server) pathAddressAndScorer(r *http.Request) (address string, scorerID int64, err error) {
	scorerID, err = parseScorerID(r.PathValue("scorer_id"))
	if err != nil {
		return "", 0, err
	}
	address, err = parseAddress(r.PathValue("address"))
	if err != nil {
		return "", 0, err
	}
	return address, scorerID, nil
}

func (s *Server) recordAnalytics(ctx context.Context, r *http.Request, address string, scorerID int64, callErr error) {
	var communityID sql.NullInt64
	if scorerID != 0 {
		communityID = sql.NullInt64{Int64: scorerID, Valid: true}
	}
	apiErr := apierr.As(callErr)
	status := http.StatusOK
	success := callErr == nil
	if !success {
		status = apiErr.Kind.StatusCode()
	}
	if err := s.analytics.Record(ctx, s.db, r.URL.Path, address, communityID, status, success); err != nil {
		s.logger.Printf("failed to record analytics event: %v", err)
	}
}

func (s *Server) recordAndFail(ctx context.Context, r *http.Request, address string, scorerID int64, err error, w http.ResponseWriter) {
	s.recordAnalytics(ctx, r, address, scorerID, err)
	writeAPIError(w, s.logger, err)
}
