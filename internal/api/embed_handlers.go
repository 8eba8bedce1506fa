// Copyright 2025 Certen Protocol
//

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/auth"
	"github.com/passportxyz/scorer/internal/database"
)

type weightsResponse struct {
	Weights   map[string]string `json:"weights"`
	Threshold string            `json:"threshold"`
}

// handleEmbedWeights serves GET /internal/embed/weights?community_id=… —
// no auth; falls back to the fixed default weights when community_id is
// omitted (spec.md §6).
func (s *Server) handleEmbedWeights(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	raw := r.URL.Query().Get("community_id")

	out := weightsResponse{Weights: map[string]string{}}
	if raw == "" {
		defaults, threshold := database.DefaultWeights()
		for provider, weight := range defaults {
			out.Weights[provider] = weight.String()
		}
		out.Threshold = threshold.String()
		writeJSON(w, http.StatusOK, out)
		return
	}

	communityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeAPIError(w, s.logger, apierr.New(apierr.BadRequest, "invalid community_id"))
		return
	}
	weights, threshold, err := s.weights.Load(ctx, s.db, communityID)
	if err != nil {
		if err == database.ErrScorerConfigNotFound {
			writeAPIError(w, s.logger, apierr.New(apierr.NotFound, "scorer config not found"))
			return
		}
		writeAPIError(w, s.logger, apierr.Wrap(apierr.Database, "failed to load weights", err))
		return
	}
	for provider, weight := range weights {
		out.Weights[provider] = weight.String()
	}
	out.Threshold = threshold.String()
	writeJSON(w, http.StatusOK, out)
}

// handleEmbedStampsPost serves POST /internal/embed/stamps/{address} —
// soft-delete + bulk-insert with source_app=EMBED, then rescore (spec.md
// §6).
func (s *Server) handleEmbedStampsPost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	var body struct {
		ScorerID int64       `json:"scorer_id"`
		Stamps   []stampItem `json:"stamps"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	if err := s.replaceStamps(ctx, address, body.Stamps, database.SourceAppEmbed, body.ScorerID); err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	resp, err := s.orchestrator.Score(ctx, address, body.ScorerID, false)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderScore(resp))
}

// handleEmbedScore serves GET /internal/embed/score/{scorer_id}/{address}
// — stamps + score, no human points (spec.md §6).
func (s *Server) handleEmbedScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, scorerID, err := s.pathAddressAndScorer(r)
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

// handleValidateAPIKey serves GET /internal/embed/validate-api-key —
// returns {embed_rate_limit} for the caller's key (spec.md §6).
func (s *Server) handleValidateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rawKey := auth.ExtractKey(r.Header.Get("X-API-Key"), r.Header.Get("Authorization"))
	cred, err := s.apiKeys.Verify(ctx, rawKey)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	out := map[string]interface{}{"embed_rate_limit": nil}
	if cred.EmbedRateLimit.Valid {
		out["embed_rate_limit"] = cred.EmbedRateLimit.String
	}
	writeJSON(w, http.StatusOK, out)
}
