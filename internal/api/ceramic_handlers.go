// Copyright 2025 Certen Protocol
//

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/database"
)

type ceramicBulkResponse struct {
	Success bool                                 `json:"success"`
	Stamps  map[string]database.ScoreStampEntry `json:"stamps"`
	Score   *scoreDTO                            `json:"score,omitempty"`
}

// handleCeramicBulk returns the shared POST/PATCH /ceramic-cache/stamps/bulk
// handler, differing only in response status (201 vs 200) — spec.md §6.
func (s *Server) handleCeramicBulk(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if r.Header.Get("X-Use-Rust-Scorer") != "true" {
			writeJSONError(w, "not found", http.StatusNotFound)
			return
		}

		address, err := s.jwtAddress(r)
		if err != nil {
			writeAPIError(w, s.logger, err)
			return
		}

		var items []stampItem
		if err := decodeJSONBody(r, &items); err != nil {
			writeAPIError(w, s.logger, err)
			return
		}

		if err := s.replaceStamps(ctx, address, items, database.SourceAppPassport, s.ceramicCacheScorerID); err != nil {
			writeAPIError(w, s.logger, err)
			return
		}

		resp, err := s.orchestrator.Score(ctx, address, s.ceramicCacheScorerID, true)
		if err != nil {
			writeAPIError(w, s.logger, err)
			return
		}
		dto := renderScore(resp)
		writeJSON(w, status, ceramicBulkResponse{Success: true, Stamps: resp.Stamps, Score: &dto})
	}
}

// handleCeramicBulkDelete serves DELETE /ceramic-cache/stamps/bulk —
// soft-delete only, no rescore (spec.md §6).
func (s *Server) handleCeramicBulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if r.Header.Get("X-Use-Rust-Scorer") != "true" {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	address, err := s.jwtAddress(r)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	var items []stampItem
	if err := decodeJSONBody(r, &items); err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	providers := make([]string, len(items))
	for i, item := range items {
		providers[i] = item.Provider
	}
	if err := s.ceramic.SoftDeleteProviders(ctx, s.db, address, providers); err != nil {
		writeAPIError(w, s.logger, apierr.Wrap(apierr.Database, "failed to soft-delete stamps", err))
		return
	}

	writeJSON(w, http.StatusOK, ceramicBulkResponse{Success: true, Stamps: map[string]database.ScoreStampEntry{}})
}

// handleCeramicScore serves GET /ceramic-cache/score/{address} — JWT with
// DID address required to equal the path address (spec.md §6).
func (s *Server) handleCeramicScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	pathAddress, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	address, err := s.jwt.RequireAddress(bearerToken(r), pathAddress)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	resp, err := s.orchestrator.Score(ctx, address, s.ceramicCacheScorerID, true)
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, renderScore(resp))
}

func (s *Server) jwtAddress(r *http.Request) (string, error) {
	return s.jwt.VerifyAddress(bearerToken(r))
}

func bearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
