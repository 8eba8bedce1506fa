// Copyright 2025 Certen Protocol
//

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/passportxyz/scorer/internal/apierr"
	"github.com/passportxyz/scorer/internal/database"
)

// handleContributorStatistics serves
// GET /internal/cgrants/contributor_statistics?address=… (spec.md §6).
func (s *Server) handleContributorStatistics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, err := parseAddress(r.URL.Query().Get("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	numGrants, total, err := s.cgrants.ContributorStatistics(ctx, s.db, address)
	if err != nil {
		writeAPIError(w, s.logger, apierr.Wrap(apierr.Database, "failed to load contributor statistics", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"num_grants_contribute_to":  numGrants,
		"total_contribution_amount": total,
	})
}

type stakeRowDTO struct {
	Chain              string  `json:"chain"`
	Staker             string  `json:"staker"`
	Stakee             string  `json:"stakee"`
	CurrentAmount      string  `json:"current_amount"`
	LockTime           *string `json:"lock_time,omitempty"`
	UnlockTime         *string `json:"unlock_time,omitempty"`
	LastUpdatedInBlock int64   `json:"last_updated_in_block"`
}

// handleStakeSnapshot serves GET /internal/stake/gtc/{address}.
func (s *Server) handleStakeSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}

	rows, err := s.stakes.Snapshot(ctx, s.db, address)
	if err != nil {
		writeAPIError(w, s.logger, apierr.Wrap(apierr.Database, "failed to load stake snapshot", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stakes": renderStakeRows(rows)})
}

func renderStakeRows(rows []database.StakeRow) []stakeRowDTO {
	out := make([]stakeRowDTO, len(rows))
	for i, row := range rows {
		out[i] = stakeRowDTO{
			Chain:              row.Chain,
			Staker:             row.Staker,
			Stakee:             row.Stakee,
			CurrentAmount:      row.CurrentAmount.String(),
			LastUpdatedInBlock: row.LastUpdatedInBlock,
		}
		if row.LockTime.Valid {
			v := row.LockTime.Time.Format(time.RFC3339)
			out[i].LockTime = &v
		}
		if row.UnlockTime.Valid {
			v := row.UnlockTime.Time.Format(time.RFC3339)
			out[i].UnlockTime = &v
		}
	}
	return out
}

type stakeEventDTO struct {
	Chain       string `json:"chain"`
	EventType   string `json:"event_type"`
	Staker      string `json:"staker"`
	Stakee      string `json:"stakee"`
	Amount      string `json:"amount"`
	BlockNumber int64  `json:"block_number"`
	TxHash      string `json:"tx_hash"`
}

// handleLegacyStake serves
// GET /internal/stake/legacy-gtc/{address}/{round_id}.
func (s *Server) handleLegacyStake(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	roundID, err := strconv.ParseInt(r.PathValue("round_id"), 10, 64)
	if err != nil {
		writeAPIError(w, s.logger, apierr.New(apierr.BadRequest, "invalid round_id"))
		return
	}

	events, err := s.stakes.LegacyEventsForRound(ctx, s.db, address, roundID)
	if err != nil {
		writeAPIError(w, s.logger, apierr.Wrap(apierr.Database, "failed to load legacy stake events", err))
		return
	}

	out := make([]stakeEventDTO, len(events))
	for i, e := range events {
		out[i] = stakeEventDTO{
			Chain: e.Chain, EventType: e.EventType, Staker: e.Staker, Stakee: e.Stakee,
			Amount: e.Amount.String(), BlockNumber: e.BlockNumber, TxHash: e.TxHash,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": out})
}

// handleAllowList serves GET /internal/allow-list/{list}/{address}.
func (s *Server) handleAllowList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	address, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeAPIError(w, s.logger, err)
		return
	}
	list := r.PathValue("list")

	isMember, err := s.addressList.IsMember(ctx, s.db, list, address)
	if err != nil {
		writeAPIError(w, s.logger, apierr.Wrap(apierr.Database, "failed to check allow-list membership", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_member": isMember})
}
