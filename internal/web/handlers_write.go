/*

This file implements the three write/action endpoints: vote submission,
address claiming, and the validator ping/version-check.

*/

package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/liquidminer/incentived/internal/apierr"
	"github.com/liquidminer/incentived/internal/claim"
	"github.com/liquidminer/incentived/internal/intake"
	"github.com/liquidminer/incentived/internal/version"
)

type updateVotesRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (s *Server) handleUpdateVotes(w http.ResponseWriter, r *http.Request) {
	var req updateVotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	result, apiErr := s.VI.SubmitVote(r.Context(), clientIP(r), intake.SubmitVoteRequest{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
	})
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeSuccess(w, result)
}

type claimAddressRequest struct {
	Voter     string `json:"voter"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (s *Server) handleClaimAddress(w http.ResponseWriter, r *http.Request) {
	var req claimAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	result, apiErr := s.AC.SubmitClaim(r.Context(), claim.ClaimRequest{
		Voter:     req.Voter,
		Message:   req.Message,
		Signature: req.Signature,
	})
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeSuccess(w, result)
}

type pingRequest struct {
	Voter   string `json:"voter"`
	Message string `json:"message"`
}

// handlePing answers the validator health/version check: message is
// "<block>|<major.minor.patch>"; the server only cares about the version
// component, since the block number is informational on this endpoint.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	if req.Voter == "" {
		writeAPIError(w, apierr.New(apierr.InvalidInput, "voter must not be empty"))
		return
	}
	if !s.PingLimiter.Allow("ping_" + req.Voter) {
		writeAPIError(w, apierr.New(apierr.RateLimited, "too many ping submissions for this voter"))
		return
	}

	fields := strings.Split(req.Message, "|")
	if len(fields) != 2 {
		writeAPIError(w, apierr.New(apierr.InvalidInput, "ping message must have exactly two pipe-separated fields"))
		return
	}

	block, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		writeAPIError(w, apierr.New(apierr.InvalidInput, "invalid block number"))
		return
	}

	compatible, message := version.Compatible(strings.TrimSpace(fields[1]))
	if !compatible {
		writeAPIError(w, apierr.New(apierr.VersionIncompatible, message))
		return
	}

	writeSuccess(w, map[string]any{
		"block":         block,
		"serverVersion": version.Current().String(),
		"message":       message,
	})
}
