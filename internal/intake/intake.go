/*

This file orchestrates vote intake: rate limiting, signature
verification, message parsing and weight normalization, pool
validation, block-window checking, holder verification, cooldown
evaluation, and the persistent writes — in that order, with an
early return at the first failing step. The per-voter mutex held for
the back half of the pipeline ensures at most one submission from a
given voter is between its current-vote read and its write at a time.

*/

package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/apierr"
	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/cooldown"
	"github.com/liquidminer/incentived/internal/keyedmutex"
	"github.com/liquidminer/incentived/internal/ratelimit"
	"github.com/liquidminer/incentived/internal/signer"
	"github.com/liquidminer/incentived/internal/store"
	"github.com/liquidminer/incentived/internal/types"
)

// ChainReader is the subset of internal/chain.Client that vote intake
// needs: pool-factory validation and the current block height.
type ChainReader interface {
	ValidatePool(ctx context.Context, address string) (types.Pool, error)
	CurrentBlock(ctx context.Context) (uint64, error)
}

// HolderLookup is the subset of internal/snapshot.Holders that vote
// intake needs.
type HolderLookup interface {
	Get(voter string) (types.HolderEntry, bool)
}

// VerifyFunc checks a message signature against address; satisfied by
// signer.VerifySubstrate, overridable in tests.
type VerifyFunc func(address, message, sigHex string) (bool, error)

// Orchestrator wires together every collaborator vote intake needs.
type Orchestrator struct {
	Chain        ChainReader
	Holders      HolderLookup
	IPLimiter    *ratelimit.Limiter
	VoterLimiter *ratelimit.Limiter
	Verify       VerifyFunc
	locks        keyedmutex.KeyedMutex
}

// NewOrchestrator builds an Orchestrator from its collaborators, wired to
// Substrate signature verification.
func NewOrchestrator(chain ChainReader, holders HolderLookup, ipLimiter, voterLimiter *ratelimit.Limiter) *Orchestrator {
	return &Orchestrator{
		Chain:        chain,
		Holders:      holders,
		IPLimiter:    ipLimiter,
		VoterLimiter: voterLimiter,
		Verify:       signer.VerifySubstrate,
	}
}

// SubmitVoteRequest is the decoded body of POST /updateVotes.
type SubmitVoteRequest struct {
	Address   string
	Message   string
	Signature string
}

// SubmitVoteResult is returned to the caller on success.
type SubmitVoteResult struct {
	Pools []types.PoolWeight
}

// SubmitVote runs the full vote-intake pipeline for a single submission.
func (o *Orchestrator) SubmitVote(ctx context.Context, clientIP string, req SubmitVoteRequest) (*SubmitVoteResult, *apierr.Error) {
	reqLogger := log.With().Str("component", "vote_intake").Str("voter", req.Address).Logger()

	// --- Step 1: structural bounds ---
	if req.Address == "" || len(req.Address) > config.MaxAddressLength ||
		req.Message == "" || len(req.Message) > config.MaxMessageLength ||
		req.Signature == "" || len(req.Signature) > config.MaxSignatureLength {
		return nil, apierr.New(apierr.InvalidInput, "request fields exceed their length bounds")
	}

	// --- Step 2: rate limiting ---
	if !o.IPLimiter.Allow(clientIP) {
		return nil, apierr.New(apierr.RateLimited, "too many requests from this client")
	}
	if !o.VoterLimiter.Allow("vote_" + req.Address) {
		return nil, apierr.New(apierr.RateLimited, "too many vote submissions for this voter")
	}

	// --- Step 3: signature verification ---
	verified, err := o.Verify(req.Address, req.Message, req.Signature)
	if err != nil || !verified {
		reqLogger.Warn().Err(err).Msg("Vote signature verification failed.")
		return nil, apierr.New(apierr.AuthError, "signature verification failed")
	}

	// --- Steps 4-5: parse message, normalize weights ---
	parsed, err := parseMessage(req.Message)
	if err != nil {
		return nil, apierr.New(apierr.InvalidInput, err.Error())
	}

	o.locks.Lock(req.Address)
	defer o.locks.Unlock(req.Address)

	// --- Step 6: pool factory validation ---
	validatedPools := make([]types.Pool, 0, len(parsed.Pools))
	for _, pw := range parsed.Pools {
		pool, err := o.Chain.ValidatePool(ctx, pw.Pool)
		if err != nil {
			reqLogger.Warn().Err(err).Str("pool", pw.Pool).Msg("Pool failed factory validation.")
			return nil, apierr.New(apierr.InvalidPool, "Invalid Uniswap V3 pools")
		}
		validatedPools = append(validatedPools, pool)
	}

	// --- Step 7: cache pool metadata if missing ---
	for _, pool := range validatedPools {
		if _, err := store.GetPoolMetadata(pool.Address); err == sql.ErrNoRows {
			if err := store.UpsertPoolMetadata(pool); err != nil {
				reqLogger.Warn().Err(err).Str("pool", pool.Address).Msg("Failed to cache pool metadata.")
			}
		} else if err != nil {
			reqLogger.Warn().Err(err).Msg("Failed to read cached pool metadata.")
		}
	}

	// --- Step 8: block window ---
	currentBlock, err := o.Chain.CurrentBlock(ctx)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to fetch current block.")
		return nil, apierr.Wrap(apierr.UpstreamError)
	}
	if parsed.Block > currentBlock {
		return nil, apierr.New(apierr.InvalidBlock, "submitted block is ahead of the current chain head")
	}
	if currentBlock-parsed.Block > config.BlockWindow {
		return nil, apierr.New(apierr.StaleBlock, "submitted block is too far behind the current chain head")
	}

	// --- Step 9: holder check ---
	holder, ok := o.Holders.Get(req.Address)
	if !ok || holder.Alpha <= 0 {
		return nil, apierr.New(apierr.NotAHolder, "Address does not hold alpha tokens")
	}

	// --- Step 10: read current vote ---
	currentVote, err := store.GetVote(req.Address)
	hasCurrentVote := true
	if err == sql.ErrNoRows {
		hasCurrentVote = false
	} else if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to read current vote.")
		return nil, apierr.Wrap(apierr.DatabaseError)
	}

	unchanged := hasCurrentVote && samePools(currentVote.Pools, parsed.Pools)
	hasChange := !hasCurrentVote || !unchanged

	// --- Step 11: cooldown ---
	now := time.Now()
	var latest types.VoteChange
	var decision cooldown.Decision
	if hasChange {
		latest, err = store.LatestVoteChange(req.Address)
		if err != nil && err != sql.ErrNoRows {
			reqLogger.Error().Err(err).Msg("Failed to read latest vote change.")
			return nil, apierr.Wrap(apierr.DatabaseError)
		}

		decision = cooldown.Evaluate(hasCurrentVote, unchanged, latest, now)
		if !decision.Admit {
			msg := fmt.Sprintf("%s Voting resumes at %s.", decision.Message, decision.RemainingUntil.UTC().Format(time.RFC3339))
			return nil, apierr.New(apierr.CooldownActive, msg)
		}
	}

	// --- Step 12: persist ---
	vote := types.Vote{
		Voter:       req.Address,
		Pools:       parsed.Pools,
		BlockNumber: parsed.Block,
		TotalWeight: config.NormalizedWeightTotal,
	}
	if err := store.UpsertVote(vote); err != nil {
		if errors.Is(err, store.ErrStaleVote) {
			return nil, apierr.New(apierr.StaleBlock, "a newer vote has already been recorded for this voter")
		}
		reqLogger.Error().Err(err).Msg("Failed to upsert vote.")
		return nil, apierr.Wrap(apierr.DatabaseError)
	}

	if hasChange && hasCurrentVote {
		change := types.VoteChange{
			Voter:         req.Address,
			OldPools:      currentVote.Pools,
			NewPools:      parsed.Pools,
			ChangeTime:    now,
			CooldownUntil: now.Add(decision.NextCooldown),
			ChangeCount:   cooldown.NextChangeCount(latest, now),
		}
		if err := store.RecordVoteChange(change); err != nil {
			reqLogger.Warn().Err(err).Msg("Failed to record vote change; vote write already committed.")
		}
	}

	return &SubmitVoteResult{Pools: parsed.Pools}, nil
}
