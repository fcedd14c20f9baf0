/*

This file orchestrates address claiming: dual-signature verification
binding a voter's Substrate account to an external EVM account, then a
single write to the binding table.

*/

package claim

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/apierr"
	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/signer"
	"github.com/liquidminer/incentived/internal/store"
)

// ChainReader is the subset of internal/chain.Client address claim needs.
type ChainReader interface {
	CurrentBlock(ctx context.Context) (uint64, error)
}

// RosterLookup is the subset of internal/snapshot.Roster address claim
// needs: confirming the claiming voter is a registered miner identity.
type RosterLookup interface {
	Contains(miner string) bool
}

// SubstrateVerifyFunc and EVMVerifyFunc are injected so tests can swap in
// fakes without needing real key material.
type SubstrateVerifyFunc func(address, message, sigHex string) (bool, error)
type EVMVerifyFunc func(address, message, sigHex string) (bool, error)

// Orchestrator wires together every collaborator address claiming needs.
type Orchestrator struct {
	Chain           ChainReader
	Roster          RosterLookup
	VerifySubstrate SubstrateVerifyFunc
	VerifyEVM       EVMVerifyFunc
}

// NewOrchestrator builds an Orchestrator wired to the real signature
// verifiers.
func NewOrchestrator(chain ChainReader, roster RosterLookup) *Orchestrator {
	return &Orchestrator{
		Chain:           chain,
		Roster:          roster,
		VerifySubstrate: signer.VerifySubstrate,
		VerifyEVM:       signer.VerifyEVM,
	}
}

// ClaimRequest is the decoded body of POST /claimAddress. Signature is the
// outer Substrate signature over the full pipe-separated message by voter;
// the individual claim fields are parsed out of Message by SubmitClaim.
type ClaimRequest struct {
	Voter     string
	Message   string
	Signature string
}

// ClaimResult is returned to the caller on success.
type ClaimResult struct {
	Voter        string
	External     string
	AlreadyBound bool
}

type claimMessage struct {
	ethSig    string
	ethAddr   string
	voter     string
	block     uint64
	ethSigner string
}

// SubmitClaim runs the full address-claim pipeline for a single submission.
func (o *Orchestrator) SubmitClaim(ctx context.Context, req ClaimRequest) (*ClaimResult, *apierr.Error) {
	reqLogger := log.With().Str("component", "address_claim").Str("voter", req.Voter).Logger()

	if req.Voter == "" || len(req.Voter) > config.MaxAddressLength ||
		req.Message == "" || len(req.Message) > config.MaxMessageLength ||
		req.Signature == "" || len(req.Signature) > config.MaxSignatureLength {
		return nil, apierr.New(apierr.InvalidInput, "request fields exceed their length bounds")
	}

	// --- Outer signature: SV.substrate_verify(voter, message, sig) ---
	verified, err := o.VerifySubstrate(req.Voter, req.Message, req.Signature)
	if err != nil || !verified {
		reqLogger.Warn().Err(err).Msg("Claim outer signature verification failed.")
		return nil, apierr.New(apierr.AuthError, "signature verification failed")
	}

	parsed, err := parseClaimMessage(req.Message)
	if err != nil {
		return nil, apierr.New(apierr.InvalidInput, err.Error())
	}

	if !strings.EqualFold(parsed.ethAddr, parsed.ethSigner) {
		return nil, apierr.New(apierr.InvalidInput, "ethAddr does not match ethSigner")
	}
	if !strings.EqualFold(parsed.voter, req.Voter) {
		return nil, apierr.New(apierr.InvalidInput, "claimed voter does not match the signing account")
	}
	if !signer.IsEVMAddress(parsed.ethSigner) {
		return nil, apierr.New(apierr.InvalidInput, "ethSigner is not a well-formed EVM address")
	}

	currentBlock, err := o.Chain.CurrentBlock(ctx)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to fetch current block.")
		return nil, apierr.Wrap(apierr.UpstreamError)
	}
	if parsed.block > currentBlock {
		return nil, apierr.New(apierr.InvalidBlock, "submitted block is ahead of the current chain head")
	}
	if currentBlock-parsed.block > config.BlockWindow {
		return nil, apierr.New(apierr.StaleBlock, "submitted block is too far behind the current chain head")
	}

	if !o.Roster.Contains(req.Voter) {
		return nil, apierr.New(apierr.NotRegisteredMiner, "voter is not a registered miner identity")
	}

	// --- Inner signature: SV.evm_verify(ethSigner, "ethAddr|voter|block", ethSig) ---
	innerMessage := fmt.Sprintf("%s|%s|%d", parsed.ethAddr, parsed.voter, parsed.block)
	evmVerified, err := o.VerifyEVM(parsed.ethSigner, innerMessage, parsed.ethSig)
	if err != nil || !evmVerified {
		reqLogger.Warn().Err(err).Msg("Claim inner EVM signature verification failed.")
		return nil, apierr.New(apierr.AuthError, "EVM signature verification failed")
	}

	existing, err := store.GetBinding(req.Voter)
	if err != nil && err != sql.ErrNoRows {
		reqLogger.Error().Err(err).Msg("Failed to read existing binding.")
		return nil, apierr.Wrap(apierr.DatabaseError)
	}
	if err == nil && strings.EqualFold(existing.External, parsed.ethAddr) {
		return &ClaimResult{Voter: req.Voter, External: existing.External, AlreadyBound: true}, nil
	}

	if err := store.UpsertBinding(req.Voter, strings.ToLower(parsed.ethAddr)); err != nil {
		reqLogger.Error().Err(err).Msg("Failed to upsert binding.")
		return nil, apierr.Wrap(apierr.DatabaseError)
	}

	return &ClaimResult{Voter: req.Voter, External: strings.ToLower(parsed.ethAddr)}, nil
}

// parseClaimMessage splits the pipe-separated claim message into its five
// fields: ethSig|ethAddr|voter|block|ethSigner.
func parseClaimMessage(message string) (claimMessage, error) {
	fields := strings.Split(message, "|")
	if len(fields) != 5 {
		return claimMessage{}, fmt.Errorf("claim message must have exactly five pipe-separated fields")
	}

	block, err := strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return claimMessage{}, fmt.Errorf("invalid block number: %w", err)
	}

	return claimMessage{
		ethSig:    strings.TrimSpace(fields[0]),
		ethAddr:   strings.TrimSpace(fields[1]),
		voter:     strings.TrimSpace(fields[2]),
		block:     block,
		ethSigner: strings.TrimSpace(fields[4]),
	}, nil
}
