package claim

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/liquidminer/incentived/internal/apierr"
	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVoter = "5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX"

var testEthAddr = "0x" + strings.Repeat("a", 40)

func openTestDB(t *testing.T) {
	t.Helper()
	var err error
	store.DB, err = sql.Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { store.DB.Close() })
	require.NoError(t, store.EnsureSchema())

	config.BlockWindow = 10
}

type fakeChain struct {
	block uint64
}

func (f *fakeChain) CurrentBlock(ctx context.Context) (uint64, error) { return f.block, nil }

type fakeRoster map[string]bool

func (f fakeRoster) Contains(miner string) bool { return f[miner] }

func alwaysVerifies(address, message, sigHex string) (bool, error) { return true, nil }

func claimMsg(ethAddr, voter string, block uint64, ethSigner string) string {
	return fmt.Sprintf("sig-placeholder|%s|%s|%d|%s", ethAddr, voter, block, ethSigner)
}

func newTestOrchestrator(chain ChainReader, roster RosterLookup) *Orchestrator {
	o := NewOrchestrator(chain, roster)
	o.VerifySubstrate = alwaysVerifies
	o.VerifyEVM = alwaysVerifies
	return o
}

func TestSubmitClaimHappyPath(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{testVoter: true})
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, testEthAddr),
		Signature: "0xoutersig",
	}

	result, apiErr := o.SubmitClaim(context.Background(), req)
	require.Nil(t, apiErr)
	assert.False(t, result.AlreadyBound)
	assert.Equal(t, testVoter, result.Voter)

	bound, err := store.GetBinding(testVoter)
	require.NoError(t, err)
	assert.Equal(t, result.External, bound.External)
}

func TestSubmitClaimResubmittingIdenticalBindingReturnsAlreadyBound(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{testVoter: true})
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, testEthAddr),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.Nil(t, apiErr)

	o.Chain = &fakeChain{block: 105}
	req.Message = claimMsg(testEthAddr, testVoter, 105, testEthAddr)
	result, apiErr := o.SubmitClaim(context.Background(), req)
	require.Nil(t, apiErr)
	assert.True(t, result.AlreadyBound)
}

func TestSubmitClaimRejectsMismatchedEthAddrAndSigner(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{testVoter: true})
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, "0x"+strings.Repeat("d", 40)),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierr.InvalidInput, apiErr.Kind)
}

func TestSubmitClaimRejectsVoterMismatch(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{testVoter: true})
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, "5SomeoneElse", 100, testEthAddr),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierr.InvalidInput, apiErr.Kind)
}

func TestSubmitClaimRejectsUnregisteredVoter(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{})
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, testEthAddr),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierr.NotRegisteredMiner, apiErr.Kind)
}

func TestSubmitClaimRejectsStaleBlock(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 200}, fakeRoster{testVoter: true})
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, testEthAddr),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierr.StaleBlock, apiErr.Kind)
}

func TestSubmitClaimRejectsBadOuterSignature(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{testVoter: true})
	o.VerifySubstrate = func(address, message, sigHex string) (bool, error) { return false, nil }
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, testEthAddr),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierr.AuthError, apiErr.Kind)
}

func TestSubmitClaimRejectsBadInnerSignature(t *testing.T) {
	openTestDB(t)

	o := newTestOrchestrator(&fakeChain{block: 100}, fakeRoster{testVoter: true})
	o.VerifyEVM = func(address, message, sigHex string) (bool, error) { return false, nil }
	req := ClaimRequest{
		Voter:     testVoter,
		Message:   claimMsg(testEthAddr, testVoter, 100, testEthAddr),
		Signature: "0xoutersig",
	}

	_, apiErr := o.SubmitClaim(context.Background(), req)
	require.NotNil(t, apiErr)
	assert.Equal(t, apierr.AuthError, apiErr.Kind)
}
