package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidminer/incentived/internal/claim"
	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/intake"
	"github.com/liquidminer/incentived/internal/ratelimit"
	"github.com/liquidminer/incentived/internal/snapshot"
	"github.com/liquidminer/incentived/internal/store"
	"github.com/liquidminer/incentived/internal/subgraph"
	"github.com/liquidminer/incentived/internal/types"
	"github.com/liquidminer/incentived/internal/version"
)

const testVoter = "5F3sa2TJAWMqDhXG6jhV4N8ko9SxwGy8TpaNS1repo5EYjQX"

var testPoolAddr = "0x" + strings.Repeat("a", 40)
var testOwnerAddr = "0x" + strings.Repeat("b", 40)

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
	pools map[string]types.Pool
}

func (f *fakeChain) CurrentBlock(ctx context.Context) (uint64, error) { return f.block, nil }

func (f *fakeChain) ValidatePool(ctx context.Context, address string) (types.Pool, error) {
	p, ok := f.pools[strings.ToLower(address)]
	if !ok {
		return types.Pool{}, fmt.Errorf("pool %s is not a valid Uniswap V3 pool", address)
	}
	return p, nil
}

type fakeHolderFetcher struct {
	entries map[string]types.HolderEntry
}

func (f *fakeHolderFetcher) FetchHolders(ctx context.Context, subnetID uint64) (map[string]types.HolderEntry, error) {
	return f.entries, nil
}

type fakeRosterFetcher struct {
	miners []string
}

func (f *fakeRosterFetcher) FetchRoster(ctx context.Context, subnetID uint64) ([]string, error) {
	return f.miners, nil
}

// newFakeSubgraph serves a single page of positions in the subgraph's
// wire format, mirroring internal/subgraph's own test fake.
func newFakeSubgraph(t *testing.T, owner, pool string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := fmt.Sprintf(`{"data":{"positions":[{
			"id":"pos1","owner":%q,"liquidity":"1000000000",
			"tickLower":{"tickIdx":"-100"},"tickUpper":{"tickIdx":"100"},
			"pool":{"id":%q,"feeTier":"3000","tick":"0"},
			"token0":{"symbol":"AAA","decimals":"18"},
			"token1":{"symbol":"BBB","decimals":"6"}
		}]}}`, owner, pool)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	openTestDB(t)
	require.NoError(t, version.Load(writeVersionFile(t)))

	chain := &fakeChain{
		block: 1000,
		pools: map[string]types.Pool{
			testPoolAddr: {Address: testPoolAddr, Token0: "0x" + strings.Repeat("1", 40), Token1: "0x" + strings.Repeat("2", 40), Fee: 3000, Symbol0: "AAA", Symbol1: "BBB"},
		},
	}

	holders := snapshot.NewHolders(&fakeHolderFetcher{entries: map[string]types.HolderEntry{
		testVoter: {Voter: testVoter, Alpha: 100, Tao: 10},
	}}, 1, time.Hour)
	require.NoError(t, holders.Refresh(context.Background()))

	roster := snapshot.NewRoster(&fakeRosterFetcher{miners: []string{testVoter}}, 1, time.Hour)
	require.NoError(t, roster.Refresh(context.Background()))

	vi := intake.NewOrchestrator(chain, holders,
		ratelimit.New(config.RateLimitPerIP, config.RateLimitWindow),
		ratelimit.New(config.RateLimitPerVoter, config.RateLimitWindow))
	vi.Verify = func(address, message, sigHex string) (bool, error) { return true, nil }

	ac := claim.NewOrchestrator(chain, roster)
	ac.VerifySubstrate = func(address, message, sigHex string) (bool, error) { return true, nil }
	ac.VerifyEVM = func(address, message, sigHex string) (bool, error) { return true, nil }

	srv := newFakeSubgraph(t, testOwnerAddr, testPoolAddr)
	pf := subgraph.New(srv.URL, "")

	return NewServer("0", vi, ac, holders, roster, pf, nil)
}

func writeVersionFile(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/VERSION"
	require.NoError(t, os.WriteFile(path, []byte("1.0.0"), 0o644))
	return path
}

func TestUpdateVotesThenUserVotesRoundTrip(t *testing.T) {
	s := newTestServer(t)

	body := fmt.Sprintf(`{"address":%q,"message":%q,"signature":"deadbeef"}`, testVoter, testPoolAddr+",10000|1000")
	req := httptest.NewRequest(http.MethodPost, "/updateVotes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)

	req2 := httptest.NewRequest(http.MethodGet, "/userVotes/"+testVoter, nil)
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	var env2 envelope
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &env2))
	assert.True(t, env2.Success)
}

func TestUserVotesUnknownVoterReturnsError(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/userVotes/nobody", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
}

func TestAllHoldersReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/allHolders", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestClaimAddressHappyPath(t *testing.T) {
	s := newTestServer(t)

	ethAddr := "0x" + strings.Repeat("c", 40)
	message := fmt.Sprintf("innersig|%s|%s|1000|%s", ethAddr, testVoter, ethAddr)
	body := fmt.Sprintf(`{"voter":%q,"message":%q,"signature":"deadbeef"}`, testVoter, message)

	req := httptest.NewRequest(http.MethodPost, "/claimAddress", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestPingRejectsIncompatibleVersion(t *testing.T) {
	s := newTestServer(t)

	body := fmt.Sprintf(`{"voter":%q,"message":"1000|2.0.0"}`, testVoter)
	req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
}

func TestPingAcceptsCompatibleVersion(t *testing.T) {
	s := newTestServer(t)

	body := fmt.Sprintf(`{"voter":%q,"message":"1000|1.0.0"}`, testVoter)
	req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestAllVotesIsCachedAcrossCalls(t *testing.T) {
	s := newTestServer(t)

	body := fmt.Sprintf(`{"address":%q,"message":%q,"signature":"deadbeef"}`, testVoter, testPoolAddr+",10000|1000")
	req := httptest.NewRequest(http.MethodPost, "/updateVotes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/allVotes", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/allVotes", nil))
	require.Equal(t, http.StatusOK, second.Code)

	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestVoteCooldownUnknownVoterIsInactive(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/voteCooldown/nobody", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)

	status, ok := env.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, status["Active"])
}
