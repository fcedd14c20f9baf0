package subgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeSubgraph(t *testing.T, positions []graphQLPosition) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := struct {
			Data positionsResponse `json:"data"`
		}{Data: positionsResponse{Positions: positions}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func samplePosition(id, pool, tick string, tickLower, tickUpper string) graphQLPosition {
	var p graphQLPosition
	p.ID = id
	p.Owner = "0xowner0000000000000000000000000000000001"
	p.Liquidity = "1000000000"
	p.TickLower.TickIdx = tickLower
	p.TickUpper.TickIdx = tickUpper
	p.Pool.ID = pool
	p.Pool.FeeTier = "3000"
	p.Pool.Tick = tick
	p.Token0.Symbol = "AAA"
	p.Token0.Decimals = "18"
	p.Token1.Symbol = "BBB"
	p.Token1.Decimals = "6"
	return p
}

func TestPositionsFiltersInactive(t *testing.T) {
	active := samplePosition("p1", "0xpool1", "0", "-100", "100")
	inactive := samplePosition("p2", "0xpool1", "25", "10", "20")

	srv := newFakeSubgraph(t, []graphQLPosition{active, inactive})
	f := New(srv.URL, "")

	positions, err := f.Positions(context.Background(), []string{"0xowner0000000000000000000000000000000001"}, nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "p1", positions[0].ID)
}

func TestPositionsUsesCacheOnSecondCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		resp := struct {
			Data positionsResponse `json:"data"`
		}{Data: positionsResponse{Positions: []graphQLPosition{samplePosition("p1", "0xpool1", "0", "-100", "100")}}}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	f := New(srv.URL, "")
	owners := []string{"0xowner0000000000000000000000000000000001"}

	_, err := f.Positions(context.Background(), owners, nil)
	require.NoError(t, err)
	_, err = f.Positions(context.Background(), owners, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call within TTL must be served from cache")
}
