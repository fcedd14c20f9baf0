/*

This file is the position fetcher: batched GraphQL reads against a
Uniswap-V3-style subgraph, with a short in-memory cache so a burst of
requests doesn't re-query the subgraph on every weight computation.

*/

package subgraph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/machinebox/graphql"
	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/types"
)

const (
	ownerBatchSize  = 100
	positionPageCap = 1000
	cacheTTL        = 60 * time.Second
)

// Fetcher reads concentrated-liquidity positions from the subgraph,
// caching the result for cacheTTL.
type Fetcher struct {
	client *graphql.Client
	apiKey string

	mu        sync.Mutex
	cached    []types.Position
	cachedAt  time.Time
}

// New builds a Fetcher against the given subgraph endpoint.
func New(endpoint, apiKey string) *Fetcher {
	return &Fetcher{
		client: graphql.NewClient(endpoint),
		apiKey: apiKey,
	}
}

// Positions returns every active position owned by one of owners, whose
// pool is in targetPools, using the cache when it is still fresh.
func (f *Fetcher) Positions(ctx context.Context, owners []string, targetPools map[string]bool) ([]types.Position, error) {
	f.mu.Lock()
	if time.Since(f.cachedAt) < cacheTTL && f.cached != nil {
		cached := f.cached
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	positions, err := f.fetchAll(ctx, owners, targetPools)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cached = positions
	f.cachedAt = time.Now()
	f.mu.Unlock()

	return positions, nil
}

// fetchAll issues batched GraphQL requests (ownerBatchSize owners per
// request) and filters out inactive positions before returning.
func (f *Fetcher) fetchAll(ctx context.Context, owners []string, targetPools map[string]bool) ([]types.Position, error) {
	var all []types.Position

	for start := 0; start < len(owners); start += ownerBatchSize {
		end := start + ownerBatchSize
		if end > len(owners) {
			end = len(owners)
		}
		batch := owners[start:end]

		positions, err := f.fetchBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch position batch: %w", err)
		}

		for _, p := range positions {
			if len(targetPools) > 0 && !targetPools[p.Pool.ID] {
				continue
			}
			if !p.Active() {
				continue
			}
			all = append(all, p)
		}
	}

	log.Info().Int("owners", len(owners)).Int("positions", len(all)).Msg("Fetched positions from subgraph.")
	return all, nil
}

// fetchBatch pages through up to positionPageCap positions for a single
// batch of owners.
func (f *Fetcher) fetchBatch(ctx context.Context, owners []string) ([]types.Position, error) {
	var all []types.Position
	skip := 0

	for {
		req := graphql.NewRequest(positionsQuery)
		req.Var("owners", lowercaseAll(owners))
		req.Var("first", positionPageCap)
		req.Var("skip", skip)
		if f.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+f.apiKey)
		}

		var resp positionsResponse
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := f.client.Run(reqCtx, req, &resp)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("subgraph query failed: %w", err)
		}

		for _, gp := range resp.Positions {
			p, err := gp.toPosition()
			if err != nil {
				log.Warn().Err(err).Str("position", gp.ID).Msg("Skipping malformed subgraph position.")
				continue
			}
			if p.Liquidity.IsNil() || !p.Liquidity.GT(oneLiquidity) {
				continue
			}
			all = append(all, p)
		}

		if len(resp.Positions) < positionPageCap {
			break
		}
		skip += positionPageCap
	}

	return all, nil
}

func lowercaseAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
