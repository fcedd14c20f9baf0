/*

This file holds the GraphQL query shape and the conversion from the
subgraph's wire representation into the domain Position type.

*/

package subgraph

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/liquidminer/incentived/internal/types"
)

var oneLiquidity = sdkmath.NewInt(1)

const positionsQuery = `
	query Positions($owners: [String!]!, $first: Int!, $skip: Int!) {
		positions(
			first: $first
			skip: $skip
			where: { owner_in: $owners, liquidity_gt: "1" }
		) {
			id
			owner
			liquidity
			tickLower { tickIdx }
			tickUpper { tickIdx }
			pool {
				id
				feeTier
				tick
			}
			token0 { symbol decimals }
			token1 { symbol decimals }
		}
	}
`

type positionsResponse struct {
	Positions []graphQLPosition `json:"positions"`
}

type graphQLPosition struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Liquidity string `json:"liquidity"`
	TickLower struct {
		TickIdx string `json:"tickIdx"`
	} `json:"tickLower"`
	TickUpper struct {
		TickIdx string `json:"tickIdx"`
	} `json:"tickUpper"`
	Pool struct {
		ID      string `json:"id"`
		FeeTier string `json:"feeTier"`
		Tick    string `json:"tick"`
	} `json:"pool"`
	Token0 struct {
		Symbol   string `json:"symbol"`
		Decimals string `json:"decimals"`
	} `json:"token0"`
	Token1 struct {
		Symbol   string `json:"symbol"`
		Decimals string `json:"decimals"`
	} `json:"token1"`
}

// toPosition converts the subgraph's string-encoded wire format into the
// domain Position type.
func (g graphQLPosition) toPosition() (types.Position, error) {
	liquidity, ok := sdkmath.NewIntFromString(g.Liquidity)
	if !ok {
		return types.Position{}, fmt.Errorf("invalid liquidity %q", g.Liquidity)
	}

	tickLower, err := parseInt(g.TickLower.TickIdx)
	if err != nil {
		return types.Position{}, fmt.Errorf("invalid tickLower: %w", err)
	}
	tickUpper, err := parseInt(g.TickUpper.TickIdx)
	if err != nil {
		return types.Position{}, fmt.Errorf("invalid tickUpper: %w", err)
	}
	feeTier, err := parseInt(g.Pool.FeeTier)
	if err != nil {
		return types.Position{}, fmt.Errorf("invalid feeTier: %w", err)
	}
	currentTick, err := parseInt(g.Pool.Tick)
	if err != nil {
		return types.Position{}, fmt.Errorf("invalid current tick: %w", err)
	}
	decimals0, err := parseInt(g.Token0.Decimals)
	if err != nil {
		return types.Position{}, fmt.Errorf("invalid token0 decimals: %w", err)
	}
	decimals1, err := parseInt(g.Token1.Decimals)
	if err != nil {
		return types.Position{}, fmt.Errorf("invalid token1 decimals: %w", err)
	}

	return types.Position{
		ID:        g.ID,
		Owner:     g.Owner,
		Liquidity: liquidity,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Pool: types.PositionPool{
			ID:          g.Pool.ID,
			FeeTier:     feeTier,
			CurrentTick: currentTick,
		},
		Token0: types.TokenMeta{Symbol: g.Token0.Symbol, Decimals: decimals0},
		Token1: types.TokenMeta{Symbol: g.Token1.Symbol, Decimals: decimals1},
	}, nil
}

func parseInt(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}
