/*

This file contains the types for concentrated-liquidity positions, which
are the unit the emission engine scores per pool.

*/

package types

import (
	"math"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Position is a single concentrated-liquidity position read from the subgraph.
type Position struct {
	ID         string      `json:"id"`
	Owner      string      `json:"owner"` // lowercase 0x-prefixed external account
	Liquidity  sdkmath.Int `json:"liquidity"`
	TickLower  int         `json:"tick_lower"`
	TickUpper  int         `json:"tick_upper"`
	Pool       PositionPool `json:"pool"`
	Token0     TokenMeta   `json:"token0"`
	Token1     TokenMeta   `json:"token1"`
}

// PositionPool is the subset of pool data a position carries inline.
type PositionPool struct {
	ID          string `json:"id"`
	FeeTier     int    `json:"fee_tier"`
	CurrentTick int    `json:"current_tick"`
}

// TokenMeta is minimal token metadata needed for current-amount presentation.
type TokenMeta struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// Active reports whether the position's range straddles the pool's current
// tick and it carries non-zero liquidity.
func (p Position) Active() bool {
	if p.Liquidity.IsNil() || !p.Liquidity.IsPositive() {
		return false
	}
	t := p.Pool.CurrentTick
	return p.TickLower < t && t < p.TickUpper
}

// CurrentAmounts computes token0/token1 amounts currently held by the
// position given the pool's current tick.
func (p Position) CurrentAmounts() (amount0, amount1 float64) {
	sLower := sqrtPriceAtTick(p.TickLower)
	sUpper := sqrtPriceAtTick(p.TickUpper)
	sCurrent := sqrtPriceAtTick(p.Pool.CurrentTick)

	L := liquidityToFloat(p.Liquidity)

	t := p.Pool.CurrentTick
	switch {
	case t < p.TickLower:
		amount0 = L * (sUpper - sLower) / (sUpper * sLower)
		amount1 = 0
	case t >= p.TickUpper:
		amount0 = 0
		amount1 = L * (sUpper - sLower)
	default:
		amount0 = L * (sUpper - sCurrent) / (sUpper * sCurrent)
		amount1 = L * (sCurrent - sLower)
	}
	return amount0, amount1
}

// LiquidityFloat converts the position's arbitrary-precision liquidity to
// a float64 for use in the (necessarily floating-point) scoring math.
func (p Position) LiquidityFloat() float64 {
	return liquidityToFloat(p.Liquidity)
}

// liquidityToFloat converts an arbitrary-precision liquidity amount to a
// float64 for use in the (necessarily floating-point) price-range math.
func liquidityToFloat(l sdkmath.Int) float64 {
	if l.IsNil() {
		return 0
	}
	f := new(big.Float).SetInt(l.BigInt())
	v, _ := f.Float64()
	return v
}

// sqrtPriceAtTick returns 1.0001^(tick/2), the sqrt-price convention used
// throughout Uniswap-V3-style concentrated-liquidity AMMs.
func sqrtPriceAtTick(tick int) float64 {
	return math.Pow(1.0001, float64(tick)/2)
}
