/*

This file is the emission engine: five pure passes over a snapshot of
votes, holder balances, and active positions that together produce the
final per-miner weight vector. Nothing here touches the store or any
external collaborator — every function takes its inputs as plain values
and returns a plain value, so the same snapshot always yields the same
weights.

*/

package emissions

import (
	"math"

	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/types"
)

// VoterMultipliers is Step A: the token-weighted share of each surviving
// voter (alpha > 0) in the total alpha supply. A lone surviving voter
// gets a multiplier of 1 regardless of their absolute balance.
func VoterMultipliers(holders map[string]types.HolderEntry) map[string]float64 {
	total := 0.0
	surviving := make([]string, 0, len(holders))
	for voter, h := range holders {
		if h.Alpha > 0 {
			total += h.Alpha
			surviving = append(surviving, voter)
		}
	}

	multipliers := make(map[string]float64, len(surviving))
	if len(surviving) == 1 {
		multipliers[surviving[0]] = 1
		return multipliers
	}
	if total <= 0 {
		return multipliers
	}
	for _, voter := range surviving {
		multipliers[voter] = holders[voter].Alpha / total
	}
	return multipliers
}

// PoolEmissions is Step B: accumulates each pool's token-weighted
// emission share from every vote. The sum over all pools is at most 1,
// with equality when every voter's weights sum to exactly 10000.
func PoolEmissions(votes []types.Vote, multipliers map[string]float64) map[string]float64 {
	emissions := make(map[string]float64)
	for _, v := range votes {
		mu, ok := multipliers[v.Voter]
		if !ok || mu <= 0 {
			continue
		}
		for _, pw := range v.Pools {
			emissions[pw.Pool] += float64(pw.Weight) * mu / 10000
		}
	}
	return emissions
}

// PositionRawScore is Step C: a tick-aware Gaussian score for a single
// active position, integrated across its range by Simpson's rule. An
// inactive or non-finite position scores zero.
func PositionRawScore(p types.Position) float64 {
	if !p.Active() {
		return 0
	}

	sigma, ok := types.FeeTierStdDev[p.Pool.FeeTier]
	if !ok {
		sigma = types.DefaultStdDev
	}

	tLower := float64(p.TickLower)
	tUpper := float64(p.TickUpper)
	tCurrent := float64(p.Pool.CurrentTick)
	mid := (tLower + tUpper) / 2

	g := func(d float64) float64 {
		return config.GaussianAmplitude * math.Exp(-(d * d) / (2 * sigma * sigma))
	}

	mu := (g(math.Abs(tCurrent-tLower)) + 4*g(math.Abs(tCurrent-mid)) + g(math.Abs(tCurrent-tUpper))) / 6

	liquidity := positionLiquidityFloat(p)
	score := mu * liquidity / 1e9

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// NormalizeScoresByPool is Step D: within each pool, divides every raw
// score by the pool's total. A pool whose positions all scored zero
// emits zero normalized scores rather than dividing by zero.
func NormalizeScoresByPool(positions []types.Position) []types.PositionScore {
	totals := make(map[string]float64)
	raw := make([]types.PositionScore, 0, len(positions))

	for _, p := range positions {
		r := PositionRawScore(p)
		raw = append(raw, types.PositionScore{PositionID: p.ID, Pool: p.Pool.ID, Raw: r})
		totals[p.Pool.ID] += r
	}

	out := make([]types.PositionScore, len(raw))
	for i, s := range raw {
		s.Normalized = 0
		if total := totals[s.Pool]; total > 0 {
			s.Normalized = s.Raw / total
		}
		out[i] = s
	}
	return out
}

// MinerWeights is Step E: combines each miner's normalized position
// scores with their pool's emission share, zeroes negligible weights,
// and renormalizes so the vector sums to exactly 1 (or all zeros).
//
// Normalization in Step D is per pool across ALL miners' positions in
// that pool, not per miner — a pool's total raw score is shared by every
// position in it regardless of which miner holds it.
func MinerWeights(positionsByMiner map[string][]types.Position, poolEmissions map[string]float64) []types.MinerWeight {
	type tagged struct {
		miner string
		pos   types.Position
		raw   float64
	}

	var all []tagged
	poolTotals := make(map[string]float64)
	for miner, positions := range positionsByMiner {
		for _, p := range positions {
			r := PositionRawScore(p)
			all = append(all, tagged{miner: miner, pos: p, raw: r})
			poolTotals[p.Pool.ID] += r
		}
	}

	raw := make(map[string]float64)
	for _, t := range all {
		total := poolTotals[t.pos.Pool.ID]
		normalized := 0.0
		if total > 0 {
			normalized = t.raw / total
		}
		raw[t.miner] += normalized * poolEmissions[t.pos.Pool.ID]
	}

	total := 0.0
	for miner, w := range raw {
		if w < config.WeightFloor {
			raw[miner] = 0
			continue
		}
		total += w
	}

	out := make([]types.MinerWeight, 0, len(raw))
	for miner, w := range raw {
		if total > 0 {
			w = w / total
		} else {
			w = 0
		}
		out = append(out, types.MinerWeight{Miner: miner, Weight: w})
	}
	return out
}

// positionLiquidityFloat converts a position's liquidity to float64 for
// use in the (necessarily floating-point) Gaussian scoring math.
func positionLiquidityFloat(p types.Position) float64 {
	if p.Liquidity.IsNil() {
		return 0
	}
	return p.LiquidityFloat()
}
