/*

This file contains the types for miners and the final emission outputs
the weight computation produces.

*/

package types

// PoolEmission is a pool's share of total incentive, derived from
// token-weighted votes.
type PoolEmission struct {
	Pool     string  `json:"pool"`
	Emission float64 `json:"emission"`
}

// PositionScore is a single position's normalized score within its pool.
type PositionScore struct {
	PositionID string  `json:"position_id"`
	Pool       string  `json:"pool"`
	Raw        float64 `json:"raw_score"`
	Normalized float64 `json:"normalized_score"`
}

// MinerWeight is the final per-miner probability mass this service produces.
type MinerWeight struct {
	Miner  string  `json:"miner"`
	Weight float64 `json:"weight"`
}
