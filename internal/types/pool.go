/*

This is a custom type for pools which contains all the state needed for
scoring positions within the pool and for validating votes against it.

*/

package types

// Pool is the cached metadata for a single Uniswap-V3-style pool, as
// validated against the chain's factory contract.
type Pool struct {
	Address   string `json:"address"` // lowercase 0x-prefixed pool address
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Fee       int    `json:"fee"` // one of 100, 500, 3000, 10000
	Liquidity string `json:"liquidity"`
	Symbol0   string `json:"symbol0"`
	Symbol1   string `json:"symbol1"`
}

// FeeTierStdDev maps a pool's fee tier to the standard deviation used by
// the position Gaussian scoring function. Unknown fee tiers fall back to
// the default below.
var FeeTierStdDev = map[int]float64{
	100:   10,
	500:   50,
	3000:  200,
	10000: 500,
}

// DefaultStdDev is used for fee tiers not present in FeeTierStdDev.
const DefaultStdDev = 200.0

// ValidFeeTiers is the set of fee tiers a pool address may legitimately carry.
var ValidFeeTiers = map[int]bool{
	100:   true,
	500:   true,
	3000:  true,
	10000: true,
}
