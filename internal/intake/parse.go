/*

This file parses and normalizes the pipe-separated vote message body:
"<pools>|<block>" where pools is "addr1,w1;addr2,w2;...".

*/

package intake

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/types"
)

var poolAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// parsedVote is the message body split into its pool weights and the
// block number the voter observed when signing.
type parsedVote struct {
	Pools []types.PoolWeight
	Block uint64
}

// parseMessage splits a vote message into its pool-weight entries and
// block number, validates its structure, and normalizes the weights so
// they sum to config.NormalizedWeightTotal.
func parseMessage(message string) (parsedVote, error) {
	parts := strings.Split(message, "|")
	if len(parts) != 2 {
		return parsedVote{}, fmt.Errorf("message must have exactly two pipe-separated fields")
	}

	block, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return parsedVote{}, fmt.Errorf("invalid block number: %w", err)
	}

	entries := strings.Split(parts[0], ";")
	if len(entries) == 0 || len(entries) > config.MaxPoolsPerVote {
		return parsedVote{}, fmt.Errorf("vote must contain between 1 and %d pools", config.MaxPoolsPerVote)
	}

	seen := make(map[string]bool, len(entries))
	pools := make([]types.PoolWeight, 0, len(entries))
	weights := make([]float64, 0, len(entries))

	for _, entry := range entries {
		fields := strings.Split(entry, ",")
		if len(fields) != 2 {
			return parsedVote{}, fmt.Errorf("malformed pool entry %q", entry)
		}

		addr := strings.ToLower(strings.TrimSpace(fields[0]))
		if !poolAddressPattern.MatchString(addr) {
			return parsedVote{}, fmt.Errorf("invalid pool address %q", addr)
		}
		if seen[addr] {
			return parsedVote{}, fmt.Errorf("duplicate pool address %q", addr)
		}
		seen[addr] = true

		w, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil || w <= 0 {
			return parsedVote{}, fmt.Errorf("invalid weight for pool %q", addr)
		}

		pools = append(pools, types.PoolWeight{Pool: addr})
		weights = append(weights, w)
	}

	normalized := normalizeWeights(weights)
	for i := range pools {
		pools[i].Weight = normalized[i]
	}

	return parsedVote{Pools: pools, Block: block}, nil
}

// normalizeWeights scales raw weights so they sum to exactly
// config.NormalizedWeightTotal, rounding each entry and assigning any
// residual from the rounding to the last entry.
func normalizeWeights(weights []float64) []int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}

	normalized := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		normalized[i] = int(roundHalfAwayFromZero(w * float64(config.NormalizedWeightTotal) / sum))
		total += normalized[i]
	}

	if diff := config.NormalizedWeightTotal - total; diff != 0 && len(normalized) > 0 {
		normalized[len(normalized)-1] += diff
	}
	return normalized
}

func roundHalfAwayFromZero(f float64) float64 {
	if f < 0 {
		return -roundHalfAwayFromZero(-f)
	}
	return float64(int64(f + 0.5))
}

// sortedPools returns a copy of pools sorted by address, used to compare
// two pool-weight vectors independent of submission order.
func sortedPools(pools []types.PoolWeight) []types.PoolWeight {
	out := make([]types.PoolWeight, len(pools))
	copy(out, pools)
	sort.Slice(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out
}

// samePools reports whether a and b carry the same (pool, weight) pairs,
// independent of order.
func samePools(a, b []types.PoolWeight) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := sortedPools(a), sortedPools(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
