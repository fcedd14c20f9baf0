package intake

import (
	"strings"
	"testing"

	"github.com/liquidminer/incentived/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var poolA = "0x" + strings.Repeat("a", 40)
var poolB = "0x" + strings.Repeat("b", 40)

func TestNormalizeWeightsEqualSplitAdjustsLastEntry(t *testing.T) {
	normalized := normalizeWeights([]float64{1, 1, 1})
	assert.Equal(t, []int{3333, 3333, 3334}, normalized)

	sum := 0
	for _, w := range normalized {
		sum += w
	}
	assert.Equal(t, 10000, sum)
}

func TestNormalizeWeightsSingleEntryTakesWholeTotal(t *testing.T) {
	normalized := normalizeWeights([]float64{42})
	assert.Equal(t, []int{10000}, normalized)
}

func TestParseMessageHappyPath(t *testing.T) {
	msg := strings.ToUpper(poolA) + ",1;" + poolB + ",1|12345"
	parsed, err := parseMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), parsed.Block)
	require.Len(t, parsed.Pools, 2)
	assert.Equal(t, poolA, parsed.Pools[0].Pool)
	assert.Equal(t, poolB, parsed.Pools[1].Pool)
	assert.Equal(t, 5000, parsed.Pools[0].Weight)
	assert.Equal(t, 5000, parsed.Pools[1].Weight)
}

func TestParseMessageRejectsTooManyFields(t *testing.T) {
	_, err := parseMessage(poolA + ",1|100|extra")
	assert.Error(t, err)
}

func TestParseMessageRejectsMalformedAddress(t *testing.T) {
	_, err := parseMessage("not-a-pool,1|100")
	assert.Error(t, err)
}

func TestParseMessageRejectsNonPositiveWeight(t *testing.T) {
	_, err := parseMessage(poolA + ",0|100")
	assert.Error(t, err)
}

func TestParseMessageRejectsDuplicatePool(t *testing.T) {
	_, err := parseMessage(poolA + ",1;" + poolA + ",1|100")
	assert.Error(t, err)
}

func TestParseMessageRejectsTooManyPools(t *testing.T) {
	var entries []string
	for i := 0; i < 11; i++ {
		entries = append(entries, "0x"+strings.Repeat("a", 39)+string(rune('0'+i))+",1")
	}
	_, err := parseMessage(strings.Join(entries, ";") + "|100")
	assert.Error(t, err)
}

func TestSamePoolsIgnoresOrder(t *testing.T) {
	a := []types.PoolWeight{{Pool: poolA, Weight: 4000}, {Pool: poolB, Weight: 6000}}
	b := []types.PoolWeight{{Pool: poolB, Weight: 6000}, {Pool: poolA, Weight: 4000}}
	assert.True(t, samePools(a, b))

	c := []types.PoolWeight{{Pool: poolB, Weight: 5000}, {Pool: poolA, Weight: 5000}}
	assert.False(t, samePools(a, c))
}
