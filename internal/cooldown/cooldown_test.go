package cooldown

import (
	"testing"
	"time"

	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateFreshVoterAdmitsAtBase(t *testing.T) {
	d := Evaluate(false, false, types.VoteChange{}, time.Now())
	assert.True(t, d.Admit)
	assert.Equal(t, config.CooldownBase, d.NextCooldown)
}

func TestEvaluateSamePoolsAdmitsAtBase(t *testing.T) {
	d := Evaluate(true, true, types.VoteChange{}, time.Now())
	assert.True(t, d.Admit)
	assert.Equal(t, config.CooldownBase, d.NextCooldown)
}

func TestEvaluateRejectsWhileCoolingDown(t *testing.T) {
	now := time.Now()
	latest := types.VoteChange{
		ChangeTime:    now,
		CooldownUntil: now.Add(72 * time.Minute),
		ChangeCount:   1,
	}

	d := Evaluate(true, false, latest, now.Add(time.Second))
	require.False(t, d.Admit)
	assert.Contains(t, d.Message, "71 more minutes")
}

func TestProgressiveCooldownScenario(t *testing.T) {
	// A second change after the first cooldown has expired, but still
	// within the reset window, is admitted at base until the frequent-
	// change threshold is crossed.
	t0 := time.Now()
	first := types.VoteChange{
		ChangeTime:    t0,
		CooldownUntil: t0.Add(72 * time.Minute),
		ChangeCount:   1,
	}

	at := t0.Add(73 * time.Minute)
	d := Evaluate(true, false, first, at)
	require.True(t, d.Admit)
	assert.Equal(t, config.CooldownBase, d.NextCooldown)

	newCount := NextChangeCount(first, at)
	assert.Equal(t, 2, newCount)

	// A third change, still within the window and now past the
	// threshold, doubles the cooldown.
	second := types.VoteChange{
		ChangeTime:    at,
		CooldownUntil: at.Add(config.CooldownBase),
		ChangeCount:   2,
	}
	at2 := at.Add(config.CooldownBase + time.Minute)
	d2 := Evaluate(true, false, second, at2)
	require.True(t, d2.Admit)
	assert.Equal(t, config.CooldownBase*2, d2.NextCooldown)
}

func TestEffectiveCountResetsAfterWindow(t *testing.T) {
	t0 := time.Now()
	latest := types.VoteChange{
		ChangeTime:    t0,
		CooldownUntil: t0.Add(72 * time.Minute),
		ChangeCount:   5,
	}

	at := t0.Add(config.CooldownResetWindow + time.Millisecond)
	status := StatusFor(latest, at)
	assert.Equal(t, 0, status.ChangeCount)
	assert.False(t, status.Active)
}

func TestNextCooldownClampedToCap(t *testing.T) {
	d := nextCooldown(50)
	assert.Equal(t, config.CooldownCap, d)
}

func TestNextCooldownNeverBelowBase(t *testing.T) {
	d := nextCooldown(0)
	assert.GreaterOrEqual(t, d, config.CooldownBase)
}
