/*

This file implements the progressive cooldown state machine: a voter who
changes their vote too often accumulates an exponentially longer wait
before their next change is admitted. Every function here is pure over
its inputs — the caller is responsible for reading the latest
vote-change row from the store and persisting whatever this package
decides.

*/

package cooldown

import (
	"fmt"
	"math"
	"time"

	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/types"
)

// Decision is the outcome of evaluating a vote-change attempt.
type Decision struct {
	Admit          bool
	NextCooldown   time.Duration
	RemainingUntil time.Time
	Message        string
}

// Evaluate decides whether a vote change from a voter with no current vote,
// or whose latest vote-change row is latest (zero value if none exists),
// to newPools is permitted right now.
//
// hasCurrentVote and samePools let the caller short-circuit: a voter with
// no current vote, or one resubmitting their existing pools, is always
// admitted at the base cooldown.
func Evaluate(hasCurrentVote, samePools bool, latest types.VoteChange, now time.Time) Decision {
	if !hasCurrentVote || samePools {
		return Decision{Admit: true, NextCooldown: config.CooldownBase}
	}

	if !latest.CooldownUntil.IsZero() && latest.CooldownUntil.After(now) {
		remaining := latest.CooldownUntil.Sub(now)
		return Decision{
			Admit:          false,
			RemainingUntil: latest.CooldownUntil,
			Message:        fmt.Sprintf("vote change is on cooldown for %s", formatRemaining(remaining)),
		}
	}

	effectiveCount := effectiveChangeCount(latest, now)
	return Decision{Admit: true, NextCooldown: nextCooldown(effectiveCount)}
}

// Status is the externally-visible cooldown state for a voter, as returned
// by the voteCooldown endpoint.
type Status struct {
	Active          bool
	RemainingUntil  time.Time
	ChangeCount     int
	NextChangeCooldown time.Duration
}

// StatusFor reports a voter's current cooldown state given their latest
// vote-change row (zero value if they have never changed their vote).
func StatusFor(latest types.VoteChange, now time.Time) Status {
	effectiveCount := effectiveChangeCount(latest, now)
	active := !latest.CooldownUntil.IsZero() && latest.CooldownUntil.After(now)

	return Status{
		Active:             active,
		RemainingUntil:     latest.CooldownUntil,
		ChangeCount:        effectiveCount,
		NextChangeCooldown: nextCooldown(effectiveCount),
	}
}

// NextChangeCount computes the change_count to persist for a new
// vote-change row, given the latest prior row.
func NextChangeCount(latest types.VoteChange, now time.Time) int {
	if !latest.ChangeTime.IsZero() && now.Sub(latest.ChangeTime) <= config.CooldownResetWindow {
		return latest.ChangeCount + 1
	}
	return 1
}

// effectiveChangeCount is the change_count that still counts toward the
// progressive multiplier: zero once the reset window has elapsed since
// the last change.
func effectiveChangeCount(latest types.VoteChange, now time.Time) int {
	if latest.ChangeTime.IsZero() {
		return 0
	}
	if now.Sub(latest.ChangeTime) > config.CooldownResetWindow {
		return 0
	}
	return latest.ChangeCount
}

// nextCooldown computes base * multiplier^max(0, effectiveCount+1-threshold),
// clamped to [base, cap].
func nextCooldown(effectiveCount int) time.Duration {
	exp := effectiveCount + 1 - config.FrequentChangeThreshold
	if exp < 0 {
		exp = 0
	}
	scaled := float64(config.CooldownBase) * math.Pow(config.CooldownMultiplier, float64(exp))
	if scaled >= float64(config.CooldownCap) {
		return config.CooldownCap
	}

	d := time.Duration(scaled)
	if d < config.CooldownBase {
		d = config.CooldownBase
	}
	if d > config.CooldownCap {
		d = config.CooldownCap
	}
	return d
}

// formatRemaining renders a duration as the whole-minutes message used in
// cooldown-rejection errors.
func formatRemaining(d time.Duration) string {
	minutes := int(math.Floor(d.Minutes()))
	if minutes <= 1 {
		return "1 more minute"
	}
	return fmt.Sprintf("%d more minutes", minutes)
}
