/*

This file contains the fixed parameters for the cooldown engine and the
emission engine. Unlike the rest of config, these are not environment
driven: the specification pins their values so every deployment computes
identical weights from identical inputs.

*/

package config

import "time"

const (
	// --- Cooldown Engine (CE) ---

	// CooldownBase is the minimum cooldown duration after a vote change.
	CooldownBase = 72 * time.Minute

	// CooldownMultiplier scales the cooldown for each additional change
	// within the reset window, once the frequent-change threshold is hit.
	CooldownMultiplier = 2.0

	// CooldownCap bounds the maximum cooldown duration regardless of how
	// many rapid changes a voter has made.
	CooldownCap = 8 * time.Hour

	// CooldownResetWindow is how long since the last change before the
	// progressive change-count decays back to zero.
	CooldownResetWindow = 24 * time.Hour

	// FrequentChangeThreshold is the change count above which the
	// progressive multiplier starts compounding.
	FrequentChangeThreshold = 2

	// --- Vote Intake (VI) ---

	// MaxPoolsPerVote bounds how many (pool, weight) entries a single vote
	// may contain.
	MaxPoolsPerVote = 10

	// NormalizedWeightTotal is the exact sum every normalized vote's
	// weights must equal.
	NormalizedWeightTotal = 10000

	// --- Rate limiting ---

	RateLimitWindow   = 60 * time.Second
	RateLimitPerIP    = 30
	RateLimitPerVoter = 5

	// --- Emission Engine (EE) ---

	// GaussianAmplitude is the amplitude `a` in the position scoring
	// Gaussian.
	GaussianAmplitude = 10.0

	// WeightFloor zeroes any per-miner weight below this before the final
	// renormalization pass.
	WeightFloor = 1e-9

	// --- Snapshots ---

	HolderSnapshotTTL = 60 * time.Second
	RosterTTL         = 5 * time.Minute

	// --- Scheduler ---

	SnapshotRefreshInterval  = 60 * time.Second
	CooldownCleanupInterval  = 60 * time.Minute
	RateLimitPruneInterval   = 5 * time.Minute
	PoolBackfillBatchSize    = 5
	PoolBackfillBatchGap     = 1 * time.Second

	// --- HTTP cache ---

	AllVotesCacheTTL  = 30 * time.Second
	PositionCacheTTL  = 60 * time.Second

	// --- Request input bounds ---

	// MaxMessageLength bounds the raw pipe-separated message body of a
	// vote or claim submission.
	MaxMessageLength = 2048

	// MaxSignatureLength bounds a hex-encoded signature, well above the
	// longest scheme this service verifies (65-byte EVM signatures).
	MaxSignatureLength = 256

	// MaxAddressLength bounds a submitted address string, well above the
	// longest SS58 or 0x-prefixed EVM address.
	MaxAddressLength = 128
)
