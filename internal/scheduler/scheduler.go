/*

This file runs the background maintenance loop: startup snapshot builds
and pool-metadata backfill, then three independent timers keeping the
holder/roster snapshots fresh, cooldown history pruned, and rate-limit
windows from growing unbounded.

*/

package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/ratelimit"
	"github.com/liquidminer/incentived/internal/snapshot"
	"github.com/liquidminer/incentived/internal/store"
	"github.com/liquidminer/incentived/internal/types"
)

// PoolValidator is the subset of internal/chain.Client the scheduler
// needs to backfill pool metadata.
type PoolValidator interface {
	ValidatePool(ctx context.Context, address string) (types.Pool, error)
}

// Scheduler owns every background refresh and cleanup this service runs
// outside the request path.
type Scheduler struct {
	Holders      *snapshot.Holders
	Roster       *snapshot.Roster
	Chain        PoolValidator
	IPLimiter    *ratelimit.Limiter
	VoterLimiter *ratelimit.Limiter
}

// New builds a Scheduler from its collaborators.
func New(holders *snapshot.Holders, roster *snapshot.Roster, chain PoolValidator, ipLimiter, voterLimiter *ratelimit.Limiter) *Scheduler {
	return &Scheduler{Holders: holders, Roster: roster, Chain: chain, IPLimiter: ipLimiter, VoterLimiter: voterLimiter}
}

// Startup runs the one-time sequence executed before the service starts
// serving requests: build the holder snapshot (fatal on failure), build
// the roster snapshot (warn on failure), then backfill any pool metadata
// referenced by a stored vote but missing from the cache.
func (s *Scheduler) Startup(ctx context.Context) error {
	log.Info().Msg("Building initial holder snapshot.")
	if err := s.Holders.Refresh(ctx); err != nil {
		return err
	}

	log.Info().Msg("Building initial subnet roster snapshot.")
	if err := s.Roster.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial roster snapshot build failed; will retry on the refresh timer.")
	}

	if err := s.backfillPoolMetadata(ctx); err != nil {
		log.Warn().Err(err).Msg("Pool-metadata backfill did not complete; remaining pools will be cached lazily on next reference.")
	}

	return nil
}

// backfillPoolMetadata fetches and caches metadata for every pool
// referenced by a stored vote but not yet present in the pool-metadata
// cache, in small batches so a large backlog doesn't hammer the chain
// RPC node on startup.
func (s *Scheduler) backfillPoolMetadata(ctx context.Context) error {
	missing, err := missingPools()
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	runID := uuid.New().String()
	log.Info().Str("backfillID", runID).Int("count", len(missing)).Msg("Backfilling missing pool metadata.")

	for i := 0; i < len(missing); i += config.PoolBackfillBatchSize {
		end := i + config.PoolBackfillBatchSize
		if end > len(missing) {
			end = len(missing)
		}

		for _, address := range missing[i:end] {
			pool, err := s.Chain.ValidatePool(ctx, address)
			if err != nil {
				log.Warn().Str("backfillID", runID).Str("pool", address).Err(err).Msg("Failed to validate pool during backfill; skipping.")
				continue
			}
			if err := store.UpsertPoolMetadata(pool); err != nil {
				log.Warn().Str("backfillID", runID).Str("pool", address).Err(err).Msg("Failed to cache pool metadata during backfill.")
			}
		}

		if end < len(missing) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(config.PoolBackfillBatchGap):
			}
		}
	}

	log.Info().Str("backfillID", runID).Msg("Pool-metadata backfill complete.")
	return nil
}

// missingPools returns the distinct pool addresses referenced by any
// stored vote that do not yet have a pool-metadata row.
func missingPools() ([]string, error) {
	votes, err := store.AllVotes()
	if err != nil {
		return nil, err
	}

	cached, err := store.AllPoolMetadata()
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(cached))
	for _, p := range cached {
		have[p.Address] = true
	}

	seen := make(map[string]bool)
	var missing []string
	for _, v := range votes {
		for _, pw := range v.Pools {
			if have[pw.Pool] || seen[pw.Pool] {
				continue
			}
			seen[pw.Pool] = true
			missing = append(missing, pw.Pool)
		}
	}
	return missing, nil
}

// Run starts the three independent background timers and blocks until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	snapshotTicker := time.NewTicker(config.SnapshotRefreshInterval)
	defer snapshotTicker.Stop()

	cooldownTicker := time.NewTicker(config.CooldownCleanupInterval)
	defer cooldownTicker.Stop()

	rateLimitTicker := time.NewTicker(config.RateLimitPruneInterval)
	defer rateLimitTicker.Stop()

	log.Info().Msg("Scheduler background loop started.")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Scheduler loop stopped due to context cancellation.")
			return

		case <-snapshotTicker.C:
			if err := s.Holders.RefreshIfStale(ctx); err != nil {
				log.Warn().Err(err).Msg("Holder snapshot refresh failed; serving the stale snapshot.")
			}
			if err := s.Roster.RefreshIfStale(ctx); err != nil {
				log.Warn().Err(err).Msg("Roster snapshot refresh failed; serving the stale snapshot.")
			}

		case <-cooldownTicker.C:
			n, err := store.CleanupExpiredCooldowns(config.CooldownResetWindow)
			if err != nil {
				log.Warn().Err(err).Msg("Cooldown cleanup failed.")
			} else if n > 0 {
				log.Info().Int64("rowsDeleted", n).Msg("Cleaned up expired vote-change rows.")
			}

		case <-rateLimitTicker.C:
			prunedIP := s.IPLimiter.Prune(config.RateLimitWindow)
			prunedVoter := s.VoterLimiter.Prune(config.RateLimitWindow)
			if prunedIP+prunedVoter > 0 {
				log.Debug().Int("prunedIP", prunedIP).Int("prunedVoter", prunedVoter).Msg("Pruned idle rate-limit windows.")
			}
		}
	}
}
