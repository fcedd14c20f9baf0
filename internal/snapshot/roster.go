/*

This file owns the subnet roster: the current set of registered miner
identities, refreshed on the same atomic-swap discipline as the holder
snapshot but tolerant of a slower or failing refresh — startup only
warns, never fails, if the first roster build doesn't succeed.

*/

package snapshot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// RosterFetcher lists the miner identities currently registered to the
// target subnet. Implemented by internal/chain.
type RosterFetcher interface {
	FetchRoster(ctx context.Context, subnetID uint64) ([]string, error)
}

// Roster is the process-global subnet roster snapshot.
type Roster struct {
	fetcher  RosterFetcher
	subnetID uint64
	ttl      time.Duration
	snapshot atomic.Pointer[rosterState]
}

type rosterState struct {
	miners      map[string]bool
	lastUpdated time.Time
}

// NewRoster constructs a Roster snapshot; call Refresh at least once
// before use.
func NewRoster(fetcher RosterFetcher, subnetID uint64, ttl time.Duration) *Roster {
	return &Roster{fetcher: fetcher, subnetID: subnetID, ttl: ttl}
}

// Refresh rebuilds the roster and atomically replaces the old one.
func (r *Roster) Refresh(ctx context.Context) error {
	miners, err := r.fetcher.FetchRoster(ctx, r.subnetID)
	if err != nil {
		return fmt.Errorf("failed to fetch subnet roster: %w", err)
	}

	set := make(map[string]bool, len(miners))
	for _, m := range miners {
		set[m] = true
	}

	r.snapshot.Store(&rosterState{miners: set, lastUpdated: time.Now()})
	log.Info().Int("miners", len(set)).Msg("Subnet roster refreshed.")
	return nil
}

// RefreshIfStale rebuilds the roster only if it is older than its TTL.
func (r *Roster) RefreshIfStale(ctx context.Context) error {
	if !r.Stale() {
		return nil
	}
	return r.Refresh(ctx)
}

// Stale reports whether the current roster has outlived its TTL (or no
// roster has ever been built).
func (r *Roster) Stale() bool {
	s := r.snapshot.Load()
	if s == nil {
		return true
	}
	return time.Since(s.lastUpdated) > r.ttl
}

// Contains reports whether miner is currently registered to the subnet.
func (r *Roster) Contains(miner string) bool {
	s := r.snapshot.Load()
	if s == nil {
		return false
	}
	return s.miners[miner]
}

// All returns the current roster as a sorted-free slice.
func (r *Roster) All() []string {
	s := r.snapshot.Load()
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.miners))
	for m := range s.miners {
		out = append(out, m)
	}
	return out
}

// LastUpdated reports when the current roster was built.
func (r *Roster) LastUpdated() time.Time {
	s := r.snapshot.Load()
	if s == nil {
		return time.Time{}
	}
	return s.lastUpdated
}
