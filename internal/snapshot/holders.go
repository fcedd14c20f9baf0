/*

This file owns the holder snapshot: a process-global, atomically
swapped mapping from voter identity to alpha/tao balance, rebuilt
periodically from chain. Readers never block on a rebuild in progress —
they always see the last fully-built snapshot.

*/

package snapshot

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/types"
	"github.com/rs/zerolog/log"
)

// HolderFetcher builds a fresh set of holder balances for the target
// subnet. Implemented by internal/chain.
type HolderFetcher interface {
	FetchHolders(ctx context.Context, subnetID uint64) (map[string]types.HolderEntry, error)
}

// Holders is the process-global holder snapshot.
type Holders struct {
	fetcher   HolderFetcher
	subnetID  uint64
	ttl       time.Duration
	snapshot  atomic.Pointer[holderState]
}

type holderState struct {
	entries     map[string]types.HolderEntry
	lastUpdated time.Time
}

// NewHolders constructs a Holders snapshot; call Refresh at least once
// before use.
func NewHolders(fetcher HolderFetcher, subnetID uint64, ttl time.Duration) *Holders {
	return &Holders{fetcher: fetcher, subnetID: subnetID, ttl: ttl}
}

// Refresh rebuilds the snapshot and atomically replaces the old one.
func (h *Holders) Refresh(ctx context.Context) error {
	entries, err := h.fetcher.FetchHolders(ctx, h.subnetID)
	if err != nil {
		return fmt.Errorf("failed to fetch holder snapshot: %w", err)
	}

	h.snapshot.Store(&holderState{entries: entries, lastUpdated: time.Now()})
	log.Info().Int("holders", len(entries)).Msg("Holder snapshot refreshed.")

	if config.LogCSV {
		if err := writeHolderCSV(entries); err != nil {
			log.Warn().Err(err).Msg("Failed to write holder snapshot CSV.")
		}
	}
	return nil
}

// writeHolderCSV dumps the snapshot to logs/holders-<unixNano>.csv. Purely
// diagnostic: a failure here never affects the in-memory snapshot.
func writeHolderCSV(entries map[string]types.HolderEntry) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join("logs", fmt.Sprintf("holders-%d.csv", time.Now().UnixNano()))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"voter", "alpha", "tao"}); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			entry.Voter,
			strconv.FormatFloat(entry.Alpha, 'f', -1, 64),
			strconv.FormatFloat(entry.Tao, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// RefreshIfStale rebuilds the snapshot only if it is older than its TTL.
func (h *Holders) RefreshIfStale(ctx context.Context) error {
	if !h.Stale() {
		return nil
	}
	return h.Refresh(ctx)
}

// Stale reports whether the current snapshot has outlived its TTL (or no
// snapshot has ever been built).
func (h *Holders) Stale() bool {
	s := h.snapshot.Load()
	if s == nil {
		return true
	}
	return time.Since(s.lastUpdated) > h.ttl
}

// Get returns the holder entry for voter and whether it was found.
func (h *Holders) Get(voter string) (types.HolderEntry, bool) {
	s := h.snapshot.Load()
	if s == nil {
		return types.HolderEntry{}, false
	}
	entry, ok := s.entries[voter]
	return entry, ok
}

// All returns a copy of the current snapshot's entries.
func (h *Holders) All() map[string]types.HolderEntry {
	s := h.snapshot.Load()
	if s == nil {
		return map[string]types.HolderEntry{}
	}
	out := make(map[string]types.HolderEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// LastUpdated reports when the current snapshot was built.
func (h *Holders) LastUpdated() time.Time {
	s := h.snapshot.Load()
	if s == nil {
		return time.Time{}
	}
	return s.lastUpdated
}
