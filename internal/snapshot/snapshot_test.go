package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/liquidminer/incentived/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHolderFetcher struct {
	entries map[string]types.HolderEntry
	err     error
}

func (f *fakeHolderFetcher) FetchHolders(ctx context.Context, subnetID uint64) (map[string]types.HolderEntry, error) {
	return f.entries, f.err
}

type fakeRosterFetcher struct {
	miners []string
	err    error
}

func (f *fakeRosterFetcher) FetchRoster(ctx context.Context, subnetID uint64) ([]string, error) {
	return f.miners, f.err
}

func TestHoldersRefreshAndGet(t *testing.T) {
	fetcher := &fakeHolderFetcher{entries: map[string]types.HolderEntry{
		"v1": {Voter: "v1", Alpha: 100},
	}}
	h := NewHolders(fetcher, 1, time.Minute)

	assert.True(t, h.Stale())
	require.NoError(t, h.Refresh(context.Background()))
	assert.False(t, h.Stale())

	entry, ok := h.Get("v1")
	require.True(t, ok)
	assert.Equal(t, 100.0, entry.Alpha)

	_, ok = h.Get("nobody")
	assert.False(t, ok)
}

func TestHoldersRefreshFailurePreservesOldSnapshot(t *testing.T) {
	fetcher := &fakeHolderFetcher{entries: map[string]types.HolderEntry{"v1": {Voter: "v1", Alpha: 1}}}
	h := NewHolders(fetcher, 1, time.Minute)
	require.NoError(t, h.Refresh(context.Background()))

	fetcher.err = errors.New("rpc unavailable")
	err := h.Refresh(context.Background())
	assert.Error(t, err)

	_, ok := h.Get("v1")
	assert.True(t, ok, "a failed refresh must not discard the last good snapshot")
}

func TestRosterContainsAndRefresh(t *testing.T) {
	fetcher := &fakeRosterFetcher{miners: []string{"m1", "m2"}}
	r := NewRoster(fetcher, 1, time.Minute)

	require.NoError(t, r.Refresh(context.Background()))
	assert.True(t, r.Contains("m1"))
	assert.False(t, r.Contains("m3"))
	assert.Len(t, r.All(), 2)
}
