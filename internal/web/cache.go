/*

This file is the 30-second /allVotes cache: the same short-lived,
mutex-guarded cache shape internal/subgraph uses for position fetches,
applied here to the token-weighted vote listing.

*/

package web

import (
	"sync"
	"time"

	"github.com/liquidminer/incentived/internal/config"
)

type allVotesCache struct {
	mu       sync.Mutex
	cached   []voteView
	cachedAt time.Time
}

func (c *allVotesCache) get(build func() ([]voteView, error)) ([]voteView, error) {
	c.mu.Lock()
	if time.Since(c.cachedAt) < config.AllVotesCacheTTL && c.cached != nil {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	views, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = views
	c.cachedAt = time.Now()
	c.mu.Unlock()

	return views, nil
}
