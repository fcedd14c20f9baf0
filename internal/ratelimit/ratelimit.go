/*

This file implements a keyed rate limiter: one token-bucket limiter per
key (voter id or source IP), lazily created on first use and pruned
periodically by the scheduler so idle keys don't accumulate forever.

*/

package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a keyed collection of token-bucket rate limiters.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rps      rate.Limit
	burst    int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a Limiter allowing burst events immediately and refilling at
// the given rate per window.
func New(perWindow int, window time.Duration) *Limiter {
	return &Limiter{
		limiters: make(map[string]*entry),
		rps:      rate.Every(window / time.Duration(perWindow)),
		burst:    perWindow,
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = time.Now()
	l.mu.Unlock()

	return e.limiter.Allow()
}

// Prune drops limiters that have not been used within idleFor, so a
// long-running service doesn't accumulate one entry per distinct caller
// forever.
func (l *Limiter) Prune(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			pruned++
		}
	}
	return pruned
}

// Len reports the number of currently tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
