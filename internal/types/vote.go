/*

This is a custom type for votes which contains all the state needed for
tracking a voter's pool allocation and the history of its changes.

*/

package types

import "time"

// PoolWeight is a single (pool, weight) entry inside a vote.
type PoolWeight struct {
	Pool   string `json:"pool"`   // lowercase 0x-prefixed pool address
	Weight int    `json:"weight"` // normalized weight, part of a sum-to-10000 distribution
}

// Vote is a voter's current pool allocation.
type Vote struct {
	Voter       string       `json:"voter"`
	Pools       []PoolWeight `json:"pools"`
	Signature   string       `json:"-"`
	Message     string       `json:"-"`
	BlockNumber uint64       `json:"block_number"`
	TotalWeight int          `json:"total_weight"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// VoteChange is a single append-only row in the vote-change history.
type VoteChange struct {
	Voter          string       `json:"voter"`
	OldPools       []PoolWeight `json:"old_pools"`
	NewPools       []PoolWeight `json:"new_pools"`
	ChangeTime     time.Time    `json:"change_timestamp"`
	CooldownUntil  time.Time    `json:"cooldown_until"`
	ChangeCount    int          `json:"change_count"`
}

// Binding ties a voter identity to an external EVM account.
type Binding struct {
	Voter      string    `json:"voter"`
	External   string    `json:"external"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HolderEntry is a single voter's alpha/tao balance from the holder snapshot.
type HolderEntry struct {
	Voter   string  `json:"voter"`
	Alpha   float64 `json:"alpha"`
	Tao     float64 `json:"tao"`
}
