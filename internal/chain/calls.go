/*

This file implements the individual RPC calls the rest of the service
needs: current block height, pool-factory validation, and the holder
and miner roster scans behind the snapshot refreshes.

*/

package chain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liquidminer/incentived/internal/types"
)

// CurrentBlock returns the chain's current block height.
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var hexBlock string
	if err := c.call(ctx, "eth_blockNumber", nil, &hexBlock); err != nil {
		return 0, fmt.Errorf("failed to fetch current block: %w", err)
	}
	return parseHexUint64(hexBlock)
}

// ValidatePool reads token0/token1/fee from the pool at address, calls
// the factory's getPool with those parameters, and requires the result
// to byte-equal address.
func (c *Client) ValidatePool(ctx context.Context, address string) (types.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	pool, err := c.readPoolTokens(ctx, address)
	if err != nil {
		return types.Pool{}, fmt.Errorf("failed to read pool tokens: %w", err)
	}

	factoryPool, err := c.queryFactoryGetPool(ctx, pool.Token0, pool.Token1, pool.Fee)
	if err != nil {
		return types.Pool{}, fmt.Errorf("failed to query factory: %w", err)
	}

	if !strings.EqualFold(factoryPool, address) {
		return types.Pool{}, fmt.Errorf("factory pool %s does not match submitted address %s", factoryPool, address)
	}

	return pool, nil
}

// FetchHolders scans chain storage for the target subnet's alpha/tao
// balances. Satisfies internal/snapshot.HolderFetcher.
func (c *Client) FetchHolders(ctx context.Context, subnetID uint64) (map[string]types.HolderEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var raw []struct {
		Voter string  `json:"voter"`
		Alpha float64 `json:"alpha"`
		Tao   float64 `json:"tao"`
	}
	if err := c.call(ctx, "subnet_holders", []any{subnetID}, &raw); err != nil {
		return nil, fmt.Errorf("failed to scan holders for subnet %d: %w", subnetID, err)
	}

	entries := make(map[string]types.HolderEntry, len(raw))
	for _, r := range raw {
		entries[r.Voter] = types.HolderEntry{Voter: r.Voter, Alpha: r.Alpha, Tao: r.Tao}
	}
	return entries, nil
}

// FetchRoster lists the miner identities currently registered to the
// target subnet. Satisfies internal/snapshot.RosterFetcher.
func (c *Client) FetchRoster(ctx context.Context, subnetID uint64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var miners []string
	if err := c.call(ctx, "subnet_miners", []any{subnetID}, &miners); err != nil {
		return nil, fmt.Errorf("failed to scan roster for subnet %d: %w", subnetID, err)
	}
	return miners, nil
}

// readPoolTokens reads token0/token1/fee from the pool contract at address.
func (c *Client) readPoolTokens(ctx context.Context, address string) (types.Pool, error) {
	var raw struct {
		Token0  string `json:"token0"`
		Token1  string `json:"token1"`
		Fee     int    `json:"fee"`
		Symbol0 string `json:"symbol0"`
		Symbol1 string `json:"symbol1"`
	}
	if err := c.call(ctx, "pool_tokens", []any{common.HexToAddress(address).Hex()}, &raw); err != nil {
		return types.Pool{}, err
	}
	return types.Pool{
		Address: address,
		Token0:  strings.ToLower(raw.Token0),
		Token1:  strings.ToLower(raw.Token1),
		Fee:     raw.Fee,
		Symbol0: raw.Symbol0,
		Symbol1: raw.Symbol1,
	}, nil
}

// queryFactoryGetPool calls the Uniswap-V3-style factory's getPool view
// function and returns the resolved pool address.
func (c *Client) queryFactoryGetPool(ctx context.Context, token0, token1 string, fee int) (string, error) {
	var address string
	if err := c.call(ctx, "factory_getPool", []any{token0, token1, fee}, &address); err != nil {
		return "", err
	}
	return address, nil
}

// parseHexUint64 parses a "0x"-prefixed hex string into a uint64.
func parseHexUint64(hexStr string) (uint64, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	return strconv.ParseUint(hexStr, 16, 64)
}
