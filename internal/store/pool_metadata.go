/*

This file caches pool metadata (tokens, fee tier, symbols) resolved from
the chain. The cache feeds the /pools listing and the target-pool set for
position fetches; vote intake still validates every submitted pool
against the chain's factory on each submission.

*/

package store

import (
	"database/sql"
	"fmt"

	"github.com/liquidminer/incentived/internal/types"
)

// UpsertPoolMetadata caches or refreshes metadata for a pool address.
func UpsertPoolMetadata(p types.Pool) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	stmt := `
		INSERT INTO pool_metadata (address, token0, token1, fee, symbol0, symbol1, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(address) DO UPDATE SET
			token0 = excluded.token0,
			token1 = excluded.token1,
			fee = excluded.fee,
			symbol0 = excluded.symbol0,
			symbol1 = excluded.symbol1,
			cached_at = excluded.cached_at;
	`
	if _, err = tx.Exec(stmt, p.Address, p.Token0, p.Token1, p.Fee, p.Symbol0, p.Symbol1); err != nil {
		return fmt.Errorf("failed to upsert pool metadata: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pool metadata: %w", err)
	}
	return nil
}

// GetPoolMetadata returns the cached metadata for address, or sql.ErrNoRows
// if the pool has not been resolved yet.
func GetPoolMetadata(address string) (types.Pool, error) {
	if DB == nil {
		return types.Pool{}, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`SELECT address, token0, token1, fee, symbol0, symbol1 FROM pool_metadata WHERE address = ?;`, address)

	var p types.Pool
	if err := row.Scan(&p.Address, &p.Token0, &p.Token1, &p.Fee, &p.Symbol0, &p.Symbol1); err != nil {
		if err == sql.ErrNoRows {
			return types.Pool{}, sql.ErrNoRows
		}
		return types.Pool{}, fmt.Errorf("failed to get pool metadata: %w", err)
	}
	return p, nil
}

// AllPoolMetadata returns every cached pool.
func AllPoolMetadata() ([]types.Pool, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`SELECT address, token0, token1, fee, symbol0, symbol1 FROM pool_metadata ORDER BY address;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool metadata: %w", err)
	}
	defer rows.Close()

	var out []types.Pool
	for rows.Next() {
		var p types.Pool
		if err := rows.Scan(&p.Address, &p.Token0, &p.Token1, &p.Fee, &p.Symbol0, &p.Symbol1); err != nil {
			return nil, fmt.Errorf("failed to scan pool metadata: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
