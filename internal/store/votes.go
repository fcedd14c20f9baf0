/*

This file manages the persistent current-vote table: one row per voter
holding their latest normalized pool-weight vector.

*/

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/types"
)

// ErrStaleVote is returned by UpsertVote when a stored vote's block_number
// is already greater than or equal to the incoming one: the write path's
// own idempotency/ordering guard, independent of VI's current-chain-head
// window check.
var ErrStaleVote = errors.New("stale vote: stored block_number is not older than the incoming one")

// UpsertVote replaces the current vote for v.Voter, atomically within a
// single transaction: it reads the existing row (if any) and rejects with
// ErrStaleVote unless the incoming block_number is strictly newer than the
// one stored, EXCEPT that a client retry of the exact same (block_number,
// pools) tuple already on file is treated as an idempotent no-op rather
// than an error. Logs a NEW-VOTE line on first insert and an OVERWRITE
// line (old pools -> new pools) on update.
func UpsertVote(v types.Vote) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	poolsJSON, err := json.Marshal(v.Pools)
	if err != nil {
		return fmt.Errorf("failed to marshal pool weights: %w", err)
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

	existing, existsErr := scanVote(tx.QueryRow(`SELECT voter, pools_json, total_weight, block_number, updated_at FROM votes WHERE voter = ?;`, v.Voter))
	exists := existsErr == nil
	if existsErr != nil && existsErr != sql.ErrNoRows {
		err = existsErr
		return fmt.Errorf("failed to read existing vote: %w", err)
	}
	if exists {
		retry := existing.BlockNumber == v.BlockNumber && reflect.DeepEqual(existing.Pools, v.Pools)
		if !retry && existing.BlockNumber >= v.BlockNumber {
			err = ErrStaleVote
			return err
		}
		if retry {
			return tx.Commit()
		}
	}

	stmt := `
		INSERT INTO votes (voter, pools_json, total_weight, block_number, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(voter) DO UPDATE SET
			pools_json = excluded.pools_json,
			total_weight = excluded.total_weight,
			block_number = excluded.block_number,
			updated_at = excluded.updated_at;
	`
	if _, err = tx.Exec(stmt, v.Voter, string(poolsJSON), v.TotalWeight, v.BlockNumber); err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote: %w", err)
	}

	if exists {
		log.Info().Str("voter", v.Voter).Interface("oldPools", existing.Pools).Interface("newPools", v.Pools).Msg("OVERWRITE: vote updated.")
	} else {
		log.Info().Str("voter", v.Voter).Interface("pools", v.Pools).Msg("NEW-VOTE: vote recorded.")
	}
	return nil
}

// GetVote returns voter's current vote, or sql.ErrNoRows if they haven't voted.
func GetVote(voter string) (types.Vote, error) {
	if DB == nil {
		return types.Vote{}, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`SELECT voter, pools_json, total_weight, block_number, updated_at FROM votes WHERE voter = ?;`, voter)
	return scanVote(row)
}

// AllVotes returns every voter's current vote.
func AllVotes() ([]types.Vote, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`SELECT voter, pools_json, total_weight, block_number, updated_at FROM votes ORDER BY voter;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	var out []types.Vote
	for rows.Next() {
		v, err := scanVoteRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVote(row rowScanner) (types.Vote, error) {
	var v types.Vote
	var poolsJSON string
	if err := row.Scan(&v.Voter, &poolsJSON, &v.TotalWeight, &v.BlockNumber, &v.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Vote{}, sql.ErrNoRows
		}
		return types.Vote{}, fmt.Errorf("failed to scan vote: %w", err)
	}
	if err := json.Unmarshal([]byte(poolsJSON), &v.Pools); err != nil {
		return types.Vote{}, fmt.Errorf("failed to unmarshal pool weights: %w", err)
	}
	return v, nil
}

func scanVoteRows(rows *sql.Rows) (types.Vote, error) {
	return scanVote(rows)
}
