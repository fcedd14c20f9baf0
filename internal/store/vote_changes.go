/*

This file manages the vote-change history the cooldown engine consults
to compute a voter's progressive cooldown.

*/

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liquidminer/incentived/internal/types"
)

// RecordVoteChange appends a change row exactly as given in c.
func RecordVoteChange(c types.VoteChange) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	oldJSON, err := json.Marshal(c.OldPools)
	if err != nil {
		return fmt.Errorf("failed to marshal old pool weights: %w", err)
	}
	newJSON, err := json.Marshal(c.NewPools)
	if err != nil {
		return fmt.Errorf("failed to marshal new pool weights: %w", err)
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
		INSERT INTO vote_changes (voter, old_pools_json, new_pools_json, change_time, cooldown_until, change_count)
		VALUES (?, ?, ?, ?, ?, ?);
	`
	if _, err = tx.Exec(stmt, c.Voter, string(oldJSON), string(newJSON), c.ChangeTime, c.CooldownUntil, c.ChangeCount); err != nil {
		return fmt.Errorf("failed to record vote change: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote change: %w", err)
	}
	return nil
}

// LatestVoteChange returns voter's most recent change row, or sql.ErrNoRows
// if they have never changed their vote.
func LatestVoteChange(voter string) (types.VoteChange, error) {
	if DB == nil {
		return types.VoteChange{}, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`
		SELECT voter, old_pools_json, new_pools_json, change_time, cooldown_until, change_count
		FROM vote_changes WHERE voter = ? ORDER BY change_time DESC LIMIT 1;
	`, voter)

	var c types.VoteChange
	var oldJSON, newJSON string
	if err := row.Scan(&c.Voter, &oldJSON, &newJSON, &c.ChangeTime, &c.CooldownUntil, &c.ChangeCount); err != nil {
		if err == sql.ErrNoRows {
			return types.VoteChange{}, sql.ErrNoRows
		}
		return types.VoteChange{}, fmt.Errorf("failed to get latest vote change: %w", err)
	}
	if err := json.Unmarshal([]byte(oldJSON), &c.OldPools); err != nil {
		return types.VoteChange{}, fmt.Errorf("failed to unmarshal old pool weights: %w", err)
	}
	if err := json.Unmarshal([]byte(newJSON), &c.NewPools); err != nil {
		return types.VoteChange{}, fmt.Errorf("failed to unmarshal new pool weights: %w", err)
	}
	return c, nil
}

// VoteHistory returns every change row for voter, most recent first.
func VoteHistory(voter string) ([]types.VoteChange, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`
		SELECT voter, old_pools_json, new_pools_json, change_time, cooldown_until, change_count
		FROM vote_changes WHERE voter = ? ORDER BY change_time DESC;
	`, voter)
	if err != nil {
		return nil, fmt.Errorf("failed to query vote history: %w", err)
	}
	defer rows.Close()

	var out []types.VoteChange
	for rows.Next() {
		var c types.VoteChange
		var oldJSON, newJSON string
		if err := rows.Scan(&c.Voter, &oldJSON, &newJSON, &c.ChangeTime, &c.CooldownUntil, &c.ChangeCount); err != nil {
			return nil, fmt.Errorf("failed to scan vote change: %w", err)
		}
		if err := json.Unmarshal([]byte(oldJSON), &c.OldPools); err != nil {
			return nil, fmt.Errorf("failed to unmarshal old pool weights: %w", err)
		}
		if err := json.Unmarshal([]byte(newJSON), &c.NewPools); err != nil {
			return nil, fmt.Errorf("failed to unmarshal new pool weights: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CleanupExpiredCooldowns deletes change rows whose cooldown expired more
// than resetWindow ago; they no longer influence the progressive change
// count and are safe to prune.
func CleanupExpiredCooldowns(resetWindow time.Duration) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	cutoff := time.Now().Add(-resetWindow)
	result, err := DB.Exec(`DELETE FROM vote_changes WHERE cooldown_until < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired cooldowns: %w", err)
	}
	return result.RowsAffected()
}
