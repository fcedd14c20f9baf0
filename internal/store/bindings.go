/*

This file manages the persistent voter-to-external-account bindings
produced by the address-claim orchestrator.

*/

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/liquidminer/incentived/internal/types"
)

// UpsertBinding inserts or replaces the binding for voter.
func UpsertBinding(voter, external string) error {
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
		INSERT INTO bindings (voter, external, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(voter) DO UPDATE SET
			external = excluded.external,
			updated_at = excluded.updated_at;
	`
	if _, err = tx.Exec(stmt, voter, external); err != nil {
		return fmt.Errorf("failed to upsert binding: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit binding: %w", err)
	}
	return nil
}

// GetBinding returns the binding for voter, or sql.ErrNoRows if unbound.
func GetBinding(voter string) (types.Binding, error) {
	if DB == nil {
		return types.Binding{}, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`SELECT voter, external, updated_at FROM bindings WHERE voter = ?;`, voter)

	var b types.Binding
	if err := row.Scan(&b.Voter, &b.External, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Binding{}, sql.ErrNoRows
		}
		return types.Binding{}, fmt.Errorf("failed to get binding: %w", err)
	}
	return b, nil
}

// BindingByExternal returns the binding whose external account matches, or
// sql.ErrNoRows if no voter currently claims it.
func BindingByExternal(external string) (types.Binding, error) {
	if DB == nil {
		return types.Binding{}, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`SELECT voter, external, updated_at FROM bindings WHERE external = ?;`, external)

	var b types.Binding
	if err := row.Scan(&b.Voter, &b.External, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.Binding{}, sql.ErrNoRows
		}
		return types.Binding{}, fmt.Errorf("failed to get binding: %w", err)
	}
	return b, nil
}

// AllBindings returns every voter-to-external binding.
func AllBindings() ([]types.Binding, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`SELECT voter, external, updated_at FROM bindings ORDER BY voter;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bindings: %w", err)
	}
	defer rows.Close()

	var out []types.Binding
	for rows.Next() {
		var b types.Binding
		var updatedAt time.Time
		if err := rows.Scan(&b.Voter, &b.External, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		b.UpdatedAt = updatedAt
		out = append(out, b)
	}
	return out, rows.Err()
}
