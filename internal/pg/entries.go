// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// entries.go — entry row storage: owner fetch, (owner, key) upsert and delete,
// and transactional batches for flush.

package pg

import (
	"context"
	"fmt"

	"github.com/AndrewDonelson/eav/internal/record"
)

// EntryStore reads and writes one bag's entry rows.
type EntryStore struct {
	store *Store
	q     querier
	read  querier
	t     Tables
}

// FetchAllForOwner returns the owner's rows ordered by id.
func (e *EntryStore) FetchAllForOwner(ctx context.Context, ownerID int64) ([]record.Row, error) {
	sql := fmt.Sprintf(
		"SELECT id, owner_id, key_id, entry_key, value, value_type, symbol_key FROM %s WHERE owner_id = $1 ORDER BY id",
		e.t.entries())
	rows, err := e.read.Query(ctx, sql, ownerID)
	if err != nil {
		return nil, fmt.Errorf("pg fetch %s: %w", e.t.Entries, err)
	}
	defer rows.Close()

	var out []record.Row
	for rows.Next() {
		var r record.Row
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.KeyID, &r.KeyName, &r.Value, &r.ValueType, &r.SymbolKey); err != nil {
			return nil, fmt.Errorf("pg scan %s: %w", e.t.Entries, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg fetch %s: %w", e.t.Entries, err)
	}
	return out, nil
}

// Upsert inserts row or updates the row for the same (owner_id, key_id).
func (e *EntryStore) Upsert(ctx context.Context, row *record.Row) error {
	sql := fmt.Sprintf(`INSERT INTO %s (owner_id, key_id, entry_key, value, value_type, symbol_key)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (owner_id, key_id) DO UPDATE SET
  entry_key = EXCLUDED.entry_key,
  value = EXCLUDED.value,
  value_type = EXCLUDED.value_type,
  symbol_key = EXCLUDED.symbol_key,
  updated_at = now()
RETURNING id`, e.t.entries())
	err := e.q.QueryRow(ctx, sql,
		row.OwnerID, row.KeyID, row.KeyName, row.Value, row.ValueType, row.SymbolKey,
	).Scan(&row.ID)
	if err != nil {
		return fmt.Errorf("pg upsert %s: %w", e.t.Entries, err)
	}
	return nil
}

// Delete removes the row for (row.OwnerID, row.KeyID).
func (e *EntryStore) Delete(ctx context.Context, row record.Row) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE owner_id = $1 AND key_id = $2", e.t.entries())
	if _, err := e.q.Exec(ctx, sql, row.OwnerID, row.KeyID); err != nil {
		return fmt.Errorf("pg delete %s: %w", e.t.Entries, err)
	}
	return nil
}

// Batch runs fn inside one transaction, committing only if fn succeeds.
func (e *EntryStore) Batch(ctx context.Context, fn func(record.Writer) error) error {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("pg begin %s: %w", e.t.Entries, err)
	}
	if err := fn(&EntryStore{store: e.store, q: tx, read: tx, t: e.t}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg commit %s: %w", e.t.Entries, err)
	}
	return nil
}
