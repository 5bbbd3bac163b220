package pg

import (
	"context"
	"fmt"

	"github.com/AndrewDonelson/eav/internal/record"
)

// KeyRegistry resolves key names against one bag's key table.
type KeyRegistry struct {
	q    querier
	read querier
	t    Tables
}

// Register adds name, returning the existing descriptor when already present.
func (k *KeyRegistry) Register(ctx context.Context, name string, symbolic bool) (record.Key, error) {
	sql := fmt.Sprintf(`INSERT INTO %s (key_name, symbol_key) VALUES ($1, $2)
ON CONFLICT (key_name) DO UPDATE SET key_name = EXCLUDED.key_name
RETURNING id, key_name, symbol_key`, k.t.keys())
	var d record.Key
	if err := k.q.QueryRow(ctx, sql, name, symbolic).Scan(&d.ID, &d.Name, &d.Symbolic); err != nil {
		return record.Key{}, fmt.Errorf("pg register key %s: %w", k.t.Keys, err)
	}
	return d, nil
}

// FindByName returns the descriptor for name or record.ErrKeyNotFound.
func (k *KeyRegistry) FindByName(ctx context.Context, name string) (record.Key, error) {
	sql := fmt.Sprintf("SELECT id, key_name, symbol_key FROM %s WHERE key_name = $1", k.t.keys())
	var d record.Key
	if err := k.read.QueryRow(ctx, sql, name).Scan(&d.ID, &d.Name, &d.Symbolic); err != nil {
		if IsNoRows(err) {
			return record.Key{}, record.ErrKeyNotFound
		}
		return record.Key{}, fmt.Errorf("pg find key %s: %w", k.t.Keys, err)
	}
	return d, nil
}

// ListAll returns every descriptor ordered by id.
func (k *KeyRegistry) ListAll(ctx context.Context) ([]record.Key, error) {
	sql := fmt.Sprintf("SELECT id, key_name, symbol_key FROM %s ORDER BY id", k.t.keys())
	rows, err := k.read.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("pg list keys %s: %w", k.t.Keys, err)
	}
	defer rows.Close()
	var out []record.Key
	for rows.Next() {
		var d record.Key
		if err := rows.Scan(&d.ID, &d.Name, &d.Symbolic); err != nil {
			return nil, fmt.Errorf("pg scan key %s: %w", k.t.Keys, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
