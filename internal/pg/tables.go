// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// tables.go — table naming for one attribute bag and the DDL that creates
// its key and entry tables.

package pg

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tables names the two tables backing one attribute bag.
type Tables struct {
	Entries string
	Keys    string
}

func (t Tables) entries() string { return pgx.Identifier{t.Entries}.Sanitize() }
func (t Tables) keys() string    { return pgx.Identifier{t.Keys}.Sanitize() }

// DDL returns the idempotent statements creating t's tables and indexes.
func (t Tables) DDL() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id         BIGSERIAL PRIMARY KEY,
  key_name   TEXT NOT NULL UNIQUE,
  symbol_key BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, t.keys()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id         BIGSERIAL PRIMARY KEY,
  owner_id   BIGINT NOT NULL,
  key_id     BIGINT NOT NULL REFERENCES %s (id),
  entry_key  TEXT NOT NULL,
  value      TEXT NOT NULL,
  value_type SMALLINT NOT NULL,
  symbol_key BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (owner_id, key_id)
)`, t.entries(), t.keys()),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (entry_key)",
			pgx.Identifier{"idx_" + t.Entries + "_entry_key"}.Sanitize(), t.entries()),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (owner_id)",
			pgx.Identifier{"idx_" + t.Entries + "_owner_id"}.Sanitize(), t.entries()),
	}
}
