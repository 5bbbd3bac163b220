// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// migrate.go — creates each bag's key and entry tables in PostgreSQL and
// records applied steps in the _eav_migrations ledger.

package eav

import (
	"context"
	"fmt"
	"time"

	"github.com/AndrewDonelson/eav/internal/pg"
	"github.com/jackc/pgx/v5"
)

const migrationTable = "_eav_migrations"

// MigrationRecord describes a single applied migration step.
type MigrationRecord struct {
	ID        int
	Bag       string
	Step      string
	AppliedAt time.Time
}

// Migrate creates the tables of every defined bag (idempotent). Bolt and
// memory storage need no migration, so Migrate is a no-op without Postgres.
func (db *DB) Migrate(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if db.pg == nil {
		return nil
	}
	if err := db.ensureMigrationTable(ctx); err != nil {
		return err
	}
	for _, b := range db.Bags() {
		if err := db.migrateBag(ctx, b); err != nil {
			return fmt.Errorf("migrate bag %q: %w", b.schema.Name, err)
		}
	}
	return nil
}

// MigrationStatus returns the applied steps in order.
func (db *DB) MigrationStatus(ctx context.Context) ([]MigrationRecord, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	if db.pg == nil {
		return nil, ErrNoPostgres
	}
	rows, err := db.pg.Query(ctx,
		fmt.Sprintf("SELECT id, bag_name, step, applied_at FROM %s ORDER BY id", migrationTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.ID, &r.Bag, &r.Step, &r.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (db *DB) ensureMigrationTable(ctx context.Context) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
id         SERIAL PRIMARY KEY,
bag_name   TEXT NOT NULL,
step       TEXT NOT NULL,
applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, migrationTable)
	return db.pg.Exec(ctx, sql)
}

func (db *DB) migrateBag(ctx context.Context, b *Bag) error {
	entries, keys := b.Tables()
	entriesExist, err := db.tableExists(ctx, entries)
	if err != nil {
		return err
	}
	keysExist, err := db.tableExists(ctx, keys)
	if err != nil {
		return err
	}
	if entriesExist && keysExist {
		return nil
	}

	tx, err := db.pg.BeginTx(ctx)
	if err != nil {
		return err
	}
	for _, stmt := range b.schema.tables().DDL() {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("create tables %q/%q: %w", entries, keys, err)
		}
	}
	if err := recordMigration(ctx, tx, b.schema.Name, "create_tables"); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	db.logger.Info("eav: bag migrated", "bag", b.schema.Name, "entries", entries, "keys", keys)
	return nil
}

func (db *DB) tableExists(ctx context.Context, table string) (bool, error) {
	sql := `SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1 LIMIT 1`
	var dummy int
	if err := db.pg.QueryRow(ctx, sql, table).Scan(&dummy); err != nil {
		if pg.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func recordMigration(ctx context.Context, tx pgx.Tx, bag, step string) error {
	_, err := tx.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (bag_name, step) VALUES ($1, $2)", migrationTable),
		bag, step,
	)
	return err
}
