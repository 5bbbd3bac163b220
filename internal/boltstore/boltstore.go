// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// boltstore.go — embedded entry storage and key registry on bbolt. Each bag
// owns three buckets: keys by name, key names by id, and entry rows keyed by
// big-endian (owner_id, key_id) so one cursor seek returns an owner's rows.

// Package boltstore implements entry storage and a key registry on bbolt.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/AndrewDonelson/eav/internal/record"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// Options configures Open.
type Options struct {
	// IsTesting trades durability for speed.
	IsTesting bool
	Timeout   time.Duration
}

// DB is an open bbolt file shared by every bag.
type DB struct {
	bdb *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string, opt Options) (*DB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("boltstore: %w", err)
	}
	return &DB{bdb: bdb}, nil
}

// Close releases the database file.
func (db *DB) Close() error {
	return db.bdb.Close()
}

// Bag is one attribute bag's buckets.
type Bag struct {
	db      *DB
	keys    []byte
	keyIDs  []byte
	entries []byte
}

// Bag returns the storage for name, creating its buckets if needed.
func (db *DB) Bag(name string) (*Bag, error) {
	b := &Bag{
		db:      db,
		keys:    []byte(name + "/keys"),
		keyIDs:  []byte(name + "/key_ids"),
		entries: []byte(name + "/entries"),
	}
	err := db.bdb.Update(func(tx *bbolt.Tx) error {
		for _, n := range [][]byte{b.keys, b.keyIDs, b.entries} {
			if _, err := tx.CreateBucketIfNotExists(n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: create buckets for %s: %w", name, err)
	}
	return b, nil
}

func u64(n int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return b[:]
}

func entryKey(ownerID, keyID int64) []byte {
	return append(u64(ownerID), u64(keyID)...)
}

// FetchAllForOwner returns the owner's rows ordered by key id.
func (b *Bag) FetchAllForOwner(_ context.Context, ownerID int64) ([]record.Row, error) {
	var out []record.Row
	prefix := u64(ownerID)
	err := b.db.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(b.entries).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r record.Row
			if err := msgpack.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode row %x: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore fetch: %w", err)
	}
	return out, nil
}

// Upsert writes row in its own transaction.
func (b *Bag) Upsert(ctx context.Context, row *record.Row) error {
	return b.db.bdb.Update(func(tx *bbolt.Tx) error {
		return (&txWriter{bag: b, tx: tx}).Upsert(ctx, row)
	})
}

// Delete removes row in its own transaction.
func (b *Bag) Delete(ctx context.Context, row record.Row) error {
	return b.db.bdb.Update(func(tx *bbolt.Tx) error {
		return (&txWriter{bag: b, tx: tx}).Delete(ctx, row)
	})
}

// Batch applies every write made by fn in one bbolt transaction.
func (b *Bag) Batch(_ context.Context, fn func(record.Writer) error) error {
	return b.db.bdb.Update(func(tx *bbolt.Tx) error {
		return fn(&txWriter{bag: b, tx: tx})
	})
}

type txWriter struct {
	bag *Bag
	tx  *bbolt.Tx
}

func (w *txWriter) Upsert(_ context.Context, row *record.Row) error {
	buck := w.tx.Bucket(w.bag.entries)
	k := entryKey(row.OwnerID, row.KeyID)
	if existing := buck.Get(k); existing != nil {
		var prev record.Row
		if err := msgpack.Unmarshal(existing, &prev); err != nil {
			return fmt.Errorf("boltstore upsert: decode existing: %w", err)
		}
		row.ID = prev.ID
	} else {
		seq, err := buck.NextSequence()
		if err != nil {
			return fmt.Errorf("boltstore upsert: %w", err)
		}
		row.ID = int64(seq)
	}
	v, err := msgpack.Marshal(row)
	if err != nil {
		return fmt.Errorf("boltstore upsert: %w", err)
	}
	if err := buck.Put(k, v); err != nil {
		return fmt.Errorf("boltstore upsert: %w", err)
	}
	return nil
}

func (w *txWriter) Delete(_ context.Context, row record.Row) error {
	if err := w.tx.Bucket(w.bag.entries).Delete(entryKey(row.OwnerID, row.KeyID)); err != nil {
		return fmt.Errorf("boltstore delete: %w", err)
	}
	return nil
}

// Register adds name, returning the existing descriptor when already present.
func (b *Bag) Register(_ context.Context, name string, symbolic bool) (record.Key, error) {
	var d record.Key
	err := b.db.bdb.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(b.keys)
		if v := keys.Get([]byte(name)); v != nil {
			return msgpack.Unmarshal(v, &d)
		}
		seq, err := keys.NextSequence()
		if err != nil {
			return err
		}
		d = record.Key{ID: int64(seq), Name: name, Symbolic: symbolic}
		v, err := msgpack.Marshal(d)
		if err != nil {
			return err
		}
		if err := keys.Put([]byte(name), v); err != nil {
			return err
		}
		return tx.Bucket(b.keyIDs).Put(u64(d.ID), []byte(name))
	})
	if err != nil {
		return record.Key{}, fmt.Errorf("boltstore register key %q: %w", name, err)
	}
	return d, nil
}

// FindByName returns the descriptor for name or record.ErrKeyNotFound.
func (b *Bag) FindByName(_ context.Context, name string) (record.Key, error) {
	var (
		d     record.Key
		found bool
	)
	err := b.db.bdb.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(b.keys).Get([]byte(name))
		if v == nil {
			return nil
		}
		found = true
		return msgpack.Unmarshal(v, &d)
	})
	if err != nil {
		return record.Key{}, fmt.Errorf("boltstore find key %q: %w", name, err)
	}
	if !found {
		return record.Key{}, record.ErrKeyNotFound
	}
	return d, nil
}

// ListAll returns every descriptor ordered by id.
func (b *Bag) ListAll(_ context.Context) ([]record.Key, error) {
	var out []record.Key
	err := b.db.bdb.View(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(b.keys)
		return tx.Bucket(b.keyIDs).ForEach(func(_, name []byte) error {
			var d record.Key
			if err := msgpack.Unmarshal(keys.Get(name), &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore list keys: %w", err)
	}
	return out, nil
}
