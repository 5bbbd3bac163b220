// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// bag.go — BagSchema definition, compilation of table names, and the Bag
// handle that hands out AttributeStores wired to the bag's storage.

package eav

import (
	"context"
	"fmt"
	"regexp"

	"github.com/AndrewDonelson/eav/internal/keycache"
	"github.com/AndrewDonelson/eav/internal/pg"
	"github.com/AndrewDonelson/eav/internal/rediscache"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// BagSchema defines one kind of attribute bag, for example the "tech_specs"
// of a "product". Entries live in <owner>_<name> and keys in
// <owner>_<name>_keys unless the table names are given.
type BagSchema struct {
	Name       string
	Owner      string
	EntryTable string
	KeyTable   string

	// ObjectCodec overrides Config.ObjectCodec for Object-tagged values.
	ObjectCodec BlobCodec

	// Keys and Entries replace the storage picked by Open.
	Keys    KeyRegistry
	Entries EntryStorage
}

// compile fills in table names and validates identifiers.
func (s BagSchema) compile() (BagSchema, error) {
	if !identRe.MatchString(s.Name) {
		return s, fmt.Errorf("%w: name %q", ErrInvalidBag, s.Name)
	}
	if s.Owner != "" && !identRe.MatchString(s.Owner) {
		return s, fmt.Errorf("%w: owner %q", ErrInvalidBag, s.Owner)
	}
	if s.EntryTable == "" {
		s.EntryTable = s.Name
		if s.Owner != "" {
			s.EntryTable = s.Owner + "_" + s.Name
		}
	}
	if s.KeyTable == "" {
		s.KeyTable = s.EntryTable + "_keys"
	}
	for _, tbl := range []string{s.EntryTable, s.KeyTable} {
		if !identRe.MatchString(tbl) {
			return s, fmt.Errorf("%w: table %q", ErrInvalidBag, tbl)
		}
	}
	if s.EntryTable == s.KeyTable {
		return s, fmt.Errorf("%w: entry and key tables are both %q", ErrInvalidBag, s.KeyTable)
	}
	return s, nil
}

func (s BagSchema) tables() pg.Tables {
	return pg.Tables{Entries: s.EntryTable, Keys: s.KeyTable}
}

// Bag is a defined attribute bag.
type Bag struct {
	db       *DB
	schema   BagSchema
	keys     *cachedRegistry
	keyCache *keycache.Cache
	entries  EntryStorage
	rows     *rediscache.Store
	codec    ValueCodec
}

// BagStats is a snapshot of a bag's cache counters.
type BagStats struct {
	KeyCacheHits    int64
	KeyCacheMisses  int64
	KeyCacheEntries int
	RowCacheHits    int64
	RowCacheMisses  int64
	RowCacheErrors  int64
}

// Name returns the bag name.
func (b *Bag) Name() string { return b.schema.Name }

// Tables returns the entry and key table names.
func (b *Bag) Tables() (entries, keys string) {
	return b.schema.EntryTable, b.schema.KeyTable
}

// For returns a new, unloaded AttributeStore for owner.
func (b *Bag) For(owner Owner) *AttributeStore {
	return NewAttributeStore(owner, StoreOptions{
		Bag:     b.schema.Name,
		Keys:    b.keys,
		Entries: b.entries,
		Codec:   b.codec,
		Clock:   b.db.cfg.Clock,
		Logger:  b.db.logger,
		Metrics: b.db.metrics,
	})
}

// RegisterKey adds name to the bag's key registry; registering an existing
// name returns its descriptor.
func (b *Bag) RegisterKey(ctx context.Context, name string, symbolic bool) (KeyDescriptor, error) {
	if b.db.closed.Load() {
		return KeyDescriptor{}, ErrClosed
	}
	if err := checkKeyName(name); err != nil {
		return KeyDescriptor{}, err
	}
	k, err := b.keys.Register(ctx, name, symbolic)
	if err != nil {
		return KeyDescriptor{}, fmt.Errorf("eav: register key %s.%s: %w", b.schema.Name, name, err)
	}
	b.db.logger.Info("eav: key registered", "bag", b.schema.Name, "key", k.Name, "id", k.ID)
	return k, nil
}

// Keys lists every registered key of the bag.
func (b *Bag) Keys(ctx context.Context) ([]KeyDescriptor, error) {
	if b.db.closed.Load() {
		return nil, ErrClosed
	}
	return b.keys.ListAll(ctx)
}

// Stats returns cache counters. Row cache fields are zero without Redis.
func (b *Bag) Stats() BagStats {
	ks := b.keyCache.Stats()
	st := BagStats{
		KeyCacheHits:    ks.Hits,
		KeyCacheMisses:  ks.Misses,
		KeyCacheEntries: ks.Entries,
	}
	if b.rows != nil {
		rs := b.rows.Stats()
		st.RowCacheHits, st.RowCacheMisses, st.RowCacheErrors = rs.Hits, rs.Misses, rs.Errors
	}
	return st
}
