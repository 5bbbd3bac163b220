// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// attributes.go — AttributeStore: the lazily loaded, write-buffered attribute
// collection of one owner. Reads and writes touch memory only; Flush is the
// single point where storage is written.

package eav

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/AndrewDonelson/eav/internal/clock"
	"github.com/AndrewDonelson/eav/internal/memstore"
	"github.com/AndrewDonelson/eav/internal/metrics"
)

// StoreOptions wires an AttributeStore to its collaborators.
// Bag.For fills these in; direct callers may leave Keys and Entries nil to get
// a private in-memory backend.
type StoreOptions struct {
	Bag     string
	Keys    KeyRegistry
	Entries EntryStorage
	Codec   ValueCodec
	Clock   Clock
	Logger  Logger
	Metrics MetricsRecorder
}

func (o *StoreOptions) defaults() {
	if o.Keys == nil {
		o.Keys = memstore.NewKeys()
	}
	if o.Entries == nil {
		o.Entries = memstore.New()
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Noop{}
	}
}

// AttributeStore is the attribute bag of a single owner.
//
// Nothing is fetched until the first access, and then everything the owner
// has is fetched in one request. Mutations stay in memory until Flush.
// An AttributeStore is not safe for concurrent use.
type AttributeStore struct {
	owner   Owner
	opts    StoreOptions
	entries map[string]*entry
	order   []string
	loaded  bool
	dirty   bool
}

// NewAttributeStore returns an unloaded store for owner.
func NewAttributeStore(owner Owner, opts StoreOptions) *AttributeStore {
	if owner == nil {
		owner = &Record{}
	}
	opts.defaults()
	return &AttributeStore{owner: owner, opts: opts}
}

// Loaded reports whether the owner's entries have been fetched.
func (s *AttributeStore) Loaded() bool { return s.loaded }

// Dirty reports whether there are changes Flush has not written yet.
func (s *AttributeStore) Dirty() bool { return s.dirty }

// Get returns the value stored under key, or nil if there is none.
func (s *AttributeStore) Get(ctx context.Context, key any) (any, error) {
	name, err := keyName(key)
	if err != nil {
		return nil, err
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	e, ok := s.entries[name]
	if !ok {
		return nil, nil
	}
	return e.get(s.opts.Codec)
}

// Set stores value under key. The key must already be registered. A nil
// value marks an existing entry for deletion on the next Flush.
func (s *AttributeStore) Set(ctx context.Context, key any, value any) error {
	name, err := keyName(key)
	if err != nil {
		return err
	}
	desc, err := s.opts.Keys.FindByName(ctx, name)
	if err != nil {
		if isKeyNotFound(err) {
			return &UnknownKeyError{Keys: []string{name}}
		}
		return fmt.Errorf("eav: find key %s: %w", name, err)
	}
	if err := s.load(ctx); err != nil {
		return err
	}
	return s.apply(desc, value)
}

// Merge sets every pair of source, which must be a map keyed by string or
// Symbol, or another *AttributeStore. Keys and values are all validated
// before anything is applied; any unregistered key fails the whole merge
// with an *UnknownKeyError.
func (s *AttributeStore) Merge(ctx context.Context, source any) error {
	pairs, err := s.mergePairs(ctx, source)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}

	byName, missing, err := resolveKeys(ctx, pairs, s.opts.Keys.ListAll)
	if err != nil {
		return err
	}
	if r, ok := s.opts.Keys.(relister); ok && len(missing) > 0 {
		// The cached listing may predate keys registered elsewhere.
		byName, missing, err = resolveKeys(ctx, pairs, r.relist)
		if err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return &UnknownKeyError{Keys: missing}
	}

	if err := s.load(ctx); err != nil {
		return err
	}
	for _, p := range pairs {
		if isNil(p.value) {
			if _, ok := s.entries[p.name]; !ok {
				return fmt.Errorf("%w: nil for new key %q", ErrInvalidValue, p.name)
			}
			continue
		}
		if err := checkValue(p.value); err != nil {
			return fmt.Errorf("key %q: %w", p.name, err)
		}
	}
	for _, p := range pairs {
		if err := s.apply(byName[p.name], p.value); err != nil {
			return err
		}
	}
	return nil
}

// resolveKeys matches pairs against the listing returned by list and reports the
// names it does not contain, sorted.
func resolveKeys(ctx context.Context, pairs []pair,
	list func(context.Context) ([]KeyDescriptor, error),
) (map[string]KeyDescriptor, []string, error) {
	registered, err := list(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("eav: list keys: %w", err)
	}
	byName := make(map[string]KeyDescriptor, len(registered))
	for _, k := range registered {
		byName[k.Name] = k
	}
	var missing []string
	for _, p := range pairs {
		if _, ok := byName[p.name]; !ok {
			missing = append(missing, p.name)
		}
	}
	sort.Strings(missing)
	return byName, missing, nil
}

type pair struct {
	name  string
	value any
}

func (s *AttributeStore) mergePairs(ctx context.Context, source any) ([]pair, error) {
	var pairs []pair
	switch src := source.(type) {
	case map[string]any:
		for k, v := range src {
			name, err := keyName(k)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair{name, v})
		}
	case map[Symbol]any:
		for k, v := range src {
			name, err := keyName(k)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair{name, v})
		}
	case map[any]any:
		for k, v := range src {
			name, err := keyName(k)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair{name, v})
		}
	case *AttributeStore:
		if src == nil {
			return nil, fmt.Errorf("%w: nil *AttributeStore", ErrUnsupportedShovelType)
		}
		if err := src.load(ctx); err != nil {
			return nil, err
		}
		for _, name := range src.order {
			e := src.entries[name]
			if e.cleared() {
				continue
			}
			v, err := e.get(src.opts.Codec)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair{name, v})
		}
		return pairs, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedShovelType, source)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })
	for i := 1; i < len(pairs); i++ {
		if pairs[i].name == pairs[i-1].name {
			return nil, fmt.Errorf("%w: %q given twice", ErrInvalidKey, pairs[i].name)
		}
	}
	return pairs, nil
}

// apply is the shared tail of Set and Merge; the store is already loaded.
func (s *AttributeStore) apply(desc KeyDescriptor, value any) error {
	if e, ok := s.entries[desc.Name]; ok {
		if err := e.assign(value); err != nil {
			return err
		}
	} else {
		e, err := newEntry(desc, value)
		if err != nil {
			return err
		}
		if id, ok := s.owner.OwnerID(); ok {
			e.row.OwnerID = id
		}
		s.entries[desc.Name] = e
		s.order = append(s.order, desc.Name)
	}
	s.dirty = true
	s.owner.TouchModified(s.opts.Clock.Now())
	return nil
}

// Keys returns the names of entries holding a value, in load order.
func (s *AttributeStore) Keys(ctx context.Context) ([]string, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.order))
	for _, name := range s.order {
		if !s.entries[name].cleared() {
			out = append(out, name)
		}
	}
	return out, nil
}

// Values returns the decoded values in the same order as Keys.
func (s *AttributeStore) Values(ctx context.Context) ([]any, error) {
	pairs, err := s.live(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = p.value
	}
	return out, nil
}

// AsMap returns a copy of the bag as a plain map.
func (s *AttributeStore) AsMap(ctx context.Context) (map[string]any, error) {
	pairs, err := s.live(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		out[p.name] = p.value
	}
	return out, nil
}

// All returns an iterator over key/value pairs in load order. Values are
// decoded before All returns, so iteration itself cannot fail.
func (s *AttributeStore) All(ctx context.Context) (iter.Seq2[string, any], error) {
	pairs, err := s.live(ctx)
	if err != nil {
		return nil, err
	}
	return func(yield func(string, any) bool) {
		for _, p := range pairs {
			if !yield(p.name, p.value) {
				return
			}
		}
	}, nil
}

// Len returns the number of entries holding a value.
func (s *AttributeStore) Len(ctx context.Context) (int, error) {
	keys, err := s.Keys(ctx)
	return len(keys), err
}

func (s *AttributeStore) live(ctx context.Context) ([]pair, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make([]pair, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		if e.cleared() {
			continue
		}
		v, err := e.get(s.opts.Codec)
		if err != nil {
			return nil, err
		}
		out = append(out, pair{name, v})
	}
	return out, nil
}

// Clear marks every entry for deletion. Nothing is written until Flush.
func (s *AttributeStore) Clear(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	for _, e := range s.entries {
		e.clear()
		s.dirty = true
	}
	return nil
}

// Flush writes pending changes: cleared entries are deleted and every other
// entry is upserted under the owner's current id. It does nothing when the
// store was never loaded or has no changes. Everything is encoded before the
// first write, and storage implementing Batcher receives all writes in one
// batch. On failure the store stays dirty.
func (s *AttributeStore) Flush(ctx context.Context) error {
	if !s.loaded || !s.dirty {
		return nil
	}
	start := s.opts.Clock.Now()
	ownerID, persisted := s.owner.OwnerID()

	type upsert struct {
		name string
		row  Row
	}
	var (
		upserts []upsert
		deletes []Row
	)
	for _, name := range s.order {
		e := s.entries[name]
		if e.cleared() {
			if persisted {
				r := e.row
				r.OwnerID = ownerID
				deletes = append(deletes, r)
			}
			continue
		}
		if !persisted {
			return ErrOwnerNotPersisted
		}
		r, err := e.encoded(s.opts.Codec, ownerID)
		if err != nil {
			return fmt.Errorf("eav: flush %s: %w", s.opts.Bag, err)
		}
		upserts = append(upserts, upsert{name, r})
	}

	write := func(w EntryWriter) error {
		for _, r := range deletes {
			if err := w.Delete(ctx, r); err != nil {
				return fmt.Errorf("delete %s: %w", r.KeyName, err)
			}
		}
		for i := range upserts {
			if err := w.Upsert(ctx, &upserts[i].row); err != nil {
				return fmt.Errorf("upsert %s: %w", upserts[i].name, err)
			}
		}
		return nil
	}
	var err error
	if b, ok := s.opts.Entries.(Batcher); ok {
		err = b.Batch(ctx, write)
	} else {
		err = write(s.opts.Entries)
	}
	if err != nil {
		s.opts.Metrics.RecordError(s.opts.Bag, "flush")
		s.opts.Logger.Error("eav: flush failed", "bag", s.opts.Bag, "owner", ownerID, "error", err)
		return fmt.Errorf("eav: flush %s: %w", s.opts.Bag, err)
	}

	for _, u := range upserts {
		s.entries[u.name].row = u.row
	}
	kept := s.order[:0]
	for _, name := range s.order {
		if s.entries[name].cleared() {
			delete(s.entries, name)
			continue
		}
		kept = append(kept, name)
	}
	s.order = kept
	s.dirty = false

	s.opts.Metrics.RecordFlush(s.opts.Bag, len(upserts), len(deletes))
	s.opts.Metrics.RecordLatency(s.opts.Bag, "flush", clock.Since(s.opts.Clock, start))
	s.opts.Logger.Debug("eav: flushed", "bag", s.opts.Bag, "owner", ownerID,
		"upserts", len(upserts), "deletes", len(deletes))
	return nil
}

// load fetches the owner's rows on first use. An owner without an id has no
// rows, so nothing is fetched. A failed load leaves the store unloaded.
func (s *AttributeStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	ownerID, persisted := s.owner.OwnerID()
	if !persisted {
		s.entries = make(map[string]*entry)
		s.loaded = true
		return nil
	}
	start := s.opts.Clock.Now()
	rows, err := s.opts.Entries.FetchAllForOwner(ctx, ownerID)
	if err != nil {
		s.opts.Metrics.RecordError(s.opts.Bag, "load")
		s.opts.Logger.Error("eav: load failed", "bag", s.opts.Bag, "owner", ownerID, "error", err)
		return fmt.Errorf("eav: load %s owner %d: %w", s.opts.Bag, ownerID, err)
	}
	entries := make(map[string]*entry, len(rows))
	order := make([]string, 0, len(rows))
	for _, r := range rows {
		e, err := entryFromRow(r)
		if err != nil {
			return fmt.Errorf("eav: load %s owner %d: %w", s.opts.Bag, ownerID, err)
		}
		if _, dup := entries[r.KeyName]; !dup {
			order = append(order, r.KeyName)
		}
		entries[r.KeyName] = e
	}
	s.entries, s.order = entries, order
	s.loaded = true

	s.opts.Metrics.RecordLoad(s.opts.Bag, len(rows))
	s.opts.Metrics.RecordLatency(s.opts.Bag, "load", clock.Since(s.opts.Clock, start))
	s.opts.Logger.Debug("eav: loaded", "bag", s.opts.Bag, "owner", ownerID, "rows", len(rows))
	return nil
}

// String renders the loaded entries for debugging. It never loads.
func (s *AttributeStore) String() string {
	var b strings.Builder
	b.WriteString(s.opts.Bag)
	b.WriteByte('{')
	if !s.loaded {
		b.WriteString("<not loaded>}")
		return b.String()
	}
	first := true
	for _, name := range s.order {
		e := s.entries[name]
		if e.cleared() {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		v, err := e.get(s.opts.Codec)
		if err != nil {
			v = e.row.Value
		}
		fmt.Fprintf(&b, "%s: %v", name, v)
	}
	b.WriteByte('}')
	return b.String()
}

var _ fmt.Stringer = (*AttributeStore)(nil)
