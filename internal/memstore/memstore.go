// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// memstore.go — process-local entry storage and key registry. Used when no
// Postgres DSN or bbolt path is configured, and by tests that need to count
// storage round trips.

// Package memstore implements entry storage and a key registry in memory.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/AndrewDonelson/eav/internal/record"
)

// Stats counts storage calls.
type Stats struct {
	Fetches int
	Upserts int
	Deletes int
	Batches int
}

// Store holds entry rows in insertion order.
type Store struct {
	mu       sync.Mutex
	rows     []record.Row
	nextID   int64
	stats    Stats
	failNext error
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// FetchAllForOwner returns copies of the owner's rows in insertion order.
func (s *Store) FetchAllForOwner(_ context.Context, ownerID int64) ([]record.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Fetches++
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []record.Row
	for _, r := range s.rows {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Upsert inserts row or replaces the row with the same (OwnerID, KeyID).
func (s *Store) Upsert(_ context.Context, row *record.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Upserts++
	if err := s.takeFailure(); err != nil {
		return err
	}
	if i := s.index(row.OwnerID, row.KeyID); i >= 0 {
		row.ID = s.rows[i].ID
		s.rows[i] = *row
		return nil
	}
	s.nextID++
	row.ID = s.nextID
	s.rows = append(s.rows, *row)
	return nil
}

// Delete removes the row with the same (OwnerID, KeyID), if any.
func (s *Store) Delete(_ context.Context, row record.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Deletes++
	if err := s.takeFailure(); err != nil {
		return err
	}
	if i := s.index(row.OwnerID, row.KeyID); i >= 0 {
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
	}
	return nil
}

// Batch runs fn and restores the previous rows if it fails.
func (s *Store) Batch(ctx context.Context, fn func(record.Writer) error) error {
	s.mu.Lock()
	s.stats.Batches++
	snapshot := append([]record.Row(nil), s.rows...)
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.rows = snapshot
		s.nextID = nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailNext makes the next storage call return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Stats returns call counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) index(ownerID, keyID int64) int {
	for i, r := range s.rows {
		if r.OwnerID == ownerID && r.KeyID == keyID {
			return i
		}
	}
	return -1
}

func (s *Store) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// Keys is an in-memory key registry.
type Keys struct {
	mu     sync.RWMutex
	byName map[string]record.Key
	nextID int64
	finds  int
	lists  int
}

// NewKeys returns an empty registry.
func NewKeys() *Keys {
	return &Keys{byName: make(map[string]record.Key)}
}

// Register adds name, returning the existing descriptor if already present.
func (k *Keys) Register(_ context.Context, name string, symbolic bool) (record.Key, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if d, ok := k.byName[name]; ok {
		return d, nil
	}
	k.nextID++
	d := record.Key{ID: k.nextID, Name: name, Symbolic: symbolic}
	k.byName[name] = d
	return d, nil
}

// FindByName returns the descriptor for name or record.ErrKeyNotFound.
func (k *Keys) FindByName(_ context.Context, name string) (record.Key, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.finds++
	d, ok := k.byName[name]
	if !ok {
		return record.Key{}, record.ErrKeyNotFound
	}
	return d, nil
}

// ListAll returns every descriptor ordered by id.
func (k *Keys) ListAll(_ context.Context) ([]record.Key, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lists++
	out := make([]record.Key, 0, len(k.byName))
	for _, d := range k.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Calls returns how many FindByName and ListAll calls were served.
func (k *Keys) Calls() (finds, lists int) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.finds, k.lists
}
