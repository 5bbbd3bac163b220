// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// registry.go — storage contracts an AttributeStore depends on, and the
// key-descriptor cache placed in front of a KeyRegistry.

package eav

import (
	"context"
	"errors"

	"github.com/AndrewDonelson/eav/internal/keycache"
	"github.com/AndrewDonelson/eav/internal/metrics"
	"github.com/AndrewDonelson/eav/internal/record"
)

const keysTier = "keys"

// ErrKeyNotFound is what a KeyRegistry returns from FindByName for an
// unregistered name.
var ErrKeyNotFound = record.ErrKeyNotFound

// KeyRegistry resolves attribute key names to descriptors.
type KeyRegistry interface {
	FindByName(ctx context.Context, name string) (KeyDescriptor, error)
	ListAll(ctx context.Context) ([]KeyDescriptor, error)
}

// KeyRegistrar is a KeyRegistry that can also register new keys.
type KeyRegistrar interface {
	KeyRegistry
	Register(ctx context.Context, name string, symbolic bool) (KeyDescriptor, error)
}

// EntryStorage loads and persists an owner's entry rows.
type EntryStorage interface {
	FetchAllForOwner(ctx context.Context, ownerID int64) ([]Row, error)
	EntryWriter
}

// Batcher is implemented by storage that can apply a flush atomically.
// If fn returns an error none of its writes may persist.
type Batcher interface {
	Batch(ctx context.Context, fn func(EntryWriter) error) error
}

// relister is a registry whose ListAll may be stale and can be forced to
// read through.
type relister interface {
	relist(ctx context.Context) ([]KeyDescriptor, error)
}

// cachedRegistry serves FindByName and ListAll from a keycache.Cache.
type cachedRegistry struct {
	next    KeyRegistry
	cache   *keycache.Cache
	bag     string
	metrics metrics.Recorder
}

func newCachedRegistry(next KeyRegistry, cache *keycache.Cache, bag string, m metrics.Recorder) *cachedRegistry {
	if m == nil {
		m = metrics.Noop{}
	}
	return &cachedRegistry{next: next, cache: cache, bag: bag, metrics: m}
}

func (r *cachedRegistry) FindByName(ctx context.Context, name string) (KeyDescriptor, error) {
	if k, ok := r.cache.Get(name); ok {
		r.metrics.RecordHit(keysTier, r.bag)
		return k, nil
	}
	r.metrics.RecordMiss(keysTier, r.bag)
	k, err := r.next.FindByName(ctx, name)
	if err != nil {
		return KeyDescriptor{}, err
	}
	r.cache.Put(k)
	return k, nil
}

func (r *cachedRegistry) ListAll(ctx context.Context) ([]KeyDescriptor, error) {
	if keys, ok := r.cache.All(); ok {
		r.metrics.RecordHit(keysTier, r.bag)
		return keys, nil
	}
	r.metrics.RecordMiss(keysTier, r.bag)
	return r.fill(ctx)
}

// relist drops everything cached and lists the registry again.
func (r *cachedRegistry) relist(ctx context.Context) ([]KeyDescriptor, error) {
	r.cache.Flush()
	return r.fill(ctx)
}

func (r *cachedRegistry) fill(ctx context.Context) ([]KeyDescriptor, error) {
	keys, err := r.next.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.PutAll(keys)
	return keys, nil
}

// Register delegates to the wrapped registry and refreshes the cache.
func (r *cachedRegistry) Register(ctx context.Context, name string, symbolic bool) (KeyDescriptor, error) {
	reg, ok := r.next.(KeyRegistrar)
	if !ok {
		return KeyDescriptor{}, ErrNoRegistrar
	}
	k, err := reg.Register(ctx, name, symbolic)
	if err != nil {
		return KeyDescriptor{}, err
	}
	r.cache.Invalidate(name)
	r.cache.Put(k)
	return k, nil
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
