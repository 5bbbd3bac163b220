// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// rediscache.go — Redis read-through cache in front of an entry backend: an
// owner's full row set is cached under one key, and every write through this
// store (single or batched) evicts the affected owners after the backend
// accepts it. Redis read errors fall through to the backend.

// Package rediscache caches owner entry rows in Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/AndrewDonelson/eav/internal/codec"
	"github.com/AndrewDonelson/eav/internal/metrics"
	"github.com/AndrewDonelson/eav/internal/record"
	"github.com/redis/go-redis/v9"
)

// Backend is the authoritative entry storage behind the cache.
type Backend interface {
	FetchAllForOwner(ctx context.Context, ownerID int64) ([]record.Row, error)
	record.Writer
}

type batcher interface {
	Batch(ctx context.Context, fn func(record.Writer) error) error
}

// Options configures a Store.
type Options struct {
	Client    redis.UniversalClient
	Codec     codec.Codec
	KeyPrefix string
	Bag       string
	TTL       time.Duration
	// Metrics receives a hit or miss under tier "redis" for every fetch.
	Metrics metrics.Recorder
}

const tier = "redis"

// Store is a Backend decorator backed by Redis.
type Store struct {
	next    Backend
	client  redis.UniversalClient
	codec   codec.Codec
	base    string
	bag     string
	ttl     time.Duration
	metrics metrics.Recorder
	hits    atomic.Int64
	misses  atomic.Int64
	errs    atomic.Int64
}

// New wraps next with a Redis cache.
func New(next Backend, opts Options) *Store {
	if opts.Codec == nil {
		opts.Codec = codec.MsgPack{}
	}
	base := "eav:" + opts.Bag + ":owner:"
	if opts.KeyPrefix != "" {
		base = opts.KeyPrefix + ":" + base
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	return &Store{
		next:    next,
		client:  opts.Client,
		codec:   opts.Codec,
		base:    base,
		bag:     opts.Bag,
		ttl:     opts.TTL,
		metrics: opts.Metrics,
	}
}

// Key returns the Redis key holding ownerID's rows.
func (s *Store) Key(ownerID int64) string {
	return s.base + strconv.FormatInt(ownerID, 10)
}

// FetchAllForOwner serves the owner's rows from Redis, filling it on a miss.
func (s *Store) FetchAllForOwner(ctx context.Context, ownerID int64) ([]record.Row, error) {
	k := s.Key(ownerID)
	b, err := s.client.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var rows []record.Row
		if uerr := s.codec.Unmarshal(b, &rows); uerr == nil {
			s.hits.Add(1)
			s.metrics.RecordHit(tier, s.bag)
			return rows, nil
		}
		s.errs.Add(1)
	case errors.Is(err, redis.Nil):
		s.misses.Add(1)
	default:
		s.errs.Add(1)
	}
	s.metrics.RecordMiss(tier, s.bag)

	rows, err := s.next.FetchAllForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if b, merr := s.codec.Marshal(rows); merr == nil {
		if serr := s.client.Set(ctx, k, b, s.ttl).Err(); serr != nil {
			s.errs.Add(1)
		}
	}
	return rows, nil
}

// Upsert writes through to the backend and evicts the owner's cached rows.
func (s *Store) Upsert(ctx context.Context, row *record.Row) error {
	if err := s.next.Upsert(ctx, row); err != nil {
		return err
	}
	return s.evict(ctx, row.OwnerID)
}

// Delete writes through to the backend and evicts the owner's cached rows.
func (s *Store) Delete(ctx context.Context, row record.Row) error {
	if err := s.next.Delete(ctx, row); err != nil {
		return err
	}
	return s.evict(ctx, row.OwnerID)
}

// Batch delegates to the backend's batch when it has one and evicts every
// touched owner once the batch has been applied.
func (s *Store) Batch(ctx context.Context, fn func(record.Writer) error) error {
	b, ok := s.next.(batcher)
	if !ok {
		return fn(s)
	}
	touched := make(map[int64]struct{})
	err := b.Batch(ctx, func(w record.Writer) error {
		return fn(&trackingWriter{w: w, touched: touched})
	})
	if err != nil {
		return err
	}
	for id := range touched {
		if err := s.evict(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) evict(ctx context.Context, ownerID int64) error {
	k := s.Key(ownerID)
	if err := s.client.Del(ctx, k).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("rediscache evict %s: %w", k, err)
	}
	return nil
}

// Stats holds cache counters.
type Stats struct {
	Hits   int64
	Misses int64
	Errors int64
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Errors: s.errs.Load()}
}

type trackingWriter struct {
	w       record.Writer
	touched map[int64]struct{}
}

func (t *trackingWriter) Upsert(ctx context.Context, row *record.Row) error {
	t.touched[row.OwnerID] = struct{}{}
	return t.w.Upsert(ctx, row)
}

func (t *trackingWriter) Delete(ctx context.Context, row record.Row) error {
	t.touched[row.OwnerID] = struct{}{}
	return t.w.Delete(ctx, row)
}
