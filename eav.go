// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// eav.go — Config, DB construction, and backend selection (Postgres, bbolt,
// or memory, optionally fronted by a Redis row cache).

package eav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AndrewDonelson/eav/internal/boltstore"
	"github.com/AndrewDonelson/eav/internal/clock"
	"github.com/AndrewDonelson/eav/internal/codec"
	"github.com/AndrewDonelson/eav/internal/keycache"
	"github.com/AndrewDonelson/eav/internal/memstore"
	"github.com/AndrewDonelson/eav/internal/metrics"
	"github.com/AndrewDonelson/eav/internal/pg"
	"github.com/AndrewDonelson/eav/internal/rediscache"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ────────────────────────────────────────────────────────────────────────────
// Config
// ────────────────────────────────────────────────────────────────────────────

// PostgresPoolConfig configures the PostgreSQL connection pool.
type PostgresPoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisPoolConfig configures the Redis client.
type RedisPoolConfig struct {
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config contains all DB configuration. Entry storage is Postgres when
// PostgresDSN is set, else bbolt when BoltPath is set, else memory.
type Config struct {
	// Postgres
	PostgresDSN        string
	PostgresReplicaDSN string
	PostgresPool       PostgresPoolConfig

	// Redis row cache; disabled when RedisAddr is empty.
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	RedisPool      RedisPoolConfig
	RowCacheTTL    time.Duration

	// Embedded storage
	BoltPath    string
	BoltTimeout time.Duration

	// Key descriptor cache
	KeyCacheTTL        time.Duration
	KeyCacheMaxEntries int

	// Optional overrideable components
	ObjectCodec BlobCodec
	RedisCodec  BlobCodec
	Clock       clock.Clock
	Metrics     metrics.Recorder
	Logger      Logger
}

func (c *Config) defaults() {
	if c.ObjectCodec == nil {
		c.ObjectCodec = codec.Default
	}
	if c.RedisCodec == nil {
		c.RedisCodec = codec.MsgPack{}
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop{}
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	if c.RowCacheTTL == 0 {
		c.RowCacheTTL = 30 * time.Minute
	}
	if c.KeyCacheTTL == 0 {
		c.KeyCacheTTL = 5 * time.Minute
	}
	if c.KeyCacheMaxEntries == 0 {
		c.KeyCacheMaxEntries = 10_000
	}
	if c.PostgresPool.MaxConns == 0 {
		c.PostgresPool.MaxConns = 20
	}
	if c.PostgresPool.MinConns == 0 {
		c.PostgresPool.MinConns = 2
	}
	if c.PostgresPool.MaxConnLifetime == 0 {
		c.PostgresPool.MaxConnLifetime = 30 * time.Minute
	}
	if c.PostgresPool.MaxConnIdleTime == 0 {
		c.PostgresPool.MaxConnIdleTime = 10 * time.Minute
	}
}

// ────────────────────────────────────────────────────────────────────────────
// DB
// ────────────────────────────────────────────────────────────────────────────

// DB owns the storage connections and the set of defined bags.
type DB struct {
	cfg     Config
	logger  Logger
	metrics metrics.Recorder

	pg    *pg.Store
	bolt  *boltstore.DB
	redis redis.UniversalClient

	mu     sync.RWMutex
	bags   map[string]*Bag
	order  []string
	closed atomic.Bool
}

// Open connects the configured backends.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	cfg.defaults()
	db := &DB{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		bags:    make(map[string]*Bag),
	}

	switch {
	case cfg.PostgresDSN != "":
		pool, err := openPool(ctx, cfg.PostgresDSN, cfg.PostgresPool)
		if err != nil {
			return nil, err
		}
		var replica *pgxpool.Pool
		if cfg.PostgresReplicaDSN != "" {
			replica, err = openPool(ctx, cfg.PostgresReplicaDSN, cfg.PostgresPool)
			if err != nil {
				pool.Close()
				return nil, err
			}
		}
		db.pg = pg.New(pool, replica)
		db.logger.Info("eav: using postgres storage", "replica", replica != nil)
	case cfg.BoltPath != "":
		bdb, err := boltstore.Open(cfg.BoltPath, boltstore.Options{Timeout: cfg.BoltTimeout})
		if err != nil {
			return nil, fmt.Errorf("eav: bolt open: %w", err)
		}
		db.bolt = bdb
		db.logger.Info("eav: using bolt storage", "path", cfg.BoltPath)
	default:
		db.logger.Info("eav: using in-memory storage")
	}

	if cfg.RedisAddr != "" {
		db.redis = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     cfg.RedisPool.PoolSize,
			DialTimeout:  cfg.RedisPool.DialTimeout,
			ReadTimeout:  cfg.RedisPool.ReadTimeout,
			WriteTimeout: cfg.RedisPool.WriteTimeout,
		})
	}
	return db, nil
}

func openPool(ctx context.Context, dsn string, pc PostgresPoolConfig) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("eav: postgres config: %w", err)
	}
	pgCfg.MaxConns = pc.MaxConns
	pgCfg.MinConns = pc.MinConns
	pgCfg.MaxConnLifetime = pc.MaxConnLifetime
	pgCfg.MaxConnIdleTime = pc.MaxConnIdleTime
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("eav: postgres pool: %w", err)
	}
	return pool, nil
}

// Define compiles s and wires its storage. Table names must be unique
// across bags.
func (db *DB) Define(s BagSchema) (*Bag, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	s, err := s.compile()
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.bags[s.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrBagDuplicate, s.Name)
	}
	for _, other := range db.bags {
		if other.schema.EntryTable == s.EntryTable {
			return nil, fmt.Errorf("%w: table %s already used by %s", ErrBagDuplicate, s.EntryTable, other.schema.Name)
		}
	}

	keys, entries, err := db.backend(s)
	if err != nil {
		return nil, fmt.Errorf("eav: define %s: %w", s.Name, err)
	}

	b := &Bag{db: db, schema: s, entries: entries}
	if db.redis != nil {
		b.rows = rediscache.New(entries, rediscache.Options{
			Client:    db.redis,
			Codec:     db.cfg.RedisCodec,
			KeyPrefix: db.cfg.RedisKeyPrefix,
			Bag:       s.Name,
			TTL:       db.cfg.RowCacheTTL,
			Metrics:   db.metrics,
		})
		b.entries = b.rows
	}
	b.keyCache = keycache.New(keycache.Options{
		TTL:        db.cfg.KeyCacheTTL,
		MaxEntries: db.cfg.KeyCacheMaxEntries,
		Clock:      db.cfg.Clock,
	})
	b.keys = newCachedRegistry(keys, b.keyCache, s.Name, db.metrics)
	blob := s.ObjectCodec
	if blob == nil {
		blob = db.cfg.ObjectCodec
	}
	b.codec = ValueCodec{Blob: blob}

	db.bags[s.Name] = b
	db.order = append(db.order, s.Name)
	db.logger.Debug("eav: bag defined", "bag", s.Name, "entries", s.EntryTable, "keys", s.KeyTable)
	return b, nil
}

// backend returns the key registry and entry storage for s. Overrides on
// the schema win over the configured backend.
func (db *DB) backend(s BagSchema) (KeyRegistry, EntryStorage, error) {
	var (
		keys    KeyRegistry
		entries EntryStorage
	)
	switch {
	case db.pg != nil:
		keys, entries = db.pg.Keys(s.tables()), db.pg.Entries(s.tables())
	case db.bolt != nil:
		bb, err := db.bolt.Bag(s.EntryTable)
		if err != nil {
			return nil, nil, err
		}
		keys, entries = bb, bb
	default:
		keys, entries = memstore.NewKeys(), memstore.New()
	}
	if s.Keys != nil {
		keys = s.Keys
	}
	if s.Entries != nil {
		entries = s.Entries
	}
	return keys, entries, nil
}

// Bag returns the bag defined under name.
func (db *DB) Bag(name string) (*Bag, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	b, ok := db.bags[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBagNotFound, name)
	}
	return b, nil
}

// Bags returns every defined bag in definition order.
func (db *DB) Bags() []*Bag {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Bag, 0, len(db.order))
	for _, name := range db.order {
		out = append(out, db.bags[name])
	}
	return out
}

// Ping checks every configured network backend.
func (db *DB) Ping(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if db.pg != nil {
		if err := db.pg.Ping(ctx); err != nil {
			return fmt.Errorf("eav: postgres ping: %w", err)
		}
	}
	if db.redis != nil {
		if err := db.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("eav: redis ping: %w", err)
		}
	}
	return nil
}

// Close releases all connections. Calling Close twice returns ErrClosed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	var errs []error
	if db.redis != nil {
		if err := db.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if db.bolt != nil {
		if err := db.bolt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bolt close: %w", err))
		}
	}
	if db.pg != nil {
		db.pg.Close()
	}
	db.logger.Info("eav: closed")
	return errors.Join(errs...)
}
