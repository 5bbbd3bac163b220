package eav_test

// integration_pg_test.go covers the Postgres backend end to end:
//
//   1. Migrate creates key and entry tables once and records the step
//   2. the new-owner scenario with Postgres storage and a Redis row cache
//   3. a failed flush rolls back the whole batch

import (
	"context"
	"testing"

	"github.com/AndrewDonelson/eav"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// ─── Fixtures ────────────────────────────────────────────────────────────────

const (
	pgTestImage = "postgres:16-alpine"
	pgTestDB    = "eavintegration"
	pgTestUser  = "eavtest"
	pgTestPass  = "eavtest"
)

// newPGDB starts Postgres and miniredis and returns a migrated DB with the
// tech_specs bag defined. Skips if Docker is unavailable.
func newPGDB(t *testing.T) (*eav.DB, *eav.Bag) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pgc, err := tcpg.Run(ctx, pgTestImage,
		tcpg.WithDatabase(pgTestDB),
		tcpg.WithUsername(pgTestUser),
		tcpg.WithPassword(pgTestPass),
		tcpg.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = pgc.Terminate(ctx) })

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	db, err := eav.Open(ctx, eav.Config{PostgresDSN: dsn, RedisAddr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bag, err := db.Define(eav.BagSchema{Name: "tech_specs", Owner: "product"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx), "Migrate must succeed")
	require.NoError(t, db.Ping(ctx))
	return db, bag
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestPG_MigrateIdempotent(t *testing.T) {
	ctx := context.Background()
	db, _ := newPGDB(t)

	require.NoError(t, db.Migrate(ctx))
	recs, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "tech_specs", recs[0].Bag)
	assert.Equal(t, "create_tables", recs[0].Step)
	assert.False(t, recs[0].AppliedAt.IsZero())
}

func TestPG_EndToEnd(t *testing.T) {
	ctx := context.Background()
	_, bag := newPGDB(t)
	for _, k := range []string{"color", "weight", "dims"} {
		_, err := bag.RegisterKey(ctx, k, true)
		require.NoError(t, err)
	}

	owner := &eav.Record{}
	s := bag.For(owner)
	require.NoError(t, s.Set(ctx, "color", "red"))
	require.NoError(t, s.Set(ctx, "weight", 12))
	require.NoError(t, s.Set(ctx, "dims", map[string]any{"w": 10, "h": 20}))
	owner.ID = 1
	require.NoError(t, s.Flush(ctx))

	fresh := bag.For(&eav.Record{ID: 1})
	m, err := fresh.AsMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"color":  "red",
		"weight": 12,
		"dims":   map[string]any{"w": 10, "h": 20},
	}, m)

	require.NoError(t, fresh.Set(ctx, "weight", nil))
	require.NoError(t, fresh.Flush(ctx))
	keys, err := bag.For(&eav.Record{ID: 1}).Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"color", "dims"}, keys)
	assert.Positive(t, bag.Stats().RowCacheMisses)
}

func TestPG_FlushRollsBack(t *testing.T) {
	ctx := context.Background()
	_, bag := newPGDB(t)
	_, err := bag.RegisterKey(ctx, "color", true)
	require.NoError(t, err)

	s := bag.For(&eav.Record{ID: 2})
	require.NoError(t, s.Set(ctx, "color", "red"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, s.Flush(cancelled))
	assert.True(t, s.Dirty())

	v, err := bag.For(&eav.Record{ID: 2}).Get(ctx, "color")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Flush(ctx))
}
