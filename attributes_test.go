package eav_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/AndrewDonelson/eav"
	"github.com/AndrewDonelson/eav/internal/clock"
	"github.com/AndrewDonelson/eav/internal/codec"
	"github.com/AndrewDonelson/eav/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ─────────────────────────────────────────────────────────────────

type fixture struct {
	keys    *memstore.Keys
	entries *memstore.Store
	clock   *clock.Mock
}

func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	f := fixture{
		keys:    memstore.NewKeys(),
		entries: memstore.New(),
		clock:   clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	for _, n := range names {
		_, err := f.keys.Register(context.Background(), n, true)
		require.NoError(t, err)
	}
	return f
}

func (f fixture) store(owner eav.Owner) *eav.AttributeStore {
	return eav.NewAttributeStore(owner, eav.StoreOptions{
		Bag:     "tech_specs",
		Keys:    f.keys,
		Entries: f.entries,
		Clock:   f.clock,
	})
}

// seed flushes values for owner id and returns the owner.
func (f fixture) seed(t *testing.T, id int64, values map[string]any) *eav.Record {
	t.Helper()
	owner := &eav.Record{ID: id}
	s := f.store(owner)
	require.NoError(t, s.Merge(context.Background(), values))
	require.NoError(t, s.Flush(context.Background()))
	return owner
}

// ── Scenario ─────────────────────────────────────────────────────────────────

func TestAttributeStore_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "weight")

	owner := &eav.Record{}
	s := f.store(owner)
	require.NoError(t, s.Set(ctx, "color", "red"))
	require.NoError(t, s.Set(ctx, "weight", 12))
	assert.True(t, s.Dirty())
	assert.Zero(t, f.entries.Len(), "nothing written before flush")

	owner.ID = 42
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())
	assert.Equal(t, 2, f.entries.Len())

	fresh := f.store(&eav.Record{ID: 42})
	color, err := fresh.Get(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "red", color)

	weight, err := fresh.Get(ctx, "weight")
	require.NoError(t, err)
	assert.Equal(t, 12, weight, "integer comes back as int, not string")
}

// ── Lazy load ────────────────────────────────────────────────────────────────

func TestAttributeStore_LazyLoadOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "weight")
	owner := f.seed(t, 7, map[string]any{"color": "blue", "weight": 3})
	before := f.entries.Stats().Fetches

	s := f.store(owner)
	assert.False(t, s.Loaded())
	assert.Equal(t, before, f.entries.Stats().Fetches, "constructing does not load")

	_, err := s.Get(ctx, "color")
	require.NoError(t, err)
	_, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "weight", 4))
	_, err = s.Keys(ctx)
	require.NoError(t, err)
	_, err = s.AsMap(ctx)
	require.NoError(t, err)

	assert.True(t, s.Loaded())
	assert.Equal(t, before+1, f.entries.Stats().Fetches)
}

func TestAttributeStore_GetIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	owner := f.seed(t, 7, map[string]any{"color": "blue"})
	s := f.store(owner)

	first, err := s.Get(ctx, "color")
	require.NoError(t, err)
	second, err := s.Get(ctx, eav.Symbol("color"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.False(t, s.Dirty(), "get never mutates")
}

func TestAttributeStore_UnpersistedOwnerSkipsFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	s := f.store(&eav.Record{})

	v, err := s.Get(ctx, "color")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, s.Loaded())
	assert.Zero(t, f.entries.Stats().Fetches)
}

func TestAttributeStore_LoadFailureStaysUnloaded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	owner := f.seed(t, 9, map[string]any{"color": "green"})
	s := f.store(owner)

	boom := errors.New("connection refused")
	f.entries.FailNext(boom)
	_, err := s.Get(ctx, "color")
	require.ErrorIs(t, err, boom)
	assert.False(t, s.Loaded())

	v, err := s.Get(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "green", v)
}

// ── Set ──────────────────────────────────────────────────────────────────────

func TestAttributeStore_SetInvalidKey(t *testing.T) {
	ctx := context.Background()
	s := newFixture(t, "color").store(&eav.Record{})

	for _, key := range []any{42, nil, "", "   ", eav.Symbol(""), []byte("color")} {
		assert.ErrorIs(t, s.Set(ctx, key, "x"), eav.ErrInvalidKey, "key %#v", key)
		_, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, eav.ErrInvalidKey, "key %#v", key)
	}
	assert.False(t, s.Dirty())
}

func TestAttributeStore_SetInvalidValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	s := f.store(&eav.Record{})

	assert.ErrorIs(t, s.Set(ctx, "color", nil), eav.ErrInvalidValue, "nil for a new key")
	assert.ErrorIs(t, s.Set(ctx, "color", ""), eav.ErrInvalidValue)
	assert.ErrorIs(t, s.Set(ctx, "color", eav.Symbol("")), eav.ErrInvalidValue)
	assert.False(t, s.Dirty())

	require.NoError(t, s.Set(ctx, "color", "red"))
	assert.ErrorIs(t, s.Set(ctx, "color", ""), eav.ErrInvalidValue, "replace with empty")
	v, err := s.Get(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "red", v)
}

func TestAttributeStore_SetUnknownKey(t *testing.T) {
	ctx := context.Background()
	s := newFixture(t, "color").store(&eav.Record{})

	err := s.Set(ctx, "nope", 1)
	require.ErrorIs(t, err, eav.ErrUnknownKey)
	var uk *eav.UnknownKeyError
	require.ErrorAs(t, err, &uk)
	assert.Equal(t, []string{"nope"}, uk.Keys)
	assert.False(t, s.Loaded(), "key is resolved before loading")
}

func TestAttributeStore_SetTouchesOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	owner := &eav.Record{ID: 1}
	s := f.store(owner)

	f.clock.Advance(time.Hour)
	require.NoError(t, s.Set(ctx, "color", "red"))
	assert.Equal(t, f.clock.Now(), owner.UpdatedAt)
}

type widget struct{ Name string }

func TestAttributeStore_SetRejectsTypedNil(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "k")
	s := f.store(&eav.Record{ID: 1})

	for _, v := range []any{
		(*widget)(nil),
		map[string]any(nil),
		[]int(nil),
		(*big.Int)(nil),
		(*big.Rat)(nil),
	} {
		assert.ErrorIs(t, s.Set(ctx, "k", v), eav.ErrInvalidValue, "%T", v)
	}
	assert.False(t, s.Dirty())
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Flush(ctx))
	assert.Zero(t, f.entries.Len())
}

func TestAttributeStore_TypedNilClearsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dims")
	owner := f.seed(t, 1, map[string]any{"dims": map[string]any{"w": 1}})

	s := f.store(owner)
	require.NoError(t, s.Set(ctx, "dims", map[string]any(nil)))
	assert.True(t, s.Dirty())
	require.NoError(t, s.Flush(ctx))

	keys, err := f.store(owner).Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Zero(t, f.entries.Len())
}

// ── Merge ────────────────────────────────────────────────────────────────────

func TestAttributeStore_MergeUnknownKeyIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a")
	owner := &eav.Record{ID: 3}
	s := f.store(owner)

	err := s.Merge(ctx, map[string]any{"a": 1, "unregistered": 2})
	require.ErrorIs(t, err, eav.ErrUnknownKey)
	var uk *eav.UnknownKeyError
	require.ErrorAs(t, err, &uk)
	assert.Equal(t, []string{"unregistered"}, uk.Keys)
	assert.Contains(t, err.Error(), "missing keys: [unregistered]")

	assert.False(t, s.Dirty())
	assert.True(t, owner.UpdatedAt.IsZero())
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v, "registered key was not applied either")
}

func TestAttributeStore_MergeMissingKeysSorted(t *testing.T) {
	ctx := context.Background()
	s := newFixture(t).store(&eav.Record{})

	var uk *eav.UnknownKeyError
	require.ErrorAs(t, s.Merge(ctx, map[string]any{"zeta": 1, "alpha": 2}), &uk)
	assert.Equal(t, []string{"alpha", "zeta"}, uk.Keys)
}

func TestAttributeStore_MergeMapKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "size", "shape")
	s := f.store(&eav.Record{})

	require.NoError(t, s.Merge(ctx, map[string]any{"color": "red"}))
	require.NoError(t, s.Merge(ctx, map[eav.Symbol]any{"size": eav.Symbol("xl")}))
	require.NoError(t, s.Merge(ctx, map[any]any{"shape": "round"}))

	m, err := s.AsMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "red", "size": eav.Symbol("xl"), "shape": "round"}, m)
}

func TestAttributeStore_MergeRejectsBadSources(t *testing.T) {
	ctx := context.Background()
	s := newFixture(t, "color").store(&eav.Record{})

	assert.ErrorIs(t, s.Merge(ctx, []string{"color"}), eav.ErrUnsupportedShovelType)
	assert.ErrorIs(t, s.Merge(ctx, "color=red"), eav.ErrUnsupportedShovelType)
	assert.ErrorIs(t, s.Merge(ctx, (*eav.AttributeStore)(nil)), eav.ErrUnsupportedShovelType)
	assert.ErrorIs(t, s.Merge(ctx, map[any]any{1: "red"}), eav.ErrInvalidKey)
	assert.ErrorIs(t, s.Merge(ctx, map[any]any{"color": "red", eav.Symbol("color"): "blue"}), eav.ErrInvalidKey,
		"the same name twice has no defined winner")
	assert.False(t, s.Dirty())
}

func TestAttributeStore_MergeInvalidValueIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newFixture(t, "a", "b").store(&eav.Record{})

	err := s.Merge(ctx, map[string]any{"a": 1, "b": nil})
	require.ErrorIs(t, err, eav.ErrInvalidValue)
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, s.Dirty())

	assert.ErrorIs(t, s.Merge(ctx, map[string]any{"a": 1, "b": ""}), eav.ErrInvalidValue)
	assert.ErrorIs(t, s.Merge(ctx, map[string]any{"a": 1, "b": (*widget)(nil)}), eav.ErrInvalidValue)
	assert.False(t, s.Dirty())
}

func TestAttributeStore_MergeFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "weight")
	src := f.store(f.seed(t, 1, map[string]any{"color": "red", "weight": 12}))
	dst := f.store(&eav.Record{ID: 2})

	require.NoError(t, dst.Merge(ctx, src))
	require.NoError(t, dst.Flush(ctx))

	got, err := f.store(&eav.Record{ID: 2}).AsMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "red", "weight": 12}, got)
}

func TestAttributeStore_MergeEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.store(&eav.Record{})
	require.NoError(t, s.Merge(ctx, map[string]any{}))
	assert.False(t, s.Loaded())
	_, lists := f.keys.Calls()
	assert.Zero(t, lists)
}

func TestAttributeStore_MergeValidatesInOneListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b", "c")
	s := f.store(&eav.Record{})

	require.NoError(t, s.Merge(ctx, map[string]any{"a": 1, "b": 2, "c": 3}))
	finds, lists := f.keys.Calls()
	assert.Zero(t, finds)
	assert.Equal(t, 1, lists)
}

// ── Deletion ─────────────────────────────────────────────────────────────────

func TestAttributeStore_DeleteOnNil(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "weight")
	s := f.store(&eav.Record{ID: 5})

	require.NoError(t, s.Set(ctx, "weight", 12))
	require.NoError(t, s.Set(ctx, "color", "red"))
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 2, f.entries.Len())

	upserts := f.entries.Stats().Upserts
	require.NoError(t, s.Set(ctx, "weight", nil))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"color"}, keys)

	require.NoError(t, s.Flush(ctx))
	st := f.entries.Stats()
	assert.Equal(t, 1, st.Deletes)
	assert.Equal(t, upserts+1, st.Upserts, "only the live entry is upserted")
	assert.Equal(t, 1, f.entries.Len())

	v, err := f.store(&eav.Record{ID: 5}).Get(ctx, "weight")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAttributeStore_Clear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "weight")
	owner := f.seed(t, 8, map[string]any{"color": "red", "weight": 12})
	s := f.store(owner)

	require.NoError(t, s.Clear(ctx))
	assert.True(t, s.Dirty())
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, f.entries.Len(), "clear does not write")

	require.NoError(t, s.Flush(ctx))
	assert.Zero(t, f.entries.Len())
	assert.False(t, s.Dirty())
}

func TestAttributeStore_ClearEmptyStaysClean(t *testing.T) {
	s := newFixture(t).store(&eav.Record{ID: 1})
	require.NoError(t, s.Clear(context.Background()))
	assert.True(t, s.Loaded())
	assert.False(t, s.Dirty())
}

func TestAttributeStore_SetAfterClearRevives(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	s := f.store(f.seed(t, 4, map[string]any{"color": "red"}))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Set(ctx, "color", "blue"))
	require.NoError(t, s.Flush(ctx))

	v, err := f.store(&eav.Record{ID: 4}).Get(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "blue", v)
	assert.Equal(t, 1, f.entries.Len())
}

// ── Flush ────────────────────────────────────────────────────────────────────

func TestAttributeStore_FlushCleanIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	s := f.store(f.seed(t, 6, map[string]any{"color": "red"}))
	before := f.entries.Stats()

	require.NoError(t, s.Flush(ctx), "never loaded")
	_, err := s.Get(ctx, "color")
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx), "loaded, clean")

	after := f.entries.Stats()
	assert.Equal(t, before.Upserts, after.Upserts)
	assert.Equal(t, before.Deletes, after.Deletes)
	assert.Equal(t, before.Batches, after.Batches)
}

func TestAttributeStore_FlushRequiresOwnerID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	s := f.store(&eav.Record{})

	require.NoError(t, s.Set(ctx, "color", "red"))
	assert.ErrorIs(t, s.Flush(ctx), eav.ErrOwnerNotPersisted)
	assert.True(t, s.Dirty())
	assert.Zero(t, f.entries.Stats().Batches, "nothing written")
}

func TestAttributeStore_FlushFailurePropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "weight")
	s := f.store(f.seed(t, 11, map[string]any{"color": "red"}))

	require.NoError(t, s.Set(ctx, "color", nil))
	require.NoError(t, s.Set(ctx, "weight", 20))

	boom := errors.New("storage unavailable")
	f.entries.FailNext(boom)
	err := s.Flush(ctx)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "tech_specs")
	assert.True(t, s.Dirty())
	assert.Equal(t, 1, f.entries.Len(), "batch rolled back")

	require.NoError(t, s.Flush(ctx), "retry succeeds")
	got, err := f.store(&eav.Record{ID: 11}).AsMap(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"weight": 20}, got)
}

func TestAttributeStore_FlushUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color")
	s := f.store(&eav.Record{ID: 12})

	require.NoError(t, s.Set(ctx, "color", "red"))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Set(ctx, "color", "blue"))
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 1, f.entries.Len())
	v, err := f.store(&eav.Record{ID: 12}).Get(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "blue", v)
}

func TestAttributeStore_FlushEncodeFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "color", "events")
	s := eav.NewAttributeStore(&eav.Record{ID: 13}, eav.StoreOptions{
		Bag:     "tech_specs",
		Keys:    f.keys,
		Entries: f.entries,
		Codec:   eav.ValueCodec{Blob: codec.JSON{}},
	})

	require.NoError(t, s.Set(ctx, "color", "red"))
	require.NoError(t, s.Set(ctx, "events", make(chan int)))
	assert.ErrorIs(t, s.Flush(ctx), eav.ErrEncodeFailed)
	assert.Zero(t, f.entries.Len())
	assert.True(t, s.Dirty())
}

// ── Values ───────────────────────────────────────────────────────────────────

func TestAttributeStore_TypesSurviveStorage(t *testing.T) {
	ctx := context.Background()
	names := []string{"s", "sym", "i", "big", "f", "c", "r", "b", "obj"}
	f := newFixture(t, names...)
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	values := map[string]any{
		"s":   "text",
		"sym": eav.Symbol("sym"),
		"i":   -42,
		"big": huge,
		"f":   3.14,
		"c":   complex(1, -2),
		"r":   big.NewRat(3, 4),
		"b":   true,
		"obj": map[string]any{"a": 1, "list": []any{"x", "y"}},
	}
	f.seed(t, 20, values)

	s := f.store(&eav.Record{ID: 20})
	for _, name := range names {
		got, err := s.Get(ctx, name)
		require.NoError(t, err, name)
		switch want := values[name].(type) {
		case *big.Int:
			require.IsType(t, &big.Int{}, got, name)
			assert.Zero(t, want.Cmp(got.(*big.Int)), name)
		case *big.Rat:
			require.IsType(t, &big.Rat{}, got, name)
			assert.Zero(t, want.Cmp(got.(*big.Rat)), name)
		default:
			assert.Equal(t, want, got, name)
		}
	}
}

func TestAttributeStore_FalseIsStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "enabled")
	f.seed(t, 21, map[string]any{"enabled": false})

	v, err := f.store(&eav.Record{ID: 21}).Get(ctx, "enabled")
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestAttributeStore_IterationOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a", "b", "c")
	s := f.store(&eav.Record{ID: 30})

	require.NoError(t, s.Set(ctx, "c", 3))
	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Set(ctx, "b", 2))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, keys)
	values, err := s.Values(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{3, 1, 2}, values)

	require.NoError(t, s.Flush(ctx))
	reloaded := f.store(&eav.Record{ID: 30})
	seq, err := reloaded.All(ctx)
	require.NoError(t, err)
	var seen []string
	for k, v := range seq {
		seen = append(seen, k)
		assert.NotNil(t, v)
	}
	assert.Equal(t, []string{"c", "a", "b"}, seen)

	seq, err = reloaded.All(ctx)
	require.NoError(t, err)
	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count, "iteration stops early")
}

func TestAttributeStore_String(t *testing.T) {
	ctx := context.Background()
	s := newFixture(t, "color", "weight").store(&eav.Record{})
	assert.Equal(t, "tech_specs{<not loaded>}", s.String())

	require.NoError(t, s.Set(ctx, "color", "red"))
	require.NoError(t, s.Set(ctx, "weight", 12))
	assert.Equal(t, "tech_specs{color: red, weight: 12}", s.String())
}

func TestNewAttributeStore_Defaults(t *testing.T) {
	ctx := context.Background()
	s := eav.NewAttributeStore(nil, eav.StoreOptions{})

	err := s.Set(ctx, "anything", 1)
	assert.ErrorIs(t, err, eav.ErrUnknownKey, "default registry is empty")
	v, err := s.Get(ctx, "anything")
	require.NoError(t, err)
	assert.Nil(t, v)
}
