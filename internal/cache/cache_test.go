package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atlas-cli/internal/model"
)

// stubTier wraps a MemoryTier with switchable failures so tests can
// exercise persisted-tier degradation.
type stubTier struct {
	*MemoryTier
	failReads  bool
	failWrites bool
	reads      atomic.Int32
}

func newStubTier() *stubTier {
	return &stubTier{MemoryTier: NewMemoryTier()}
}

func (s *stubTier) Name() string { return "stub" }

func (s *stubTier) Get(ctx context.Context, key string) ([]byte, error) {
	s.reads.Add(1)
	if s.failReads {
		return nil, errors.New("tier down")
	}
	return s.MemoryTier.Get(ctx, key)
}

func (s *stubTier) Set(ctx context.Context, key string, blob []byte) error {
	if s.failWrites {
		return errors.New("tier down")
	}
	return s.MemoryTier.Set(ctx, key, blob)
}

func testClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func testEntry() *model.CacheEntry {
	return &model.CacheEntry{
		Lat:            39.7817,
		Lng:            -89.6501,
		Confidence:     0.7,
		Provider:       "nominatim",
		SourceChain:    []string{"nominatim/q1/biased"},
		ProvenanceURLs: []string{"https://www.openstreetmap.org/way/123"},
	}
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := testClock()
	store := NewStore(WithClock(clk))

	store.Set(ctx, "acme|springfield", testEntry())

	got, ok := store.Get(ctx, "acme|springfield")
	require.True(t, ok)
	assert.InDelta(t, 39.7817, got.Lat, 1e-9)
	assert.InDelta(t, -89.6501, got.Lng, 1e-9)
	assert.Equal(t, "nominatim", got.Provider)
	assert.Equal(t, clk.Now().UTC(), got.CachedAt)
	assert.Equal(t, clk.Now().UTC(), got.LastVerified)
	assert.Equal(t, DefaultTTL.Milliseconds(), got.TTLMs)
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	store := NewStore()

	_, ok := store.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestStore_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	clk := testClock()
	store := NewStore(WithClock(clk), WithTTL(time.Hour))

	store.Set(ctx, "acme", testEntry())

	clk.Advance(59*time.Minute + 59*time.Second)
	_, ok := store.Get(ctx, "acme")
	assert.True(t, ok, "entry one second before the TTL boundary is still valid")

	clk.Advance(time.Second)
	_, ok = store.Get(ctx, "acme")
	assert.False(t, ok, "entry exactly at the TTL boundary is expired")
}

func TestStore_ExpiredEntryDroppedFromBothTiers(t *testing.T) {
	ctx := context.Background()
	clk := testClock()
	persisted := newStubTier()
	store := NewStore(WithClock(clk), WithTTL(time.Hour), WithPersistedTier(persisted))

	store.Set(ctx, "acme", testEntry())
	clk.Advance(2 * time.Hour)

	_, ok := store.Get(ctx, "acme")
	require.False(t, ok)

	n, err := persisted.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "lazy deletion should remove the expired entry from the persisted tier")
}

func TestStore_PersistedHitPromotedToFastTier(t *testing.T) {
	ctx := context.Background()
	clk := testClock()
	persisted := newStubTier()
	store := NewStore(WithClock(clk), WithPersistedTier(persisted))

	entry := testEntry()
	entry.CachedAt = clk.Now().UTC()
	entry.TTLMs = time.Hour.Milliseconds()
	blob, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, persisted.MemoryTier.Set(ctx, "acme", blob))

	_, ok := store.Get(ctx, "acme")
	require.True(t, ok)
	require.Equal(t, int32(1), persisted.reads.Load())

	persisted.failReads = true
	_, ok = store.Get(ctx, "acme")
	assert.True(t, ok, "promoted entry should be served from the fast tier")
	assert.Equal(t, int32(1), persisted.reads.Load(), "second lookup must not reach the persisted tier")
}

func TestStore_PersistedWriteFailureNonFatal(t *testing.T) {
	ctx := context.Background()
	persisted := newStubTier()
	persisted.failWrites = true
	store := NewStore(WithPersistedTier(persisted))

	store.Set(ctx, "acme", testEntry())

	_, ok := store.Get(ctx, "acme")
	assert.True(t, ok, "fast tier keeps serving when the persisted tier is down")
}

func TestStore_PersistedReadFailureDegradesToMiss(t *testing.T) {
	persisted := newStubTier()
	persisted.failReads = true
	store := NewStore(WithPersistedTier(persisted))

	_, ok := store.Get(context.Background(), "acme")
	assert.False(t, ok)
}

func TestStore_CorruptPersistedEntryDropped(t *testing.T) {
	ctx := context.Background()
	persisted := newStubTier()
	store := NewStore(WithPersistedTier(persisted))

	require.NoError(t, persisted.MemoryTier.Set(ctx, "acme", []byte("not json")))

	_, ok := store.Get(ctx, "acme")
	require.False(t, ok)

	n, err := persisted.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	persisted := newStubTier()
	store := NewStore(WithPersistedTier(persisted))

	store.Set(ctx, "a", testEntry())
	store.Set(ctx, "b", testEntry())

	require.NoError(t, store.Clear(ctx))

	_, ok := store.Get(ctx, "a")
	assert.False(t, ok)
	n, err := persisted.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_BatchAggregateRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := testClock()
	store := NewStore(WithClock(clk), WithTTL(time.Hour))

	lat, lng := 39.7817, -89.6501
	set := &model.BatchResultSet{
		RunID: "run-1",
		Results: []model.ResolvedSite{
			{
				SiteQuery:  model.SiteQuery{ID: "site-1", Name: "Acme"},
				Lat:        &lat,
				Lng:        &lng,
				Confidence: 0.7,
				Provider:   "nominatim",
			},
		},
		SiteCount: 1,
	}
	store.SetBatch(ctx, set)

	got, ok := store.GetBatch(ctx)
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 1, got.SiteCount)
	assert.Equal(t, clk.Now().UTC(), got.Timestamp)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "site-1", got.Results[0].ID)

	clk.Advance(2 * time.Hour)
	_, ok = store.GetBatch(ctx)
	assert.False(t, ok, "aggregate expires on the same TTL as entries")
}

func TestStore_BatchAggregateAbsent(t *testing.T) {
	store := NewStore()

	_, ok := store.GetBatch(context.Background())
	assert.False(t, ok)
}

func TestStore_Debug(t *testing.T) {
	ctx := context.Background()
	persisted := newStubTier()
	store := NewStore(WithPersistedTier(persisted))

	store.Set(ctx, "acme|springfield", testEntry())
	store.Get(ctx, "acme|springfield")
	store.Get(ctx, "missing")

	snap := store.Debug(ctx)
	require.Len(t, snap.Tiers, 2)
	assert.Equal(t, "fast", snap.Tiers[0].Name)
	assert.Equal(t, 1, snap.Tiers[0].Entries)
	assert.Equal(t, "stub", snap.Tiers[1].Name)
	assert.Equal(t, 1, snap.Tiers[1].Entries)
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.InDelta(t, 0.5, snap.HitRate, 1e-9)
}
