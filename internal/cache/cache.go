// Package cache implements the two-tier resolution cache: an in-process
// fast tier in front of an optional persisted tier, holding resolved
// coordinates with a time-to-live.
package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/metrics"
	"github.com/sells-group/atlas-cli/internal/model"
)

// DefaultTTL is how long a resolved coordinate stays valid unless
// overridden.
const DefaultTTL = 180 * 24 * time.Hour

const debugSampleSize = 5

// Store is the two-tier cache. Reads check the fast tier first and
// promote persisted hits; writes go to both tiers. Persisted-tier
// failures degrade to fast-tier-only behavior and are logged, never
// surfaced to callers.
type Store struct {
	fast    Tier
	persist Tier
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *metrics.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures the Store.
type Option func(*Store)

// WithPersistedTier attaches a persisted tier behind the fast tier.
func WithPersistedTier(t Tier) Option {
	return func(s *Store) {
		s.persist = t
	}
}

// WithTTL overrides the default time-to-live stamped on new entries.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock swaps the time source, letting tests freeze TTL decisions.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a Store with an in-process fast tier and the given
// options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		fast:  NewMemoryTier(),
		ttl:   DefaultTTL,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the default time-to-live stamped on new entries.
func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns the entry for a key, or absent. Expired entries are treated
// as absent and lazily deleted from both tiers.
func (s *Store) Get(ctx context.Context, key string) (*model.CacheEntry, bool) {
	blob, fromPersist := s.fetch(ctx, key)
	if blob == nil {
		s.miss(missTier(s.persist))
		return nil, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(blob, &entry); err != nil {
		zap.L().Warn("cache: dropping unreadable entry",
			zap.String("key", KeyPrefix(key)),
			zap.Error(err),
		)
		s.drop(ctx, key)
		s.miss(missTier(s.persist))
		return nil, false
	}

	if entry.Expired(s.clock.Now()) {
		zap.L().Debug("cache: entry expired",
			zap.String("key", KeyPrefix(key)),
			zap.Time("cached_at", entry.CachedAt),
		)
		s.drop(ctx, key)
		s.miss(missTier(s.persist))
		return nil, false
	}

	if fromPersist {
		s.promote(ctx, key, blob)
		s.hit("persisted")
	} else {
		s.hit("fast")
	}
	zap.L().Debug("cache hit", zap.String("key", KeyPrefix(key)))
	return &entry, true
}

// Set writes an entry to both tiers, stamping CachedAt and the default
// TTL when unset. Last-write-wins; a persisted-tier failure leaves the
// fast tier authoritative for this process.
func (s *Store) Set(ctx context.Context, key string, entry *model.CacheEntry) {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = s.clock.Now().UTC()
	}
	if entry.TTLMs == 0 {
		entry.TTLMs = s.ttl.Milliseconds()
	}
	if entry.LastVerified.IsZero() {
		entry.LastVerified = entry.CachedAt
	}

	blob, err := json.Marshal(entry)
	if err != nil {
		zap.L().Error("cache: marshal entry", zap.String("key", KeyPrefix(key)), zap.Error(err))
		return
	}

	_ = s.fast.Set(ctx, key, blob)
	if s.persist != nil {
		if err := s.persist.Set(ctx, key, blob); err != nil {
			zap.L().Warn("cache: persisted tier write failed",
				zap.String("tier", s.persist.Name()),
				zap.String("key", KeyPrefix(key)),
				zap.Error(err),
			)
		}
	}
}

// GetBatch returns the whole-batch aggregate if present and unexpired.
func (s *Store) GetBatch(ctx context.Context) (*model.BatchResultSet, bool) {
	blob, fromPersist := s.fetch(ctx, batchResultsKey)
	if blob == nil {
		s.miss("batch")
		return nil, false
	}

	var set model.BatchResultSet
	if err := json.Unmarshal(blob, &set); err != nil {
		zap.L().Warn("cache: dropping unreadable batch aggregate", zap.Error(err))
		s.drop(ctx, batchResultsKey)
		s.miss("batch")
		return nil, false
	}

	if s.clock.Now().Sub(set.Timestamp) >= s.ttl {
		s.drop(ctx, batchResultsKey)
		s.miss("batch")
		return nil, false
	}

	if fromPersist {
		s.promote(ctx, batchResultsKey, blob)
	}
	s.hit("batch")
	return &set, true
}

// SetBatch writes the whole-batch aggregate under the reserved key.
func (s *Store) SetBatch(ctx context.Context, set *model.BatchResultSet) {
	if set.Timestamp.IsZero() {
		set.Timestamp = s.clock.Now().UTC()
	}

	blob, err := json.Marshal(set)
	if err != nil {
		zap.L().Error("cache: marshal batch aggregate", zap.Error(err))
		return
	}

	_ = s.fast.Set(ctx, batchResultsKey, blob)
	if s.persist != nil {
		if err := s.persist.Set(ctx, batchResultsKey, blob); err != nil {
			zap.L().Warn("cache: persisted tier write failed",
				zap.String("tier", s.persist.Name()),
				zap.String("key", "batch-results"),
				zap.Error(err),
			)
		}
	}
}

// Clear empties both tiers.
func (s *Store) Clear(ctx context.Context) error {
	_ = s.fast.Clear(ctx)
	if s.persist != nil {
		if err := s.persist.Clear(ctx); err != nil {
			return eris.Wrap(err, "cache: clear persisted tier")
		}
	}
	return nil
}

// Close releases tier resources.
func (s *Store) Close() error {
	_ = s.fast.Close()
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}

// TierInfo describes one tier in a debug snapshot.
type TierInfo struct {
	Name       string   `json:"name"`
	Entries    int      `json:"entries"`
	SampleKeys []string `json:"sample_keys,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Snapshot is a non-authoritative view of the cache for observability.
// Never use it for correctness decisions.
type Snapshot struct {
	Tiers   []TierInfo `json:"tiers"`
	Hits    int64      `json:"hits"`
	Misses  int64      `json:"misses"`
	HitRate float64    `json:"hit_rate"`
	TTL     string     `json:"ttl"`
}

// Debug returns tier sizes, sample keys, and hit statistics.
func (s *Store) Debug(ctx context.Context) Snapshot {
	tiers := []Tier{s.fast}
	if s.persist != nil {
		tiers = append(tiers, s.persist)
	}

	snap := Snapshot{TTL: s.ttl.String()}
	for _, t := range tiers {
		info := TierInfo{Name: t.Name()}
		n, err := t.Count(ctx)
		if err != nil {
			info.Error = err.Error()
			snap.Tiers = append(snap.Tiers, info)
			continue
		}
		info.Entries = n
		if keys, err := t.Sample(ctx, debugSampleSize); err == nil {
			info.SampleKeys = keys
		}
		snap.Tiers = append(snap.Tiers, info)
	}

	hits := s.hits.Load()
	misses := s.misses.Load()
	snap.Hits = hits
	snap.Misses = misses
	if total := hits + misses; total > 0 {
		snap.HitRate = float64(hits) / float64(total)
	}
	return snap
}

// fetch reads a raw blob, fast tier first. The bool reports whether the
// blob came from the persisted tier.
func (s *Store) fetch(ctx context.Context, key string) ([]byte, bool) {
	if blob, _ := s.fast.Get(ctx, key); blob != nil {
		return blob, false
	}
	if s.persist == nil {
		return nil, false
	}
	blob, err := s.persist.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: persisted tier read failed",
			zap.String("tier", s.persist.Name()),
			zap.String("key", KeyPrefix(key)),
			zap.Error(err),
		)
		s.metrics.RecordCacheLookup("persisted", "error")
		return nil, false
	}
	return blob, true
}

// promote copies a persisted-tier blob into the fast tier.
func (s *Store) promote(ctx context.Context, key string, blob []byte) {
	_ = s.fast.Set(ctx, key, blob)
}

// drop removes a key from both tiers, best effort.
func (s *Store) drop(ctx context.Context, key string) {
	_ = s.fast.Delete(ctx, key)
	if s.persist != nil {
		if err := s.persist.Delete(ctx, key); err != nil {
			zap.L().Debug("cache: persisted tier delete failed",
				zap.String("key", KeyPrefix(key)),
				zap.Error(err),
			)
		}
	}
}

func (s *Store) hit(tier string) {
	s.hits.Add(1)
	s.metrics.RecordCacheLookup(tier, "hit")
}

func (s *Store) miss(tier string) {
	s.misses.Add(1)
	s.metrics.RecordCacheLookup(tier, "miss")
}

func missTier(persist Tier) string {
	if persist == nil {
		return "fast"
	}
	return "persisted"
}
