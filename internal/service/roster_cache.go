package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prof-roster-api/internal/models"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

// DefaultRosterCachePrefix prefixes every roster cache key.
const DefaultRosterCachePrefix = "roster:"

// RosterCacheKey builds the cache key of a year selector. The id wins over
// the label; an empty selector maps to "all".
func RosterCacheKey(yearID, yearLabel string) string {
	return DefaultRosterCachePrefix + rosterSelectorKey(yearID, yearLabel)
}

func rosterSelectorKey(yearID, yearLabel string) string {
	switch {
	case yearID != "":
		return yearID
	case yearLabel != "":
		return yearLabel
	default:
		return "all"
	}
}

// RosterCache stores resolved rosters per year selector. Entries never
// expire; they are removed explicitly after mutations.
type RosterCache interface {
	Get(ctx context.Context, key string) ([]models.Professor, bool)
	Set(ctx context.Context, key string, rows []models.Professor)
	Delete(ctx context.Context, keys ...string)
	Clear(ctx context.Context)
	// Epoch returns the invalidation epoch of key. It moves forward every
	// time key is deleted or the cache is cleared.
	Epoch(key string) uint64
	// SetIfCurrent stores rows only when key was not invalidated since
	// epoch was read.
	SetIfCurrent(ctx context.Context, key string, rows []models.Professor, epoch uint64) bool
}

// keyEpochs counts invalidations per key. The zero value is ready to use.
type keyEpochs struct {
	mu   sync.Mutex
	all  uint64
	keys map[string]uint64
}

func (e *keyEpochs) epoch(key string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.all + e.keys[key]
}

func (e *keyEpochs) bump(keys ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keys == nil {
		e.keys = make(map[string]uint64)
	}
	for _, key := range keys {
		e.keys[key]++
	}
}

func (e *keyEpochs) bumpAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all++
}

// whenCurrent runs store while holding the epoch lock, so an invalidation
// either happens before the check or after the write.
func (e *keyEpochs) whenCurrent(key string, epoch uint64, store func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.all+e.keys[key] != epoch {
		return false
	}
	store()
	return true
}

// MemoryRosterCache keeps rosters for the lifetime of the process.
type MemoryRosterCache struct {
	mu      sync.RWMutex
	entries map[string][]models.Professor
	epochs  keyEpochs
}

// NewMemoryRosterCache constructs an empty in-process cache.
func NewMemoryRosterCache() *MemoryRosterCache {
	return &MemoryRosterCache{entries: make(map[string][]models.Professor)}
}

// Get returns the cached slice itself, not a copy.
func (c *MemoryRosterCache) Get(_ context.Context, key string) ([]models.Professor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, ok := c.entries[key]
	return rows, ok
}

// Set stores rows under key.
func (c *MemoryRosterCache) Set(_ context.Context, key string, rows []models.Professor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rows
}

// Epoch returns the invalidation epoch of key.
func (c *MemoryRosterCache) Epoch(key string) uint64 {
	return c.epochs.epoch(key)
}

// SetIfCurrent stores rows unless key was invalidated after epoch.
func (c *MemoryRosterCache) SetIfCurrent(ctx context.Context, key string, rows []models.Professor, epoch uint64) bool {
	return c.epochs.whenCurrent(key, epoch, func() { c.Set(ctx, key, rows) })
}

// Delete removes the given keys.
func (c *MemoryRosterCache) Delete(_ context.Context, keys ...string) {
	c.epochs.bump(keys...)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// Clear drops every entry.
func (c *MemoryRosterCache) Clear(context.Context) {
	c.epochs.bumpAll()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]models.Professor)
}

// NopRosterCache never stores anything but still tracks invalidations so
// loads started before a mutation are not shared with later callers.
type NopRosterCache struct {
	epochs keyEpochs
}

func (*NopRosterCache) Get(context.Context, string) ([]models.Professor, bool) { return nil, false }
func (*NopRosterCache) Set(context.Context, string, []models.Professor)        {}
func (c *NopRosterCache) Delete(_ context.Context, keys ...string)            { c.epochs.bump(keys...) }
func (c *NopRosterCache) Clear(context.Context)                               { c.epochs.bumpAll() }
func (c *NopRosterCache) Epoch(key string) uint64                             { return c.epochs.epoch(key) }

func (c *NopRosterCache) SetIfCurrent(_ context.Context, key string, _ []models.Professor, epoch uint64) bool {
	return c.epochs.whenCurrent(key, epoch, func() {})
}

// CacheRepository abstracts the redis-backed payload cache.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RedisRosterCache shares rosters between API replicas. Failures degrade to
// cache misses and are only logged.
// Epochs are tracked per process; replicas only see each other's deletes.
type RedisRosterCache struct {
	repo    CacheRepository
	metrics *MetricsService
	logger  *zap.Logger
	epochs  keyEpochs
}

// NewRedisRosterCache constructs a RedisRosterCache.
func NewRedisRosterCache(repo CacheRepository, metrics *MetricsService, logger *zap.Logger) *RedisRosterCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRosterCache{repo: repo, metrics: metrics, logger: logger}
}

// Get reads and decodes the cached roster.
func (c *RedisRosterCache) Get(ctx context.Context, key string) ([]models.Professor, bool) {
	var rows []models.Professor
	if err := c.repo.Get(ctx, key, &rows); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("roster cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if rows == nil {
		rows = []models.Professor{}
	}
	return rows, true
}

// Set stores the roster without expiry.
func (c *RedisRosterCache) Set(ctx context.Context, key string, rows []models.Professor) {
	start := time.Now()
	err := c.repo.Set(ctx, key, rows, 0)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("roster cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Epoch returns the invalidation epoch of key.
func (c *RedisRosterCache) Epoch(key string) uint64 {
	return c.epochs.epoch(key)
}

// SetIfCurrent stores rows unless key was invalidated after epoch.
func (c *RedisRosterCache) SetIfCurrent(ctx context.Context, key string, rows []models.Professor, epoch uint64) bool {
	return c.epochs.whenCurrent(key, epoch, func() { c.Set(ctx, key, rows) })
}

// Delete removes the given keys.
func (c *RedisRosterCache) Delete(ctx context.Context, keys ...string) {
	c.epochs.bump(keys...)
	if err := c.repo.Delete(ctx, keys...); err != nil {
		c.logger.Warn("roster cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Clear removes every roster entry.
func (c *RedisRosterCache) Clear(ctx context.Context) {
	c.epochs.bumpAll()
	if err := c.repo.DeleteByPattern(ctx, DefaultRosterCachePrefix+"*"); err != nil {
		c.logger.Warn("roster cache clear failed", zap.Error(err))
	}
}

// invalidateYear drops every cache entry that may hold the roster of the
// year, whichever form of the selector was used to load it.
func invalidateYear(ctx context.Context, cache RosterCache, yearID, yearLabel string) {
	if cache == nil {
		return
	}
	keys := []string{RosterCacheKey(yearID, "")}
	if yearLabel != "" && yearLabel != yearID {
		keys = append(keys, RosterCacheKey("", yearLabel))
	}
	if yearID == "" {
		keys = []string{RosterCacheKey("", yearLabel)}
	}
	cache.Delete(ctx, keys...)
}
