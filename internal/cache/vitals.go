package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowscope/internal/metrics"
	"flowscope/internal/vitals"
)

const vitalsKeyPrefix = "vitals:"

// VitalsCache holds the latest VitalStats snapshot per user.
// Backend errors are logged and treated as misses.
type VitalsCache struct {
	kv      KV
	ttl     time.Duration
	metrics *metrics.Registry
	logger  *zap.Logger

	// gens counts invalidations per user so a load that raced one is not cached.
	gensMu sync.Mutex
	gens   map[int64]uint64
}

func NewVitalsCache(kv KV, ttl time.Duration, reg *metrics.Registry, logger *zap.Logger) *VitalsCache {
	if kv == nil {
		kv = NopKV{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VitalsCache{kv: kv, ttl: ttl, metrics: reg, logger: logger, gens: make(map[int64]uint64)}
}

func VitalsKey(userID int64) string {
	return vitalsKeyPrefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached snapshot and whether it was found.
func (c *VitalsCache) Get(ctx context.Context, userID int64) (vitals.VitalStats, bool) {
	raw, err := c.kv.Get(ctx, VitalsKey(userID))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("vitals cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		c.metrics.Inc(metrics.CacheMissesTotal)
		return vitals.VitalStats{}, false
	}

	var stats vitals.VitalStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		c.logger.Warn("vitals cache entry corrupt", zap.Int64("user_id", userID), zap.Error(err))
		c.metrics.Inc(metrics.CacheMissesTotal)
		return vitals.VitalStats{}, false
	}

	c.metrics.Inc(metrics.CacheHitsTotal)
	return stats, true
}

func (c *VitalsCache) Put(ctx context.Context, userID int64, stats vitals.VitalStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("vitals cache encode failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, VitalsKey(userID), string(raw), c.ttl); err != nil {
		c.logger.Warn("vitals cache set failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (c *VitalsCache) generation(userID int64) uint64 {
	c.gensMu.Lock()
	defer c.gensMu.Unlock()
	return c.gens[userID]
}

// Invalidate drops the user's snapshot; called whenever the user's samples change.
func (c *VitalsCache) Invalidate(ctx context.Context, userID int64) {
	c.gensMu.Lock()
	c.gens[userID]++
	c.gensMu.Unlock()

	if err := c.kv.Delete(ctx, VitalsKey(userID)); err != nil {
		c.logger.Warn("vitals cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// GetOrLoad serves from cache, falling back to load and caching its result.
func (c *VitalsCache) GetOrLoad(ctx context.Context, userID int64, load func(context.Context) (vitals.VitalStats, error)) (vitals.VitalStats, error) {
	if stats, ok := c.Get(ctx, userID); ok {
		return stats, nil
	}
	gen := c.generation(userID)
	stats, err := load(ctx)
	if err != nil {
		return vitals.VitalStats{}, err
	}
	if c.generation(userID) != gen {
		return stats, nil
	}

	c.Put(ctx, userID, stats)
	// An Invalidate between the check and Put deleted before this write landed.
	if c.generation(userID) != gen {
		if err := c.kv.Delete(ctx, VitalsKey(userID)); err != nil {
			c.logger.Warn("vitals cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return stats, nil
}
