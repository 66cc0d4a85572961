package main

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ender/cache"
	"ender/domain"
)

const (
	liquidityTiersMirrorKey   = "ender:liquidity_tiers"
	perpetualMarketsMirrorKey = "ender:perpetual_markets"
)

type mirroredTiers struct {
	Version        int                    `json:"version"`
	CachedAt       time.Time              `json:"cachedAt"`
	CacheVersion   uint64                 `json:"cacheVersion"`
	LiquidityTiers []domain.LiquidityTier `json:"liquidityTiers"`
}

type mirroredMarkets struct {
	Version          int                      `json:"version"`
	CachedAt         time.Time                `json:"cachedAt"`
	CacheVersion     uint64                   `json:"cacheVersion"`
	PerpetualMarkets []domain.PerpetualMarket `json:"perpetualMarkets"`
}

// cacheMirror copies the in-process caches to Redis for services that do not
// consume blocks themselves. Only stores that changed since the last sync are
// written.
type cacheMirror struct {
	redis   *redis.Client
	tiers   *cache.LiquidityTiers
	markets *cache.PerpetualMarkets
	ttl     time.Duration
	now     func() time.Time

	mu          sync.Mutex
	tiersSeen   uint64
	marketsSeen uint64
}

func newCacheMirror(rc *redis.Client, tiers *cache.LiquidityTiers, markets *cache.PerpetualMarkets, ttl time.Duration) *cacheMirror {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &cacheMirror{redis: rc, tiers: tiers, markets: markets, ttl: ttl, now: time.Now}
}

func (c *cacheMirror) Sync(ctx context.Context) {
	if c == nil || c.redis == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := c.tiers.Version(); v != c.tiersSeen {
		payload := mirroredTiers{Version: 1, CachedAt: c.now().UTC(), CacheVersion: v, LiquidityTiers: c.tiers.List()}
		if c.store(ctx, liquidityTiersMirrorKey, payload) {
			c.tiersSeen = v
		}
	}
	if v := c.markets.Version(); v != c.marketsSeen {
		payload := mirroredMarkets{Version: 1, CachedAt: c.now().UTC(), CacheVersion: v, PerpetualMarkets: c.markets.List()}
		if c.store(ctx, perpetualMarketsMirrorKey, payload) {
			c.marketsSeen = v
		}
	}
}

func (c *cacheMirror) store(ctx context.Context, key string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("failed to marshal cache mirror payload")
		return false
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Error("failed to store cache mirror entry")
		return false
	}
	return true
}
