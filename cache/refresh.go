package cache

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"ender/domain"
)

// LiquidityTiers caches liquidity tiers by id.
type LiquidityTiers = Store[uint32, domain.LiquidityTier]

// PerpetualMarkets caches perpetual markets by id.
type PerpetualMarkets = Store[string, domain.PerpetualMarket]

func NewLiquidityTiers() *LiquidityTiers {
	return NewStore(domain.LiquidityTier.CacheKey)
}

func NewPerpetualMarkets() *PerpetualMarkets {
	return NewStore(domain.PerpetualMarket.CacheKey)
}

// Loader reads the authoritative rows the caches shadow.
type Loader interface {
	ListLiquidityTiers(ctx context.Context) ([]domain.LiquidityTier, error)
	ListPerpetualMarkets(ctx context.Context) ([]domain.PerpetualMarket, error)
}

// Refresh replaces both caches with the rows currently in storage. Nothing is
// replaced unless both loads succeed.
func Refresh(ctx context.Context, l Loader, tiers *LiquidityTiers, markets *PerpetualMarkets) error {
	ts, err := l.ListLiquidityTiers(ctx)
	if err != nil {
		return fmt.Errorf("load liquidity tiers: %w", err)
	}
	ms, err := l.ListPerpetualMarkets(ctx)
	if err != nil {
		return fmt.Errorf("load perpetual markets: %w", err)
	}
	tiers.Replace(ts)
	markets.Replace(ms)
	log.WithFields(log.Fields{"liquidityTiers": len(ts), "perpetualMarkets": len(ms)}).Info("caches refreshed")
	return nil
}

// Caches returns the domain view of the two stores.
func Caches(tiers *LiquidityTiers, markets *PerpetualMarkets) domain.Caches {
	return domain.Caches{LiquidityTiers: tiers, PerpetualMarkets: markets}
}
