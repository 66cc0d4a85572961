package domain

import (
	"context"
	"sync"
)

const (
	liquidityTierProcedure   = "dydx_liquidity_tier_handler"
	liquidityTierResultField = "liquidity_tier"
)

// LiquidityTierHandler applies LiquidityTierUpsertEvent: it persists the tier,
// refreshes the tier cache and notifies about every market using the tier.
type LiquidityTierHandler struct {
	base

	once sync.Once
	req  LiquidityTierUpsertEventV1
	err  error
}

func NewLiquidityTierHandler(ev Event, gw Gateway, caches Caches) *LiquidityTierHandler {
	return &LiquidityTierHandler{base: base{event: ev, gateway: gw, caches: caches}}
}

func (h *LiquidityTierHandler) decoded([]byte) (LiquidityTierUpsertEventV1, error) {
	h.once.Do(func() {
		h.req, h.err = UnmarshalLiquidityTierUpsert(h.event.Data)
	})
	return h.req, h.err
}

// ParallelizationIDs returns the tier key. An undecodable payload reports no
// ids; Handle fails for it before touching anything.
func (h *LiquidityTierHandler) ParallelizationIDs() []string {
	req, err := h.decoded(nil)
	if err != nil {
		return nil
	}
	return []string{tierKey(req.ID)}
}

func (h *LiquidityTierHandler) Handle(ctx context.Context) ([]Notification, error) {
	tier, err := apply[LiquidityTierUpsertEventV1, LiquidityTier](ctx, h.base, h.decoded, liquidityTierProcedure, liquidityTierResultField)
	if err != nil {
		return nil, err
	}

	h.caches.LiquidityTiers.Upsert(tier)

	// Storage and cache already agree; a canceled attempt only drops its notifications.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return MarketNotificationsForTier(tier.ID, h.caches)
}
