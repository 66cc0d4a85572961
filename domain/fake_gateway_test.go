package domain

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
)

// fakeGateway emulates the liquidity tier procedure: it upserts the tier and
// returns it under the result field.
type fakeGateway struct {
	tiers     map[uint32]LiquidityTier
	calls     int
	procedure string
	err       error
	result    json.RawMessage
	onCall    func()
}

func (f *fakeGateway) Call(ctx context.Context, procedure string, arg json.RawMessage) (json.RawMessage, error) {
	f.calls++
	f.procedure = procedure
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	var ev LiquidityTierUpsertEventV1
	if err := json.Unmarshal(arg, &ev); err != nil {
		return nil, err
	}
	tier := LiquidityTier{
		ID:                     ev.ID,
		Name:                   ev.Name,
		InitialMarginPpm:       ev.InitialMarginPpm,
		MaintenanceFractionPpm: ev.MaintenanceFractionPpm,
		BasePositionNotional:   Numeric(strconv.FormatUint(ev.BasePositionNotional, 10)),
		OpenInterestLowerCap:   Numeric(strconv.FormatUint(ev.OpenInterestLowerCap, 10)),
		OpenInterestUpperCap:   Numeric(strconv.FormatUint(ev.OpenInterestUpperCap, 10)),
	}
	if f.tiers == nil {
		f.tiers = map[uint32]LiquidityTier{}
	}
	f.tiers[tier.ID] = tier
	return json.Marshal(map[string]LiquidityTier{liquidityTierResultField: tier})
}

type fakeTierCache struct {
	tiers   map[uint32]LiquidityTier
	upserts int
	gets    int
}

func (f *fakeTierCache) Upsert(t LiquidityTier) {
	if f.tiers == nil {
		f.tiers = map[uint32]LiquidityTier{}
	}
	f.tiers[t.ID] = t
	f.upserts++
}

func (f *fakeTierCache) Get(id uint32) (LiquidityTier, bool) {
	f.gets++
	t, ok := f.tiers[id]
	return t, ok
}

func (f *fakeTierCache) List() []LiquidityTier {
	out := make([]LiquidityTier, 0, len(f.tiers))
	for _, t := range f.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeMarketCache struct {
	markets []PerpetualMarket
}

func (f *fakeMarketCache) Get(id string) (PerpetualMarket, bool) {
	for _, m := range f.markets {
		if string(m.ID) == id {
			return m, true
		}
	}
	return PerpetualMarket{}, false
}

func (f *fakeMarketCache) List() []PerpetualMarket {
	return append([]PerpetualMarket(nil), f.markets...)
}

func testMarket(id, ticker string, tierID uint32) PerpetualMarket {
	return PerpetualMarket{
		ID:                        Numeric(id),
		ClobPairID:                Numeric(id),
		Ticker:                    ticker,
		MarketID:                  1,
		Status:                    "ACTIVE",
		QuantumConversionExponent: -9,
		AtomicResolution:          -10,
		SubticksPerTick:           100000,
		StepBaseQuantums:          1000000,
		LiquidityTierID:           tierID,
		MarketType:                "CROSS",
	}
}

func tierEvent(payload LiquidityTierUpsertEventV1) Event {
	return Event{
		TxID:       "tx1",
		EventIndex: 0,
		Type:       LiquidityTierUpsert,
		Version:    1,
		Data:       MarshalLiquidityTierUpsert(payload),
	}
}
