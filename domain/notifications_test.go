package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func marketPayload(t *testing.T, tier LiquidityTier, markets ...PerpetualMarket) []byte {
	t.Helper()
	b, err := json.Marshal(NewMarketMessage(markets, tier))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestRelatedMarketsPreservesOrder(t *testing.T) {
	markets := []PerpetualMarket{
		testMarket("0", "BTC-USD", 1),
		testMarket("1", "ETH-USD", 2),
		testMarket("2", "SOL-USD", 1),
	}
	related := RelatedMarkets(markets, 1)
	if len(related) != 2 || related[0].Ticker != "BTC-USD" || related[1].Ticker != "SOL-USD" {
		t.Fatalf("unexpected related markets %+v", related)
	}
	if got := RelatedMarkets(markets, 9); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestMarketNotificationsForTierReadsOnly(t *testing.T) {
	markets := &fakeMarketCache{markets: []PerpetualMarket{testMarket("0", "BTC-USD", 1)}}
	tiers := &fakeTierCache{tiers: map[uint32]LiquidityTier{
		1: {ID: 1, InitialMarginPpm: 50000, MaintenanceFractionPpm: 600000},
	}}
	caches := Caches{LiquidityTiers: tiers, PerpetualMarkets: markets}

	first, err := MarketNotificationsForTier(1, caches)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	second, err := MarketNotificationsForTier(1, caches)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(first) != 1 || string(first[0].Payload) != string(second[0].Payload) {
		t.Fatalf("composition is not deterministic")
	}
	if len(markets.markets) != 1 || tiers.upserts != 0 {
		t.Fatalf("caches modified")
	}
}

func TestMarketNotificationsForTierUsesCachedTier(t *testing.T) {
	markets := &fakeMarketCache{markets: []PerpetualMarket{testMarket("0", "BTC-USD", 1)}}
	tiers := &fakeTierCache{tiers: map[uint32]LiquidityTier{
		1: {ID: 1, InitialMarginPpm: 200000, MaintenanceFractionPpm: 500000, OpenInterestLowerCap: "25"},
	}}

	ns, err := MarketNotificationsForTier(1, Caches{LiquidityTiers: tiers, PerpetualMarkets: markets})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if tiers.gets != 1 {
		t.Fatalf("expected one tier cache read, got %d", tiers.gets)
	}
	var msg MarketMessage
	if err := json.Unmarshal(ns[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	btc := msg.Trading["BTC-USD"]
	if btc.InitialMarginFraction != "0.2" || btc.MaintenanceMarginFraction != "0.1" || btc.OpenInterestLowerCap != "25" {
		t.Fatalf("unexpected market %+v", btc)
	}
}

func TestMarketNotificationsForTierMissingFromCache(t *testing.T) {
	markets := &fakeMarketCache{markets: []PerpetualMarket{testMarket("0", "BTC-USD", 1)}}
	_, err := MarketNotificationsForTier(1, Caches{LiquidityTiers: &fakeTierCache{}, PerpetualMarkets: markets})
	if !errors.Is(err, ErrTierNotCached) {
		t.Fatalf("expected ErrTierNotCached, got %v", err)
	}

	ns, err := MarketNotificationsForTier(2, Caches{LiquidityTiers: &fakeTierCache{}, PerpetualMarkets: markets})
	if err != nil || ns != nil {
		t.Fatalf("unrelated tier should compose nothing, got %v, %v", ns, err)
	}
}

func TestConsolidateMergesMarketMessages(t *testing.T) {
	tier1 := LiquidityTier{ID: 1, InitialMarginPpm: 50000, MaintenanceFractionPpm: 600000}
	tier2 := LiquidityTier{ID: 2, InitialMarginPpm: 100000, MaintenanceFractionPpm: 500000}
	tier1Updated := LiquidityTier{ID: 1, InitialMarginPpm: 200000, MaintenanceFractionPpm: 500000}

	ns := []Notification{
		{Topic: MarketsTopic, Key: MarketsKey, Payload: marketPayload(t, tier1, testMarket("0", "BTC-USD", 1))},
		{Topic: "to-websockets-candles", Key: "BTC-USD", Payload: []byte(`{"n":1}`)},
		{Topic: MarketsTopic, Key: MarketsKey, Payload: marketPayload(t, tier2, testMarket("1", "ETH-USD", 2))},
		{Topic: "to-websockets-candles", Key: "BTC-USD", Payload: []byte(`{"n":2}`)},
		{Topic: MarketsTopic, Key: MarketsKey, Payload: marketPayload(t, tier1Updated, testMarket("0", "BTC-USD", 1))},
	}
	out, err := Consolidate(ns)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(out))
	}
	if out[0].Topic != MarketsTopic || out[1].Topic != "to-websockets-candles" {
		t.Fatalf("unexpected order %s, %s", out[0].Topic, out[1].Topic)
	}
	if string(out[1].Payload) != `{"n":2}` {
		t.Fatalf("expected latest payload, got %s", out[1].Payload)
	}
	var msg MarketMessage
	if err := json.Unmarshal(out[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Version != MarketMessageVersion || len(msg.Trading) != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if got := msg.Trading["BTC-USD"].InitialMarginFraction; got != "0.2" {
		t.Fatalf("later update should win, got %s", got)
	}
	if got := msg.Trading["ETH-USD"].MaintenanceMarginFraction; got != "0.05" {
		t.Fatalf("unexpected ETH maintenance fraction %s", got)
	}
}

func TestConsolidateRejectsMalformedMarketPayload(t *testing.T) {
	ns := []Notification{
		{Topic: MarketsTopic, Key: MarketsKey, Payload: []byte(`{}`)},
		{Topic: MarketsTopic, Key: MarketsKey, Payload: []byte(`not json`)},
	}
	if _, err := Consolidate(ns); err == nil {
		t.Fatalf("expected error")
	}
}
