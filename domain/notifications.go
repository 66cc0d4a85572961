package domain

import "fmt"

// TradingMarket is the websocket view of a perpetual market including the
// reference data of its liquidity tier.
type TradingMarket struct {
	ID                        string `json:"id"`
	ClobPairID                string `json:"clobPairId"`
	Ticker                    string `json:"ticker"`
	MarketID                  uint32 `json:"marketId"`
	Status                    string `json:"status"`
	QuantumConversionExponent int32  `json:"quantumConversionExponent"`
	AtomicResolution          int32  `json:"atomicResolution"`
	SubticksPerTick           uint32 `json:"subticksPerTick"`
	StepBaseQuantums          uint64 `json:"stepBaseQuantums"`
	MarketType                string `json:"marketType,omitempty"`
	InitialMarginFraction     string `json:"initialMarginFraction"`
	MaintenanceMarginFraction string `json:"maintenanceMarginFraction"`
	ImpactNotional            string `json:"impactNotional"`
	OpenInterestLowerCap      string `json:"openInterestLowerCap,omitempty"`
	OpenInterestUpperCap      string `json:"openInterestUpperCap,omitempty"`
}

// MarketMessage is the payload of MarketsTopic notifications, keyed by ticker.
type MarketMessage struct {
	Version string                   `json:"version"`
	Trading map[string]TradingMarket `json:"trading"`
}

// RelatedMarkets returns the markets referencing tier id, preserving order.
func RelatedMarkets(markets []PerpetualMarket, tierID uint32) []PerpetualMarket {
	var related []PerpetualMarket
	for _, m := range markets {
		if m.LiquidityTierID == tierID {
			related = append(related, m)
		}
	}
	return related
}

// NewMarketMessage renders markets with the reference data of tier.
func NewMarketMessage(markets []PerpetualMarket, tier LiquidityTier) MarketMessage {
	msg := MarketMessage{Version: MarketMessageVersion, Trading: make(map[string]TradingMarket, len(markets))}
	for _, m := range markets {
		msg.Trading[m.Ticker] = TradingMarket{
			ID:                        string(m.ID),
			ClobPairID:                string(m.ClobPairID),
			Ticker:                    m.Ticker,
			MarketID:                  m.MarketID,
			Status:                    m.Status,
			QuantumConversionExponent: m.QuantumConversionExponent,
			AtomicResolution:          m.AtomicResolution,
			SubticksPerTick:           m.SubticksPerTick,
			StepBaseQuantums:          m.StepBaseQuantums,
			MarketType:                m.MarketType,
			InitialMarginFraction:     tier.InitialMarginFraction(),
			MaintenanceMarginFraction: tier.MaintenanceMarginFraction(),
			ImpactNotional:            tier.ImpactNotionalOrDefault(),
			OpenInterestLowerCap:      string(tier.OpenInterestLowerCap),
			OpenInterestUpperCap:      string(tier.OpenInterestUpperCap),
		}
	}
	return msg
}

// MarketNotificationsForTier composes the notifications caused by a change of
// tier id: nothing when no cached market uses the tier, otherwise a single
// markets message covering all of them. Tier reference data comes from the
// tier cache, so callers upsert first. Both caches are only read.
func MarketNotificationsForTier(tierID uint32, caches Caches) ([]Notification, error) {
	related := RelatedMarkets(caches.PerpetualMarkets.List(), tierID)
	if len(related) == 0 {
		return nil, nil
	}
	tier, ok := caches.LiquidityTiers.Get(tierID)
	if !ok {
		return nil, fmt.Errorf("%w: liquidity tier %d", ErrTierNotCached, tierID)
	}
	payload, err := codec.Marshal(NewMarketMessage(related, tier))
	if err != nil {
		return nil, err
	}
	return []Notification{{Topic: MarketsTopic, Key: MarketsKey, Payload: payload}}, nil
}

type mergeFunc func(prev, next []byte) ([]byte, error)

var mergers = map[string]mergeFunc{
	MarketsTopic: mergeMarketMessages,
}

type notificationKey struct {
	topic string
	key   string
}

// Consolidate merges notifications sharing topic and key into one message.
// Output follows the order in which each (topic, key) first appeared. Topics
// without a merge rule keep the latest payload.
func Consolidate(ns []Notification) ([]Notification, error) {
	idx := make(map[notificationKey]int, len(ns))
	out := make([]Notification, 0, len(ns))
	for _, n := range ns {
		k := notificationKey{topic: n.Topic, key: n.Key}
		i, ok := idx[k]
		if !ok {
			idx[k] = len(out)
			out = append(out, n)
			continue
		}
		merge, ok := mergers[n.Topic]
		if !ok {
			out[i].Payload = n.Payload
			continue
		}
		payload, err := merge(out[i].Payload, n.Payload)
		if err != nil {
			return nil, fmt.Errorf("consolidate %s/%s: %w", n.Topic, n.Key, err)
		}
		out[i].Payload = payload
	}
	return out, nil
}

func mergeMarketMessages(prev, next []byte) ([]byte, error) {
	var a, b MarketMessage
	if err := codec.Unmarshal(prev, &a); err != nil {
		return nil, err
	}
	if err := codec.Unmarshal(next, &b); err != nil {
		return nil, err
	}
	if a.Trading == nil {
		a.Trading = make(map[string]TradingMarket, len(b.Trading))
	}
	for ticker, m := range b.Trading {
		a.Trading[ticker] = m
	}
	if b.Version != "" {
		a.Version = b.Version
	}
	return codec.Marshal(a)
}
