package domain

const (
	LiquidityTierUpsert = "LiquidityTierUpsertEvent"
)

const (
	// MarketsTopic receives market state changes for websocket clients.
	MarketsTopic = "to-websockets-markets"
	// MarketsKey consolidates every market change of a block into one message.
	MarketsKey = "markets"

	MarketMessageVersion = "1.0.0"
)

// LiquidityTierUpsertEventV1 is the decoded LiquidityTierUpsertEvent payload.
// Its JSON form is the document handed to the persistence procedure.
// BasePositionNotional is no longer set on chain but older events carry it.
type LiquidityTierUpsertEventV1 struct {
	ID                     uint32 `json:"id"`
	Name                   string `json:"name"`
	InitialMarginPpm       uint32 `json:"initialMarginPpm"`
	MaintenanceFractionPpm uint32 `json:"maintenanceFractionPpm"`
	BasePositionNotional   uint64 `json:"basePositionNotional,string"`
	OpenInterestLowerCap   uint64 `json:"openInterestLowerCap,string"`
	OpenInterestUpperCap   uint64 `json:"openInterestUpperCap,string"`
}
