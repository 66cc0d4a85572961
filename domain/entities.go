package domain

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
)

const ppmScale = 1_000_000

// defaultImpactMargin is the quote amount used to derive impact notional when
// storage does not carry one.
const defaultImpactMargin = 500

// LiquidityTier is the persisted liquidity tier row as returned by storage.
type LiquidityTier struct {
	ID                     uint32  `json:"id"`
	Name                   string  `json:"name"`
	InitialMarginPpm       uint32  `json:"initialMarginPpm"`
	MaintenanceFractionPpm uint32  `json:"maintenanceFractionPpm"`
	BasePositionNotional   Numeric `json:"basePositionNotional,omitempty"`
	ImpactNotional         Numeric `json:"impactNotional,omitempty"`
	OpenInterestLowerCap   Numeric `json:"openInterestLowerCap,omitempty"`
	OpenInterestUpperCap   Numeric `json:"openInterestUpperCap,omitempty"`
}

// CacheKey returns the key the tier is cached under.
func (t LiquidityTier) CacheKey() uint32 { return t.ID }

// InitialMarginFraction returns InitialMarginPpm as an exact decimal string.
func (t LiquidityTier) InitialMarginFraction() string {
	return formatRat(big.NewRat(int64(t.InitialMarginPpm), ppmScale))
}

// MaintenanceMarginFraction is the initial margin fraction scaled by the
// maintenance fraction.
func (t LiquidityTier) MaintenanceMarginFraction() string {
	num := new(big.Int).Mul(big.NewInt(int64(t.InitialMarginPpm)), big.NewInt(int64(t.MaintenanceFractionPpm)))
	return formatRat(new(big.Rat).SetFrac(num, big.NewInt(ppmScale*ppmScale)))
}

// ImpactNotionalOrDefault returns the stored impact notional, or the default
// derived from the initial margin fraction. A zero margin yields "0".
func (t LiquidityTier) ImpactNotionalOrDefault() string {
	if t.ImpactNotional != "" {
		return string(t.ImpactNotional)
	}
	if t.InitialMarginPpm == 0 {
		return "0"
	}
	return formatRat(big.NewRat(defaultImpactMargin*ppmScale, int64(t.InitialMarginPpm)))
}

// PerpetualMarket is the cached perpetual market row. Markets reference their
// liquidity tier through LiquidityTierID.
type PerpetualMarket struct {
	ID                        Numeric `json:"id"`
	ClobPairID                Numeric `json:"clobPairId"`
	Ticker                    string  `json:"ticker"`
	MarketID                  uint32  `json:"marketId"`
	Status                    string  `json:"status"`
	QuantumConversionExponent int32   `json:"quantumConversionExponent"`
	AtomicResolution          int32   `json:"atomicResolution"`
	SubticksPerTick           uint32  `json:"subticksPerTick"`
	StepBaseQuantums          uint64  `json:"stepBaseQuantums"`
	LiquidityTierID           uint32  `json:"liquidityTierId"`
	MarketType                string  `json:"marketType"`
}

// CacheKey returns the key the market is cached under.
func (m PerpetualMarket) CacheKey() string { return string(m.ID) }

// Numeric holds a decimal or id column in textual form. Postgres renders
// these either as JSON numbers or strings depending on the column type, so
// both are accepted.
type Numeric string

func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = Numeric(num.String())
	return nil
}

// formatRat renders r as a decimal without trailing zeros. Ppm based values
// always terminate within 12 digits.
func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(12)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

func tierKey(id uint32) string {
	return "liquidity_tier_" + strconv.FormatUint(uint64(id), 10)
}
