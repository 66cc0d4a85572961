package domain

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// LiquidityTierUpsertEventV1 field numbers.
const (
	tierFieldID                     protowire.Number = 1
	tierFieldName                   protowire.Number = 2
	tierFieldInitialMarginPpm       protowire.Number = 3
	tierFieldMaintenanceFractionPpm protowire.Number = 4
	tierFieldBasePositionNotional   protowire.Number = 5
	tierFieldOpenInterestLowerCap   protowire.Number = 6
	tierFieldOpenInterestUpperCap   protowire.Number = 7
)

var errWireType = errors.New("unexpected wire type")

// UnmarshalLiquidityTierUpsert decodes the protobuf wire encoding of a
// LiquidityTierUpsertEventV1. Unknown fields are skipped.
func UnmarshalLiquidityTierUpsert(b []byte) (LiquidityTierUpsertEventV1, error) {
	var ev LiquidityTierUpsertEventV1
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return LiquidityTierUpsertEventV1{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case tierFieldName:
			if typ != protowire.BytesType {
				return LiquidityTierUpsertEventV1{}, fmt.Errorf("field %d: %w", num, errWireType)
			}
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return LiquidityTierUpsertEventV1{}, protowire.ParseError(m)
			}
			if !utf8.Valid(v) {
				return LiquidityTierUpsertEventV1{}, fmt.Errorf("field %d: invalid UTF-8", num)
			}
			ev.Name = string(v)
			n = m
		case tierFieldID, tierFieldInitialMarginPpm, tierFieldMaintenanceFractionPpm,
			tierFieldBasePositionNotional, tierFieldOpenInterestLowerCap, tierFieldOpenInterestUpperCap:
			if typ != protowire.VarintType {
				return LiquidityTierUpsertEventV1{}, fmt.Errorf("field %d: %w", num, errWireType)
			}
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return LiquidityTierUpsertEventV1{}, protowire.ParseError(m)
			}
			if err := setTierVarint(&ev, num, v); err != nil {
				return LiquidityTierUpsertEventV1{}, err
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return LiquidityTierUpsertEventV1{}, protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return ev, nil
}

func setTierVarint(ev *LiquidityTierUpsertEventV1, num protowire.Number, v uint64) error {
	switch num {
	case tierFieldBasePositionNotional:
		ev.BasePositionNotional = v
		return nil
	case tierFieldOpenInterestLowerCap:
		ev.OpenInterestLowerCap = v
		return nil
	case tierFieldOpenInterestUpperCap:
		ev.OpenInterestUpperCap = v
		return nil
	}
	if v > math.MaxUint32 {
		return fmt.Errorf("field %d: value %d overflows uint32", num, v)
	}
	switch num {
	case tierFieldID:
		ev.ID = uint32(v)
	case tierFieldInitialMarginPpm:
		ev.InitialMarginPpm = uint32(v)
	case tierFieldMaintenanceFractionPpm:
		ev.MaintenanceFractionPpm = uint32(v)
	}
	return nil
}

// MarshalLiquidityTierUpsert encodes ev in protobuf wire format, omitting
// zero values as proto3 does.
func MarshalLiquidityTierUpsert(ev LiquidityTierUpsertEventV1) []byte {
	var b []byte
	appendVarint := func(num protowire.Number, v uint64) {
		if v == 0 {
			return
		}
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	}
	appendVarint(tierFieldID, uint64(ev.ID))
	if ev.Name != "" {
		b = protowire.AppendTag(b, tierFieldName, protowire.BytesType)
		b = protowire.AppendString(b, ev.Name)
	}
	appendVarint(tierFieldInitialMarginPpm, uint64(ev.InitialMarginPpm))
	appendVarint(tierFieldMaintenanceFractionPpm, uint64(ev.MaintenanceFractionPpm))
	appendVarint(tierFieldBasePositionNotional, ev.BasePositionNotional)
	appendVarint(tierFieldOpenInterestLowerCap, ev.OpenInterestLowerCap)
	appendVarint(tierFieldOpenInterestUpperCap, ev.OpenInterestUpperCap)
	return b
}
