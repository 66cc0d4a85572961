package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

// codec encodes procedure arguments and decodes procedure results and
// notification payloads with encoding/json compatible semantics.
var codec = sonic.ConfigStd

// Notification is a consolidated message for the downstream bus. Handlers
// return notifications; they never publish.
type Notification struct {
	Topic   string
	Key     string
	Payload []byte
}

// Handler applies a single event. A scheduler must never run two handlers
// whose ParallelizationIDs intersect at the same time; an empty set means the
// handler may run alongside anything.
type Handler interface {
	ParallelizationIDs() []string
	Handle(ctx context.Context) ([]Notification, error)
}

// Gateway executes one named atomic procedure with a JSON document and
// returns its JSON result.
type Gateway interface {
	Call(ctx context.Context, procedure string, arg json.RawMessage) (json.RawMessage, error)
}

// LiquidityTierCache is the in-process shadow of persisted liquidity tiers.
type LiquidityTierCache interface {
	Upsert(t LiquidityTier)
	Get(id uint32) (LiquidityTier, bool)
	List() []LiquidityTier
}

// PerpetualMarketCache is the in-process shadow of persisted perpetual markets.
type PerpetualMarketCache interface {
	Get(id string) (PerpetualMarket, bool)
	List() []PerpetualMarket
}

// Caches groups the process wide caches shared by all handlers. Concurrent
// access is safe only under the scheduler's non-overlap guarantee unless the
// implementations synchronize themselves.
type Caches struct {
	LiquidityTiers   LiquidityTierCache
	PerpetualMarkets PerpetualMarketCache
}

type base struct {
	event   Event
	gateway Gateway
	caches  Caches
}

func (b base) fields(at string) log.Fields {
	return log.Fields{
		"at":         at,
		"eventType":  b.event.Type,
		"txId":       b.event.TxID,
		"eventIndex": b.event.EventIndex,
	}
}

func (b base) decodeError(stage string, err error) *DecodeError {
	return &DecodeError{
		EventType:  b.event.Type,
		TxID:       b.event.TxID,
		EventIndex: b.event.EventIndex,
		Stage:      stage,
		Err:        err,
	}
}

// apply decodes the event payload, hands it to procedure and parses the named
// field of the result. Nothing outside storage is touched.
func apply[Req, Res any](ctx context.Context, b base, decode func([]byte) (Req, error), procedure, field string) (Res, error) {
	var res Res
	req, err := decode(b.event.Data)
	if err != nil {
		return res, b.decodeError(StagePayload, err)
	}
	arg, err := codec.Marshal(req)
	if err != nil {
		return res, b.decodeError(StagePayload, err)
	}

	out, err := b.gateway.Call(ctx, procedure, arg)
	if err != nil {
		entry := log.WithFields(b.fields(procedure)).WithError(err)
		if isCanceled(err) {
			entry.Warnf("canceled while handling %s", b.event.Type)
		} else {
			entry.Errorf("failed to handle %s", b.event.Type)
		}
		return res, &PersistenceError{
			EventType:  b.event.Type,
			TxID:       b.event.TxID,
			EventIndex: b.event.EventIndex,
			Procedure:  procedure,
			Err:        err,
		}
	}

	if err := parseResult(out, field, &res); err != nil {
		return res, b.decodeError(StageResult, err)
	}
	return res, nil
}

func parseResult(out json.RawMessage, field string, dst any) error {
	if len(out) == 0 {
		return ErrMissingResult
	}
	var doc map[string]json.RawMessage
	if err := codec.Unmarshal(out, &doc); err != nil {
		return err
	}
	raw, ok := doc[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %s", ErrMissingResult, field)
	}
	if err := codec.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// isCanceled reports whether err stems from context cancellation.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
