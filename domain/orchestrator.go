package domain

import (
	"fmt"
)

// HandlerFactory builds the handler for one event.
type HandlerFactory func(ev Event, gw Gateway, caches Caches) Handler

// Orchestrator routes events to handlers by type and version.
type Orchestrator struct {
	gateway   Gateway
	caches    Caches
	factories map[string]map[uint32]HandlerFactory
}

// NewOrchestrator returns an Orchestrator with every built-in handler registered.
func NewOrchestrator(gw Gateway, caches Caches) *Orchestrator {
	o := &Orchestrator{gateway: gw, caches: caches, factories: map[string]map[uint32]HandlerFactory{}}
	liquidityTier := func(ev Event, gw Gateway, caches Caches) Handler {
		return NewLiquidityTierHandler(ev, gw, caches)
	}
	// v2 only adds the open interest caps, which the decoder already tolerates.
	o.Register(LiquidityTierUpsert, 1, liquidityTier)
	o.Register(LiquidityTierUpsert, 2, liquidityTier)
	return o
}

// Register adds or replaces the factory for eventType at version.
func (o *Orchestrator) Register(eventType string, version uint32, f HandlerFactory) {
	byVersion, ok := o.factories[eventType]
	if !ok {
		byVersion = map[uint32]HandlerFactory{}
		o.factories[eventType] = byVersion
	}
	byVersion[version] = f
}

// HandlerFor returns the handler for ev. Version 0 is treated as 1.
func (o *Orchestrator) HandlerFor(ev Event) (Handler, error) {
	byVersion, ok := o.factories[ev.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q (tx %s, index %d)", ErrUnknownEventType, ev.Type, ev.TxID, ev.EventIndex)
	}
	version := ev.Version
	if version == 0 {
		version = 1
	}
	f, ok := byVersion[version]
	if !ok {
		return nil, fmt.Errorf("%w %d for %s (tx %s, index %d)", ErrUnsupportedVersion, ev.Version, ev.Type, ev.TxID, ev.EventIndex)
	}
	return f(ev, o.gateway, o.caches), nil
}

// HandlersFor builds handlers for every event of block, in order.
func (o *Orchestrator) HandlersFor(block Block) ([]Handler, error) {
	handlers := make([]Handler, 0, len(block.Events))
	for _, ev := range block.Events {
		h, err := o.HandlerFor(ev)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}
