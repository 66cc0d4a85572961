package domain

import (
	"strconv"
	"time"
)

// Event is one chain event as delivered by the block producer. Data holds the
// protobuf encoding of the event body and is only interpreted by the handler
// registered for Type.
type Event struct {
	TxID       string `json:"txId"`
	EventIndex uint32 `json:"eventIndex"`
	Type       string `json:"type"`
	Version    uint32 `json:"version"`
	Data       []byte `json:"data"`
}

// Block is the inbound envelope. Events are ordered as they occurred on chain.
type Block struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
	Events []Event   `json:"events"`
}

// Key identifies the event within its block.
func (e Event) Key() string {
	return e.TxID + ":" + strconv.FormatUint(uint64(e.EventIndex), 10)
}
