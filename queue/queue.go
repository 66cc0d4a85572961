// Package queue receives block envelopes from the upstream event bus.
package queue

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"ender/domain"
)

// Delivery is a received message. Exactly one of Ack or Nack should be called.
type Delivery struct {
	Body []byte

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
}

// NewDelivery wraps body with the bus specific acknowledgement callbacks.
func NewDelivery(body []byte, ack, nack func(ctx context.Context) error) *Delivery {
	return &Delivery{Body: body, ack: ack, nack: nack}
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack asks the bus for redelivery.
func (d *Delivery) Nack(ctx context.Context) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx)
}

// Block decodes the body as a block envelope.
func (d *Delivery) Block() (domain.Block, error) {
	var b domain.Block
	if err := sonic.ConfigStd.Unmarshal(d.Body, &b); err != nil {
		return domain.Block{}, fmt.Errorf("decode block envelope: %w", err)
	}
	return b, nil
}

// Receiver blocks until a message arrives or ctx is done.
type Receiver interface {
	Receive(ctx context.Context) (*Delivery, error)
	Close(ctx context.Context) error
}
