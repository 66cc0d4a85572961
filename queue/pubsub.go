package queue

import (
	"context"
	"fmt"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
)

// Subscription receives from a gocloud subscription URL such as
// "nats://blocks?queue=ender" or "mem://blocks".
type Subscription struct {
	sub *pubsub.Subscription
}

func OpenSubscription(ctx context.Context, url string) (*Subscription, error) {
	sub, err := pubsub.OpenSubscription(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open subscription: %w", err)
	}
	return &Subscription{sub: sub}, nil
}

func (s *Subscription) Receive(ctx context.Context) (*Delivery, error) {
	msg, err := s.sub.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return &Delivery{
		Body: msg.Body,
		ack: func(context.Context) error {
			msg.Ack()
			return nil
		},
		nack: func(context.Context) error {
			if msg.Nackable() {
				msg.Nack()
			}
			return nil
		},
	}, nil
}

func (s *Subscription) Close(ctx context.Context) error {
	return s.sub.Shutdown(ctx)
}
