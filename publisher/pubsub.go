package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"

	"ender/domain"
)

// MetadataKey carries the notification key in message metadata.
const MetadataKey = "key"

// PubSub publishes to gocloud topics opened from urlPrefix + topic, for
// example "nats://" or "mem://".
type PubSub struct {
	urlPrefix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSub(urlPrefix string) *PubSub {
	return &PubSub{urlPrefix: urlPrefix, topics: map[string]*pubsub.Topic{}}
}

// Open opens the named topics up front so misconfiguration fails at startup.
func (p *PubSub) Open(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := p.topic(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (p *PubSub) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return t, nil
	}
	t, err := pubsub.OpenTopic(ctx, p.urlPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("open topic %s: %w", name, err)
	}
	p.topics[name] = t
	return t, nil
}

func (p *PubSub) Publish(ctx context.Context, n domain.Notification) error {
	t, err := p.topic(ctx, n.Topic)
	if err != nil {
		return err
	}
	return t.Send(ctx, &pubsub.Message{
		Body:     n.Payload,
		Metadata: map[string]string{MetadataKey: n.Key},
	})
}

// Close flushes and shuts down every opened topic.
func (p *PubSub) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, t := range p.topics {
		if err := t.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown topic %s: %w", name, err))
		}
		delete(p.topics, name)
	}
	return errors.Join(errs...)
}
