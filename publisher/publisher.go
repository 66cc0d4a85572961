// Package publisher delivers consolidated notifications to the downstream bus.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"ender/domain"
)

// Publisher is the sink for consolidated notifications.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
	Close(ctx context.Context) error
}

// PublishAll publishes ns in order and stops at the first failure.
func PublishAll(ctx context.Context, p Publisher, ns []domain.Notification) error {
	for _, n := range ns {
		if err := p.Publish(ctx, n); err != nil {
			return fmt.Errorf("publish %s/%s: %w", n.Topic, n.Key, err)
		}
	}
	return nil
}

// Fanout publishes every notification to all of its publishers.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close(ctx))
	}
	return errors.Join(errs...)
}
