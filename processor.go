package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ender/domain"
	"ender/publisher"
)

// errPublish marks failures after every handler succeeded. Redelivery is
// safe because applying an event twice converges to the same state.
var errPublish = errors.New("publish notifications")

type handlerRouter interface {
	HandlersFor(block domain.Block) ([]domain.Handler, error)
}

type blockScheduler interface {
	Run(ctx context.Context, handlers []domain.Handler) ([]domain.Notification, error)
}

type cacheSyncer interface {
	Sync(ctx context.Context)
}

type processor struct {
	router    handlerRouter
	scheduler blockScheduler
	publisher publisher.Publisher
	mirror    cacheSyncer
}

// Process applies every event of block and publishes the consolidated
// notifications. Nothing is published unless all handlers succeed.
func (p *processor) Process(ctx context.Context, block domain.Block) (err error) {
	m := newBlockMetrics(block)
	defer func() { m.Log(err) }()

	handlers, err := p.router.HandlersFor(block)
	if err != nil {
		m.SetErrorStage("route")
		return err
	}

	start := time.Now()
	ns, err := p.scheduler.Run(ctx, handlers)
	m.ObserveHandle(time.Since(start))
	if err != nil {
		m.SetErrorStage("handle")
		return err
	}

	ns, err = domain.Consolidate(ns)
	if err != nil {
		m.SetErrorStage("consolidate")
		return err
	}
	m.SetNotifications(len(ns))

	start = time.Now()
	err = publisher.PublishAll(ctx, p.publisher, ns)
	m.ObservePublish(time.Since(start))
	if err != nil {
		m.SetErrorStage("publish")
		return fmt.Errorf("%w: %w", errPublish, err)
	}

	if p.mirror != nil {
		p.mirror.Sync(ctx)
	}
	return nil
}

func isRetryable(err error) bool {
	return domain.IsRetryable(err) || errors.Is(err, errPublish)
}

type blockMetrics struct {
	height          uint64
	events          int
	start           time.Time
	handleDuration  time.Duration
	publishDuration time.Duration
	notifications   int
	errorStage      string
}

func newBlockMetrics(block domain.Block) *blockMetrics {
	return &blockMetrics{height: block.Height, events: len(block.Events), start: time.Now()}
}

func (m *blockMetrics) ObserveHandle(d time.Duration) {
	if d <= 0 {
		return
	}
	m.handleDuration = d
}

func (m *blockMetrics) ObservePublish(d time.Duration) {
	if d <= 0 {
		return
	}
	m.publishDuration = d
}

func (m *blockMetrics) SetNotifications(n int) {
	m.notifications = n
}

func (m *blockMetrics) SetErrorStage(stage string) {
	m.errorStage = stage
}

func (m *blockMetrics) Log(err error) {
	fields := log.Fields{
		"height":        m.height,
		"events":        m.events,
		"notifications": m.notifications,
		"total_ms":      durationToMillis(time.Since(m.start)),
		"handle_ms":     durationToMillis(m.handleDuration),
		"publish_ms":    durationToMillis(m.publishDuration),
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("block.metrics")
		return
	}
	log.WithFields(fields).Debug("block.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
