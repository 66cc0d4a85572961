package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"ender/api"
	"ender/cache"
	"ender/domain"
	"ender/publisher"
	"ender/queue"
	"ender/scheduler"
	"ender/storage"
)

const shutdownTimeout = 10 * time.Second

type blockProcessor interface {
	Process(ctx context.Context, block domain.Block) error
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("ender starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.DatabaseURL, storage.Options{
		LiquidityTiersTable:   cfg.LiquidityTiersTable,
		PerpetualMarketsTable: cfg.PerpetualMarketsTable,
		MaxConns:              cfg.DatabaseMaxConns,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	tiers := cache.NewLiquidityTiers()
	markets := cache.NewPerpetualMarkets()
	if err := cache.Refresh(ctx, store, tiers, markets); err != nil {
		log.Fatalf("cache: %v", err)
	}

	sched, err := scheduler.New(scheduler.Options{Workers: cfg.HandlerWorkers})
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	defer sched.Close()

	var (
		publishers publisher.Fanout
		rc         *redis.Client
		mirror     *cacheMirror
	)
	if cfg.NotificationsTopicURLPrefix != "" {
		ps := publisher.NewPubSub(cfg.NotificationsTopicURLPrefix)
		if err := ps.Open(ctx, domain.MarketsTopic); err != nil {
			log.Fatalf("publisher: %v", err)
		}
		publishers = append(publishers, ps)
	}
	if cfg.RedisConnectionString != "" {
		rc = redis.NewClient(redisOptions(cfg.RedisConnectionString))
		defer rc.Close()
		publishers = append(publishers, publisher.NewRedis(rc, cfg.RedisChannelPrefix))
		mirror = newCacheMirror(rc, tiers, markets, cfg.CacheMirrorTTL)
		mirror.Sync(ctx)
	}

	stream := api.NewStream()
	publishers = append(publishers, stream)

	rcv, err := openReceiver(ctx, cfg)
	if err != nil {
		log.Fatalf("receiver: %v", err)
	}

	proc := &processor{
		router:    domain.NewOrchestrator(store, cache.Caches(tiers, markets)),
		scheduler: sched,
		publisher: publishers,
	}
	if mirror != nil {
		proc.mirror = mirror
	}

	e := echo.New()
	e.HideBanner = true
	checks := map[string]api.Checker{"postgres": store.Ping}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}
	api.Register(e, cacheView{tiers: tiers, markets: markets}, checks)
	api.RegisterStream(e, stream)
	go func() {
		if err := e.Start(":" + cfg.HealthPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("ops server stopped")
		}
	}()

	runErr := consume(ctx, rcv, proc, cfg.RetryBackoff)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rcv.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("receiver shutdown")
	}
	// Closing the publishers also ends open event streams.
	if err := publishers.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("publisher shutdown")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("ops server shutdown")
	}
	if runErr != nil {
		log.WithError(runErr).Fatal("ender stopped")
	}
	log.Info("ender stopped")
}

func openReceiver(ctx context.Context, cfg config) (queue.Receiver, error) {
	if cfg.EventsSubscriptionURL != "" {
		sub, err := queue.OpenSubscription(ctx, cfg.EventsSubscriptionURL)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}
	q, err := queue.NewAzureQueue(cfg.StorageConnectionString, cfg.DomainEventsQueue, cfg.QueuePollInterval)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// consume processes blocks until ctx is done. Storage and publish failures
// nack the block and retry after backoff. Any other failure stops the loop:
// a block that cannot be decoded is never skipped.
func consume(ctx context.Context, rcv queue.Receiver, proc blockProcessor, backoff time.Duration) error {
	for {
		d, err := rcv.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("receive failed")
			if !sleep(ctx, backoff) {
				return nil
			}
			continue
		}

		block, err := d.Block()
		if err == nil {
			err = proc.Process(ctx, block)
		}
		if err == nil {
			if err := d.Ack(ctx); err != nil {
				log.WithError(err).WithField("height", block.Height).Warn("ack failed")
			}
			continue
		}

		if nackErr := d.Nack(context.WithoutCancel(ctx)); nackErr != nil {
			log.WithError(nackErr).Warn("nack failed")
		}
		if ctx.Err() != nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		log.WithError(err).WithField("height", block.Height).Warn("block will be retried")
		if !sleep(ctx, backoff) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// cacheView exposes the in-process caches to the ops API.
type cacheView struct {
	tiers   *cache.LiquidityTiers
	markets *cache.PerpetualMarkets
}

func (v cacheView) LiquidityTiers() []domain.LiquidityTier { return v.tiers.List() }

func (v cacheView) LiquidityTier(id uint32) (domain.LiquidityTier, bool) { return v.tiers.Get(id) }

func (v cacheView) PerpetualMarkets() []domain.PerpetualMarket { return v.markets.List() }
