package main

import (
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

type config struct {
	Debug bool `env:"DEBUG"`

	DatabaseURL           string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseMaxConns      int32  `env:"DATABASE_MAX_CONNS"`
	LiquidityTiersTable   string `env:"LIQUIDITY_TIERS_TABLE" envDefault:"liquidity_tiers"`
	PerpetualMarketsTable string `env:"PERPETUAL_MARKETS_TABLE" envDefault:"perpetual_markets"`

	// Inbound blocks come from a gocloud subscription or an Azure queue.
	EventsSubscriptionURL   string        `env:"EVENTS_SUBSCRIPTION_URL"`
	StorageConnectionString string        `env:"STORAGE_CONNECTION_STRING"`
	DomainEventsQueue       string        `env:"DOMAIN_EVENTS_QUEUE"`
	QueuePollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`

	NotificationsTopicURLPrefix string        `env:"NOTIFICATIONS_TOPIC_URL_PREFIX"`
	RedisConnectionString       string        `env:"REDIS_CONNECTION_STRING"`
	RedisChannelPrefix          string        `env:"REDIS_CHANNEL_PREFIX"`
	CacheMirrorTTL              time.Duration `env:"CACHE_MIRROR_TTL" envDefault:"12h"`

	HandlerWorkers int           `env:"HANDLER_WORKERS" envDefault:"16"`
	RetryBackoff   time.Duration `env:"RETRY_BACKOFF" envDefault:"1s"`
	HealthPort     string        `env:"HEALTH_PORT" envDefault:"9000"`
}

var (
	errNoSource    = errors.New("missing events source config: set EVENTS_SUBSCRIPTION_URL or STORAGE_CONNECTION_STRING and DOMAIN_EVENTS_QUEUE")
	errTwoSources  = errors.New("EVENTS_SUBSCRIPTION_URL and DOMAIN_EVENTS_QUEUE are mutually exclusive")
	errNoPublisher = errors.New("missing publisher config: set NOTIFICATIONS_TOPIC_URL_PREFIX or REDIS_CONNECTION_STRING")
)

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	azure := c.StorageConnectionString != "" && c.DomainEventsQueue != ""
	switch {
	case c.EventsSubscriptionURL == "" && !azure:
		return errNoSource
	case c.EventsSubscriptionURL != "" && c.DomainEventsQueue != "":
		return errTwoSources
	}
	if c.NotificationsTopicURLPrefix == "" && c.RedisConnectionString == "" {
		return errNoPublisher
	}
	return nil
}

// redisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=True" connection string.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
