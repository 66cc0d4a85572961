package main

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"

	"ender/storage"
)

type config struct {
	Debug                   bool   `env:"DEBUG"`
	DatabaseURL             string `env:"DATABASE_URL,required,notEmpty"`
	LiquidityTiersTable     string `env:"LIQUIDITY_TIERS_TABLE" envDefault:"liquidity_tiers"`
	PerpetualMarketsTable   string `env:"PERPETUAL_MARKETS_TABLE" envDefault:"perpetual_markets"`
	StorageConnectionString string `env:"STORAGE_CONNECTION_STRING"`
	DomainEventsQueue       string `env:"DOMAIN_EVENTS_QUEUE"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.DatabaseURL, storage.Options{
		LiquidityTiersTable:   cfg.LiquidityTiersTable,
		PerpetualMarketsTable: cfg.PerpetualMarketsTable,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	if cfg.StorageConnectionString != "" && cfg.DomainEventsQueue != "" {
		if err := createQueue(ctx, cfg.StorageConnectionString, cfg.DomainEventsQueue); err != nil {
			log.Fatalf("create queue: %v", err)
		}
	}

	log.Info("storage init complete")
}

func createQueue(ctx context.Context, connStr, name string) error {
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
	if err != nil {
		return err
	}
	if _, err := q.Create(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
		log.WithField("queue", name).Debug("queue already exists")
	}
	return nil
}
