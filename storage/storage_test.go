package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ender/cache"
	"ender/domain"
)

const postgresImage = "postgres:17"

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcPostgres.Run(ctx, postgresImage,
		tcPostgres.WithDatabase("ender_test"),
		tcPostgres.WithUsername("ender"),
		tcPostgres.WithPassword("ender"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, dsn, Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func insertMarket(t *testing.T, s *Storage, id int, ticker string, tierID int) {
	t.Helper()
	_, err := s.pool.Exec(context.Background(), `INSERT INTO perpetual_markets
		("id", "clobPairId", "ticker", "marketId", "status", "quantumConversionExponent",
		 "atomicResolution", "subticksPerTick", "stepBaseQuantums", "liquidityTierId")
		VALUES ($1, $1, $2, $1, 'ACTIVE', -9, -10, 100000, 1000000, $3)`, id, ticker, tierID)
	require.NoError(t, err)
}

func TestLiquidityTierProcedureUpserts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	arg, err := json.Marshal(domain.LiquidityTierUpsertEventV1{
		ID:                     1,
		Name:                   "Large-Cap",
		InitialMarginPpm:       50000,
		MaintenanceFractionPpm: 600000,
		OpenInterestLowerCap:   20000000000000,
		OpenInterestUpperCap:   50000000000000,
	})
	require.NoError(t, err)

	out, err := s.Call(ctx, LiquidityTierProcedure, arg)
	require.NoError(t, err)
	var res struct {
		Tier domain.LiquidityTier `json:"liquidity_tier"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	require.Equal(t, uint32(1), res.Tier.ID)
	require.Equal(t, domain.Numeric("20000000"), res.Tier.OpenInterestLowerCap)
	require.Equal(t, domain.Numeric("50000000"), res.Tier.OpenInterestUpperCap)

	again, err := s.Call(ctx, LiquidityTierProcedure, arg)
	require.NoError(t, err)
	require.JSONEq(t, string(out), string(again))

	tiers, err := s.ListLiquidityTiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	require.Equal(t, "Large-Cap", tiers[0].Name)
}

func TestCallUnknownProcedure(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Call(context.Background(), "no_such_handler", json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestLiquidityTierHandlerAgainstPostgres(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	insertMarket(t, s, 0, "BTC-USD", 1)
	insertMarket(t, s, 1, "ETH-USD", 1)
	insertMarket(t, s, 2, "SOL-USD", 2)

	tiers := cache.NewLiquidityTiers()
	markets := cache.NewPerpetualMarkets()
	require.NoError(t, cache.Refresh(ctx, s, tiers, markets))
	require.Equal(t, 3, markets.Len())

	ev := domain.Event{
		TxID:    "tx",
		Type:    domain.LiquidityTierUpsert,
		Version: 2,
		Data: domain.MarshalLiquidityTierUpsert(domain.LiquidityTierUpsertEventV1{
			ID: 1, Name: "Large-Cap", InitialMarginPpm: 50000, MaintenanceFractionPpm: 600000,
		}),
	}
	h, err := domain.NewOrchestrator(s, cache.Caches(tiers, markets)).HandlerFor(ev)
	require.NoError(t, err)

	ns, err := h.Handle(ctx)
	require.NoError(t, err)
	require.Len(t, ns, 1)

	var msg domain.MarketMessage
	require.NoError(t, json.Unmarshal(ns[0].Payload, &msg))
	require.Len(t, msg.Trading, 2)
	require.Equal(t, "0.03", msg.Trading["ETH-USD"].MaintenanceMarginFraction)

	cached, ok := tiers.Get(1)
	require.True(t, ok)
	stored, err := s.ListLiquidityTiers(ctx)
	require.NoError(t, err)
	require.Equal(t, stored[0], cached)
}

func TestIdentifier(t *testing.T) {
	got, err := identifier("public.liquidity_tiers")
	require.NoError(t, err)
	require.Equal(t, `"public"."liquidity_tiers"`, got)

	_, err = identifier("public.")
	require.ErrorIs(t, err, errEmptyIdentifier)
}
