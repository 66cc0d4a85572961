package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// quoteAtomicResolution converts quote quantums carried by events into
// human readable amounts.
const quoteAtomicResolution = "1000000"

const liquidityTiersDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
	"id" integer PRIMARY KEY,
	"name" text NOT NULL,
	"initialMarginPpm" bigint NOT NULL,
	"maintenanceFractionPpm" bigint NOT NULL,
	"basePositionNotional" numeric,
	"impactNotional" numeric,
	"openInterestLowerCap" numeric,
	"openInterestUpperCap" numeric
)`

const perpetualMarketsDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
	"id" bigint PRIMARY KEY,
	"clobPairId" bigint NOT NULL,
	"ticker" text NOT NULL,
	"marketId" integer NOT NULL,
	"status" text NOT NULL,
	"quantumConversionExponent" integer NOT NULL,
	"atomicResolution" integer NOT NULL,
	"subticksPerTick" integer NOT NULL,
	"stepBaseQuantums" bigint NOT NULL,
	"liquidityTierId" integer NOT NULL,
	"marketType" text NOT NULL DEFAULT 'CROSS'
)`

// liquidityTierHandlerDDL upserts the tier described by the event document
// and returns {"liquidity_tier": <row>}.
const liquidityTierHandlerDDL = `CREATE OR REPLACE FUNCTION %[2]s(event_data jsonb) RETURNS jsonb AS $$
DECLARE
	tier %[1]s%%ROWTYPE;
BEGIN
	INSERT INTO %[1]s ("id", "name", "initialMarginPpm", "maintenanceFractionPpm",
		"basePositionNotional", "openInterestLowerCap", "openInterestUpperCap")
	VALUES (
		(event_data->>'id')::integer,
		event_data->>'name',
		(event_data->>'initialMarginPpm')::bigint,
		(event_data->>'maintenanceFractionPpm')::bigint,
		trim_scale(coalesce((event_data->>'basePositionNotional')::numeric, 0) / %[3]s),
		trim_scale(coalesce((event_data->>'openInterestLowerCap')::numeric, 0) / %[3]s),
		trim_scale(coalesce((event_data->>'openInterestUpperCap')::numeric, 0) / %[3]s))
	ON CONFLICT ("id") DO UPDATE SET
		"name" = EXCLUDED."name",
		"initialMarginPpm" = EXCLUDED."initialMarginPpm",
		"maintenanceFractionPpm" = EXCLUDED."maintenanceFractionPpm",
		"basePositionNotional" = EXCLUDED."basePositionNotional",
		"openInterestLowerCap" = EXCLUDED."openInterestLowerCap",
		"openInterestUpperCap" = EXCLUDED."openInterestUpperCap"
	RETURNING * INTO tier;

	RETURN jsonb_build_object('liquidity_tier', to_jsonb(tier));
END;
$$ LANGUAGE plpgsql`

// LiquidityTierProcedure is the procedure installed by EnsureSchema.
const LiquidityTierProcedure = "dydx_liquidity_tier_handler"

// EnsureSchema creates the tables and the liquidity tier procedure if they do
// not exist yet. It is safe to run repeatedly.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	tiers, err := identifier(s.tiersTable)
	if err != nil {
		return fmt.Errorf("table %q: %w", s.tiersTable, err)
	}
	markets, err := identifier(s.marketsTable)
	if err != nil {
		return fmt.Errorf("table %q: %w", s.marketsTable, err)
	}
	proc, err := identifier(LiquidityTierProcedure)
	if err != nil {
		return err
	}
	stmts := []string{
		fmt.Sprintf(liquidityTiersDDL, tiers),
		fmt.Sprintf(perpetualMarketsDDL, markets),
		fmt.Sprintf(liquidityTierHandlerDDL, tiers, proc, quoteAtomicResolution),
	}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.WithFields(log.Fields{"liquidityTiers": s.tiersTable, "perpetualMarkets": s.marketsTable}).Info("schema ready")
	return nil
}
