// Package api serves health and read-only cache views over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ender/domain"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// Caches is the read-only view of the in-process caches.
type Caches interface {
	LiquidityTiers() []domain.LiquidityTier
	LiquidityTier(id uint32) (domain.LiquidityTier, bool)
	PerpetualMarkets() []domain.PerpetualMarket
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register wires up the ops endpoints on the given Echo instance.
func Register(e *echo.Echo, caches Caches, checks map[string]Checker) {
	e.GET("/healthz", healthz(checks))
	e.GET("/v1/liquidity-tiers", func(c echo.Context) error {
		return c.JSON(http.StatusOK, caches.LiquidityTiers())
	})
	e.GET("/v1/liquidity-tiers/:id", func(c echo.Context) error {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id"})
		}
		tier, ok := caches.LiquidityTier(uint32(id))
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
		}
		return c.JSON(http.StatusOK, tier)
	})
	e.GET("/v1/perpetual-markets", func(c echo.Context) error {
		return c.JSON(http.StatusOK, caches.PerpetualMarkets())
	})
}

func healthz(checks map[string]Checker) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		return c.JSON(code, status)
	}
}
