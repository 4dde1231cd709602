package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/tenancy"
)

// Logger emits one structured event per request. Tenant and actor are read
// from the request context after the inner chain has run, so every line can
// be correlated with the ledger entries the same request produced.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			method := c.Request().Method
			path := c.Request().URL.Path
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			// Inner middleware swaps the request to attach tenant and
			// principal; re-read it for the enriched context.
			ctx := c.Request().Context()

			evt := logger.Info()
			if err != nil {
				evt = logger.Error().Err(err)
			}

			evt.
				Str("request_id", rid).
				Str("tenant", tenancy.FromContext(ctx).String()).
				Str("actor_id", auth.UserIDFromContext(ctx)).
				Str("method", method).
				Str("path", path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
