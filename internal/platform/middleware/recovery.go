package middleware

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/tenancy"
)

// Recovery converts handler panics into 500 responses. The log event carries
// the tenant and route so a crash can be traced back to the request that
// triggered it.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				stack := make([]byte, 8<<10)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				rid, _ := c.Get("request_id").(string)

				logger.Error().
					Str("request_id", rid).
					Str("tenant", tenancy.FromContext(req.Context()).String()).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Interface("panic", r).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
