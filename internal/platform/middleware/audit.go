package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/audit"
	"github.com/medrec/medrec/internal/platform/auth"
)

// phiPrefixes is the fixed allowlist of route prefixes classified as
// PHI-relevant. Requests under these paths get exactly one automatic
// best-effort ledger entry; handlers add transactional entries of their own.
var phiPrefixes = []string{
	"/api/v1/patients",
	"/api/v1/encounters",
	"/api/v1/observations",
	"/api/v1/conditions",
	"/api/v1/allergies",
	"/api/v1/immunizations",
	"/api/v1/clinical-notes",
	"/api/v1/orders",
	"/api/v1/appointments",
	"/api/v1/consents",
}

// IsPHIPath reports whether the path falls under the PHI allowlist.
func IsPHIPath(path string) bool {
	for _, p := range phiPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Audit returns middleware that records a best-effort ledger entry for every
// PHI-classified request. It runs the handler first so the entry captures
// the response status; a write failure is contained inside the recorder and
// never fails the request.
//
// The tenancy middleware must run earlier in the chain, since the recorder
// refuses entries with no resolved tenant.
func Audit(recorder *audit.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !IsPHIPath(path) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}

			ctx := req.Context()
			recorder.RecordBestEffort(ctx, audit.Draft{
				ActorID:      auth.UserIDFromContext(ctx),
				Action:       methodToAction(req.Method),
				ResourceType: resourceTypeFromPath(path),
				Origin:       c.RealIP(),
				Agent:        req.UserAgent(),
				Details: map[string]any{
					"path":       path,
					"method":     req.Method,
					"status":     status,
					"elapsed_ms": time.Since(start).Milliseconds(),
				},
			})

			return err
		}
	}
}

func methodToAction(method string) audit.Action {
	switch method {
	case http.MethodGet, http.MethodHead:
		return audit.ActionRead
	case http.MethodPost:
		return audit.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return audit.ActionUpdate
	case http.MethodDelete:
		return audit.ActionDelete
	default:
		return audit.ActionRead
	}
}

// resourceTypeFromPath maps "/api/v1/patients/123" to "patients".
func resourceTypeFromPath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}
