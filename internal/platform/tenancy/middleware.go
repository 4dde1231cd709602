package tenancy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
)

// Resolver derives the storage namespace for each request. Resolution is a
// pure function of the principal's tenant claim plus the fixed public-route
// list; the result lives only in the request context.
type Resolver struct {
	defaultNS      Namespace
	publicPrefixes []string
}

// NewResolver builds a Resolver. defaultTenant is the claim used for the
// shared/public partition (typically "default"); it must itself derive to a
// valid namespace.
func NewResolver(defaultTenant string, publicPrefixes []string) (*Resolver, error) {
	ns, err := FromClaim(defaultTenant)
	if err != nil {
		return nil, fmt.Errorf("tenancy: default tenant: %w", err)
	}
	return &Resolver{defaultNS: ns, publicPrefixes: publicPrefixes}, nil
}

// DefaultNamespace returns the namespace used for public routes.
func (r *Resolver) DefaultNamespace() Namespace {
	return r.defaultNS
}

// IsPublic reports whether the path is served from the default namespace
// without inspecting claims.
func (r *Resolver) IsPublic(path string) bool {
	for _, p := range r.publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Resolve maps a request path and raw tenant claim to a namespace. Public
// paths always get the default namespace. Everything else fails closed on a
// missing or malformed claim.
func (r *Resolver) Resolve(path, claim string) (Namespace, error) {
	if r.IsPublic(path) {
		return r.defaultNS, nil
	}
	return FromClaim(claim)
}

// Middleware resolves the tenant for every request, acquires a connection
// scoped to the tenant's schema, and attaches both to the request context.
// It must run after authentication and before anything that writes audit
// entries, so that every entry carries a correctly-resolved tenant.
func Middleware(r *Resolver, pool *pgxpool.Pool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			ns, err := r.Resolve(req.URL.Path, auth.TenantClaimFromContext(ctx))
			if err != nil {
				switch {
				case errors.Is(err, ErrMissingTenantClaim):
					return echo.NewHTTPError(http.StatusUnauthorized, "tenant claim required")
				case errors.Is(err, ErrInvalidNamespace):
					return echo.NewHTTPError(http.StatusForbidden, "invalid tenant claim")
				default:
					return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
				}
			}

			// Public paths (health, metrics) carry the default namespace but
			// never touch tenant storage, so they skip the connection acquire
			// entirely. Health checks and metric scrapes must not consume
			// pool slots.
			if r.IsPublic(req.URL.Path) {
				c.SetRequest(req.WithContext(WithNamespace(ctx, ns)))
				return next(c)
			}

			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			// The namespace passed the identifier grammar, so interpolating it
			// into SET search_path cannot inject.
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", ns)); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			ctx = WithNamespace(ctx, ns)
			ctx = db.WithQuerier(ctx, conn)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
