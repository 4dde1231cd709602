package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	UserRolesKey   contextKey = "user_roles"
	TenantClaimKey contextKey = "tenant_claim"
)

// Claims is the decoded principal. The token signature is verified here; the
// tenant claim's format is still re-validated downstream by the tenant
// resolver (defense in depth).
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
}

// Verifier validates bearer tokens with an HMAC secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// Parse verifies the token signature and issuer and returns its claims.
func (v *Verifier) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// Middleware returns echo middleware that decodes the Authorization bearer
// token and stores the principal (subject, roles, tenant claim) in the
// request context. Requests without a token pass through unauthenticated;
// route-level gates and the tenant resolver decide whether that is fatal.
func Middleware(v *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return next(c)
			}

			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			claims, err := v.Parse(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRolesKey, claims.Roles)
			ctx = context.WithValue(ctx, TenantClaimKey, claims.TenantID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireRole returns middleware rejecting requests whose principal lacks the
// given role. Role checks are plain string equality; the compliance core does
// not implement a general RBAC engine.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if UserIDFromContext(ctx) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range RolesFromContext(ctx) {
				if r == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("role %q required", role))
		}
	}
}

// UserIDFromContext returns the authenticated subject id, or "".
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// RolesFromContext returns the principal's roles.
func RolesFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(UserRolesKey).([]string)
	return v
}

// TenantClaimFromContext returns the raw, unvalidated tenant claim.
func TenantClaimFromContext(ctx context.Context) string {
	v, _ := ctx.Value(TenantClaimKey).(string)
	return v
}
