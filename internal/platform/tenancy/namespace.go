package tenancy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Namespace identifies one tenant's isolated storage partition (a Postgres
// schema). A Namespace is only ever constructed through FromClaim or
// Validate; raw claim strings never reach SQL.
type Namespace string

func (n Namespace) String() string { return string(n) }

const (
	namespacePrefix = "tenant_"
	maxNamespaceLen = 63 // Postgres identifier limit
)

// Identifier grammar: letters, digits, underscore; must not start with a digit.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var (
	// ErrMissingTenantClaim means an authenticated route was reached without a
	// tenant claim. Resolution fails closed: the request is rejected rather
	// than downgraded to the default namespace.
	ErrMissingTenantClaim = errors.New("tenancy: missing tenant claim")

	// ErrInvalidNamespace means the tenant claim produced a namespace that
	// fails the identifier grammar. A malformed claim is an authorization
	// failure, never a quiet fallback.
	ErrInvalidNamespace = errors.New("tenancy: invalid namespace")
)

// Validate checks a namespace against the identifier grammar. Validation is
// idempotent: a namespace that passed once always passes again.
func Validate(ns string) error {
	if ns == "" || len(ns) > maxNamespaceLen {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	if !namespacePattern.MatchString(ns) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	return nil
}

// FromClaim derives a namespace from a raw tenant claim: the claim (typically
// a tenant UUID) is prefixed and its separators replaced, then validated. An
// empty claim fails with ErrMissingTenantClaim.
func FromClaim(claim string) (Namespace, error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return "", ErrMissingTenantClaim
	}

	ns := namespacePrefix + strings.ReplaceAll(claim, "-", "_")
	if err := Validate(ns); err != nil {
		return "", err
	}
	return Namespace(ns), nil
}

type contextKey string

const namespaceKey contextKey = "tenant_namespace"

// WithNamespace returns a context carrying the resolved namespace. The value
// is request-scoped: concurrent requests from different tenants each carry
// their own.
func WithNamespace(ctx context.Context, ns Namespace) context.Context {
	return context.WithValue(ctx, namespaceKey, ns)
}

// FromContext returns the namespace resolved for the current request, or ""
// when resolution has not run.
func FromContext(ctx context.Context) Namespace {
	ns, _ := ctx.Value(namespaceKey).(Namespace)
	return ns
}
