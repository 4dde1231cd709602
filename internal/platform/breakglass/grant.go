// Package breakglass issues and tracks time-bounded emergency access grants.
// A grant lets a clinician reach records outside their normal authorization
// scope; every activation and deactivation lands in the audit ledger.
package breakglass

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/platform/tenancy"
)

const (
	// DefaultDuration applies when activation does not request one.
	DefaultDuration = 60 * time.Minute

	// MaxDuration is the hard ceiling per HIPAA 164.312(a)(2)(ii) policy.
	// Requests above it are rejected outright, never clamped: silently
	// granting less than requested would mislead the caller on an
	// audit-sensitive action.
	MaxDuration = 240 * time.Minute

	// ReauthInterval is how often the caller must prompt for step-up
	// authentication while a grant is live. The manager only tracks the
	// deadline; it does not authenticate.
	ReauthInterval = 30 * time.Minute
)

var (
	// ErrReasonRequired rejects an activation without a stated reason.
	ErrReasonRequired = errors.New("breakglass: reason is required")

	// ErrDurationExceedsMax rejects an activation asking for more than
	// MaxDuration.
	ErrDurationExceedsMax = errors.New("breakglass: requested duration exceeds maximum")
)

// Grant is one emergency access window for an (actor, subject) pair.
type Grant struct {
	ID                    uuid.UUID         `json:"grant_id"`
	Tenant                tenancy.Namespace `json:"tenant"`
	ActorID               string            `json:"actor_id"`
	SubjectID             uuid.UUID         `json:"subject_resource_id"`
	Reason                string            `json:"reason"`
	ActivatedAt           time.Time         `json:"activated_at"`
	ExpiresAt             time.Time         `json:"expires_at"`
	LastReauthenticatedAt time.Time         `json:"last_reauthenticated_at"`
}

// Active reports whether the grant is still inside its window.
func (g *Grant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// ReauthDeadline is when the next step-up authentication prompt is due.
func (g *Grant) ReauthDeadline() time.Time {
	return g.LastReauthenticatedAt.Add(ReauthInterval)
}
