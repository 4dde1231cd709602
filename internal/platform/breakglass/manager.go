package breakglass

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/audit"
)

// Manager drives the grant lifecycle: Activated → (reauth due every 30
// minutes) → Expired or Revoked. Expiry is wall-clock based and enforced
// lazily on every IsActive check.
type Manager struct {
	store    GrantStore
	recorder *audit.Recorder
	logger   zerolog.Logger
	nowFn    func() time.Time
}

func NewManager(store GrantStore, recorder *audit.Recorder, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		recorder: recorder,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// Activate issues a grant for the (actor, subject) pair. A zero duration
// means DefaultDuration; anything above MaxDuration is rejected. The
// activation is written to the audit ledger on the caller's unit of work
// before the grant becomes visible — an unaudited grant must not exist.
func (m *Manager) Activate(ctx context.Context, actorID string, subjectID uuid.UUID, reason string, duration time.Duration) (*Grant, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if duration == 0 {
		duration = DefaultDuration
	}
	if duration > MaxDuration {
		return nil, fmt.Errorf("%w: requested %s, maximum %s", ErrDurationExceedsMax, duration, MaxDuration)
	}
	if duration < 0 {
		return nil, fmt.Errorf("%w: negative duration", ErrDurationExceedsMax)
	}

	now := m.nowFn().UTC()
	grant := &Grant{
		ID:                    uuid.New(),
		ActorID:               actorID,
		SubjectID:             subjectID,
		Reason:                reason,
		ActivatedAt:           now,
		ExpiresAt:             now.Add(duration),
		LastReauthenticatedAt: now,
	}

	entry, err := m.recorder.Record(ctx, audit.Draft{
		ActorID:      actorID,
		Action:       audit.ActionBreakGlassActivate,
		ResourceType: "patient",
		ResourceID:   &subjectID,
		Details: map[string]any{
			"grant_id":         grant.ID.String(),
			"reason":           reason,
			"duration_minutes": int(duration / time.Minute),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("breakglass: audit activation: %w", err)
	}
	grant.Tenant = entry.Tenant

	m.store.Put(grant)

	m.logger.Warn().
		Str("grant_id", grant.ID.String()).
		Str("actor_id", actorID).
		Str("subject_id", subjectID.String()).
		Str("reason", reason).
		Time("expires_at", grant.ExpiresAt).
		Msg("break_glass_activated")

	return grant, nil
}

// IsActive returns the id of a live grant for the (actor, subject) pair, or
// false. Expired grants found during the check are purged.
func (m *Manager) IsActive(actorID string, subjectID uuid.UUID) (uuid.UUID, bool) {
	g, ok := m.store.FindActive(actorID, subjectID, m.nowFn().UTC())
	if !ok {
		return uuid.Nil, false
	}
	return g.ID, true
}

// Deactivate revokes a grant. Revoking an unknown or already-expired grant
// is a no-op, so revocation is idempotent; only an actual removal is
// audited.
func (m *Manager) Deactivate(ctx context.Context, grantID uuid.UUID, actorID string) error {
	g, removed := m.store.Remove(grantID, m.nowFn().UTC())
	if !removed {
		return nil
	}

	if _, err := m.recorder.Record(ctx, audit.Draft{
		ActorID:      actorID,
		Action:       audit.ActionBreakGlassDeactivate,
		ResourceType: "patient",
		ResourceID:   &g.SubjectID,
		Details: map[string]any{
			"grant_id": grantID.String(),
		},
	}); err != nil {
		return fmt.Errorf("breakglass: audit deactivation: %w", err)
	}

	m.logger.Info().
		Str("grant_id", grantID.String()).
		Str("actor_id", actorID).
		Msg("break_glass_deactivated")

	return nil
}

// Reauthenticate refreshes the grant's step-up deadline after the caller has
// re-verified the actor's credentials. Returns false if the grant is no
// longer active.
func (m *Manager) Reauthenticate(grantID uuid.UUID) bool {
	return m.store.Reauthenticate(grantID, m.nowFn().UTC())
}
