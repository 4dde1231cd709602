package breakglass

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/audit"
	"github.com/medrec/medrec/internal/platform/tenancy"
)

type fixture struct {
	mgr   *Manager
	store *MemoryGrantStore
	audit *audit.MemoryStore
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewMemoryGrantStore(),
		audit: audit.NewMemoryStore(),
		now:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	recorder := audit.NewRecorder(f.audit, zerolog.Nop())
	f.mgr = NewManager(f.store, recorder, zerolog.Nop())
	f.mgr.nowFn = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) ctx() context.Context {
	return tenancy.WithNamespace(context.Background(), "tenant_acme")
}

func TestActivate(t *testing.T) {
	f := newFixture(t)
	subject := uuid.New()

	grant, err := f.mgr.Activate(f.ctx(), "dr-jones", subject, "cardiac arrest code team", 0)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if grant.Tenant != "tenant_acme" {
		t.Fatalf("tenant = %q", grant.Tenant)
	}
	if got := grant.ExpiresAt.Sub(grant.ActivatedAt); got != DefaultDuration {
		t.Fatalf("default duration = %v, want %v", got, DefaultDuration)
	}

	if _, active := f.mgr.IsActive("dr-jones", subject); !active {
		t.Fatal("grant should be active immediately after activation")
	}
	if f.audit.Len() != 1 {
		t.Fatalf("audit entries = %d, want 1", f.audit.Len())
	}
}

func TestActivateRequiresReason(t *testing.T) {
	f := newFixture(t)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := f.mgr.Activate(f.ctx(), "dr-jones", uuid.New(), reason, 0)
		if !errors.Is(err, ErrReasonRequired) {
			t.Fatalf("reason %q: expected ErrReasonRequired, got %v", reason, err)
		}
	}
	if f.audit.Len() != 0 {
		t.Fatal("rejected activations must not be audited as activations")
	}
}

func TestActivateRejectsExcessiveDuration(t *testing.T) {
	f := newFixture(t)

	// 241 minutes is one over the ceiling: rejected, not clamped.
	_, err := f.mgr.Activate(f.ctx(), "dr-jones", uuid.New(), "emergency", 241*time.Minute)
	if !errors.Is(err, ErrDurationExceedsMax) {
		t.Fatalf("expected ErrDurationExceedsMax, got %v", err)
	}

	_, err = f.mgr.Activate(f.ctx(), "dr-jones", uuid.New(), "emergency", -time.Minute)
	if !errors.Is(err, ErrDurationExceedsMax) {
		t.Fatalf("negative duration: expected ErrDurationExceedsMax, got %v", err)
	}

	// Exactly the maximum is allowed.
	grant, err := f.mgr.Activate(f.ctx(), "dr-jones", uuid.New(), "emergency", MaxDuration)
	if err != nil {
		t.Fatalf("activate at max: %v", err)
	}
	if got := grant.ExpiresAt.Sub(grant.ActivatedAt); got != MaxDuration {
		t.Fatalf("duration = %v, want %v", got, MaxDuration)
	}
}

func TestActivateFailsWithoutAudit(t *testing.T) {
	store := NewMemoryGrantStore()
	recorder := audit.NewRecorder(audit.NewMemoryStore(), zerolog.Nop())
	mgr := NewManager(store, recorder, zerolog.Nop())

	// No tenant in context: the ledger write fails, so no grant may exist.
	_, err := mgr.Activate(context.Background(), "dr-jones", uuid.New(), "emergency", 0)
	if err == nil {
		t.Fatal("expected activation to fail when audit write fails")
	}
	if store.Len() != 0 {
		t.Fatal("an unaudited grant must not be stored")
	}
}

func TestGrantExpires(t *testing.T) {
	f := newFixture(t)
	subject := uuid.New()

	if _, err := f.mgr.Activate(f.ctx(), "dr-jones", subject, "cardiac arrest code team", 0); err != nil {
		t.Fatalf("activate: %v", err)
	}

	f.advance(59 * time.Minute)
	if _, active := f.mgr.IsActive("dr-jones", subject); !active {
		t.Fatal("grant should still be active at 59 minutes")
	}

	f.advance(2 * time.Minute) // 61 minutes total
	if _, active := f.mgr.IsActive("dr-jones", subject); active {
		t.Fatal("grant should have expired after 61 minutes")
	}
	if f.store.Len() != 0 {
		t.Fatal("expired grant should be purged by the check")
	}
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t)
	subject := uuid.New()

	grant, err := f.mgr.Activate(f.ctx(), "dr-jones", subject, "emergency", 0)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := f.mgr.Deactivate(f.ctx(), grant.ID, "dr-jones"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, active := f.mgr.IsActive("dr-jones", subject); active {
		t.Fatal("grant should be inactive after deactivation")
	}
	if f.audit.Len() != 2 {
		t.Fatalf("audit entries = %d, want 2 (activate + deactivate)", f.audit.Len())
	}

	// Idempotent: a second deactivation is a no-op and adds no ledger entry.
	if err := f.mgr.Deactivate(f.ctx(), grant.ID, "dr-jones"); err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}
	if f.audit.Len() != 2 {
		t.Fatalf("audit entries = %d after repeat, want 2", f.audit.Len())
	}
}

func TestDeactivateUnknownGrant(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.Deactivate(f.ctx(), uuid.New(), "dr-jones"); err != nil {
		t.Fatalf("deactivating unknown grant should be a no-op, got %v", err)
	}
	if f.audit.Len() != 0 {
		t.Fatal("no-op deactivation must not be audited")
	}
}

func TestReauthenticate(t *testing.T) {
	f := newFixture(t)
	subject := uuid.New()

	grant, err := f.mgr.Activate(f.ctx(), "dr-jones", subject, "emergency", 2*time.Hour)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := grant.ReauthDeadline(); !got.Equal(f.now.Add(ReauthInterval)) {
		t.Fatalf("initial reauth deadline = %v", got)
	}

	f.advance(25 * time.Minute)
	if !f.mgr.Reauthenticate(grant.ID) {
		t.Fatal("reauthentication of an active grant should succeed")
	}

	// Deadline pushed forward from the reauthentication instant.
	g, ok := f.store.FindActive("dr-jones", subject, f.now)
	if !ok {
		t.Fatal("grant should still be active")
	}
	if !g.ReauthDeadline().Equal(f.now.Add(ReauthInterval)) {
		t.Fatalf("reauth deadline = %v, want %v", g.ReauthDeadline(), f.now.Add(ReauthInterval))
	}

	f.advance(2 * time.Hour)
	if f.mgr.Reauthenticate(grant.ID) {
		t.Fatal("reauthentication of an expired grant should fail")
	}
}

func TestGrantScopedToActorSubjectPair(t *testing.T) {
	f := newFixture(t)
	subject := uuid.New()

	if _, err := f.mgr.Activate(f.ctx(), "dr-jones", subject, "emergency", 0); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, active := f.mgr.IsActive("dr-smith", subject); active {
		t.Fatal("grant must not apply to a different actor")
	}
	if _, active := f.mgr.IsActive("dr-jones", uuid.New()); active {
		t.Fatal("grant must not apply to a different subject")
	}
}
