package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/tenancy"
)

func tenantContext(t *testing.T) context.Context {
	t.Helper()
	return tenancy.WithNamespace(context.Background(), "tenant_acme")
}

func TestRecord(t *testing.T) {
	store := NewMemoryStore()
	r := NewRecorder(store, zerolog.Nop())
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	r.nowFn = func() time.Time { return fixed }

	entry, err := r.Record(tenantContext(t), Draft{
		ActorID:      "user-1",
		Action:       ActionCreate,
		ResourceType: "patient",
		Details:      map[string]any{"mrn": "MRN-1"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if entry.Tenant != "tenant_acme" {
		t.Fatalf("tenant = %q", entry.Tenant)
	}
	if entry.ID == "" {
		t.Fatal("entry id not assigned")
	}
	if !entry.OccurredAt.Equal(fixed) {
		t.Fatalf("occurred_at = %v, want %v", entry.OccurredAt, fixed)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d entries, want 1", store.Len())
	}
}

func TestRecordRequiresTenant(t *testing.T) {
	r := NewRecorder(NewMemoryStore(), zerolog.Nop())

	_, err := r.Record(context.Background(), Draft{
		ActorID:      "user-1",
		Action:       ActionRead,
		ResourceType: "patient",
	})
	if !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}
}

func TestRecordRejectsInvalidDraft(t *testing.T) {
	r := NewRecorder(NewMemoryStore(), zerolog.Nop())
	ctx := tenantContext(t)

	t.Run("unknown action", func(t *testing.T) {
		if _, err := r.Record(ctx, Draft{Action: "modify", ResourceType: "patient"}); err == nil {
			t.Fatal("expected error for unknown action")
		}
	})

	t.Run("missing resource type", func(t *testing.T) {
		if _, err := r.Record(ctx, Draft{Action: ActionRead}); err == nil {
			t.Fatal("expected error for missing resource type")
		}
	})
}

func TestRecordPropagatesStoreFailure(t *testing.T) {
	r := NewRecorder(failingStore{}, zerolog.Nop())

	_, err := r.Record(tenantContext(t), Draft{
		Action:       ActionUpdate,
		ResourceType: "patient",
	})
	if err == nil {
		t.Fatal("transactional record must propagate store failure")
	}
}

func TestRecordBestEffortSwallowsFailure(t *testing.T) {
	r := NewRecorder(failingStore{}, zerolog.Nop())

	// Must not panic or propagate; failure surfaces in logs and metrics only.
	r.RecordBestEffort(tenantContext(t), Draft{
		Action:       ActionRead,
		ResourceType: "patient",
	})
}

func TestRecordBestEffortWrites(t *testing.T) {
	store := NewMemoryStore()
	r := NewRecorder(store, zerolog.Nop())

	r.RecordBestEffort(tenantContext(t), Draft{
		ActorID:      "user-1",
		Action:       ActionRead,
		ResourceType: "patient",
	})
	if store.Len() != 1 {
		t.Fatalf("store has %d entries, want 1", store.Len())
	}
}

func TestBoundDetails(t *testing.T) {
	t.Run("nil becomes empty map", func(t *testing.T) {
		d := boundDetails(nil)
		if d == nil || len(d) != 0 {
			t.Fatalf("got %v", d)
		}
	})

	t.Run("oversized value truncated", func(t *testing.T) {
		d := boundDetails(map[string]any{"note": strings.Repeat("x", maxDetailValueLen+100)})
		if len(d["note"].(string)) != maxDetailValueLen {
			t.Fatalf("value length = %d", len(d["note"].(string)))
		}
	})

	t.Run("excess keys dropped", func(t *testing.T) {
		in := make(map[string]any, maxDetailKeys*2)
		for i := 0; i < maxDetailKeys*2; i++ {
			in[strings.Repeat("k", i+1)] = i
		}
		d := boundDetails(in)
		if len(d) > maxDetailKeys+1 {
			t.Fatalf("bounded map has %d keys", len(d))
		}
		if d["_truncated"] != true {
			t.Fatal("truncation marker missing")
		}
	})
}

type failingStore struct{}

func (failingStore) Insert(context.Context, *Entry) error { return errors.New("store down") }
func (failingStore) Query(context.Context, Filter, Page) (*Result, error) {
	return nil, errors.New("store down")
}
