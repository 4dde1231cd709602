package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/tenancy"
)

// ErrNoTenant means an audit write was attempted before tenant resolution.
// The resolver must complete first so every entry carries its tenant.
var ErrNoTenant = errors.New("audit: no tenant resolved in context")

// Details payloads are free-form but bounded.
const (
	maxDetailKeys     = 32
	maxDetailValueLen = 4096
)

// Recorder writes ledger entries through two deliberately different paths:
//
//   - Record is transactional. It writes on the request's unit of work, and a
//     failure propagates so the caller rolls back: a PHI mutation without its
//     audit entry must never commit.
//   - RecordBestEffort is for coarse per-request interception. A failure is
//     logged and counted but never propagated, so a ledger outage cannot
//     become a PHI availability outage.
type Recorder struct {
	store  Store
	logger zerolog.Logger
	nowFn  func() time.Time
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger,
		nowFn:  time.Now,
	}
}

// Record writes an entry within the caller's unit of work and returns it.
// The tenant comes from the request context; calling before tenant
// resolution is an error.
func (r *Recorder) Record(ctx context.Context, d Draft) (*Entry, error) {
	entry, err := r.build(ctx, d)
	if err != nil {
		recordFailures.WithLabelValues(pathTransactional).Inc()
		return nil, err
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		recordFailures.WithLabelValues(pathTransactional).Inc()
		return nil, fmt.Errorf("audit: transactional write: %w", err)
	}

	recordsTotal.WithLabelValues(pathTransactional, string(entry.Action)).Inc()
	return entry, nil
}

// RecordBestEffort writes an entry on an independent unit of work. It never
// returns an error; failures surface only in logs and metrics.
func (r *Recorder) RecordBestEffort(ctx context.Context, d Draft) {
	entry, err := r.build(ctx, d)
	if err == nil {
		err = r.store.Insert(ctx, entry)
	}
	if err != nil {
		recordFailures.WithLabelValues(pathBestEffort).Inc()
		r.logger.Error().Err(err).
			Str("action", string(d.Action)).
			Str("resource_type", d.ResourceType).
			Msg("best-effort audit write failed")
		return
	}
	recordsTotal.WithLabelValues(pathBestEffort, string(entry.Action)).Inc()
}

func (r *Recorder) build(ctx context.Context, d Draft) (*Entry, error) {
	tenant := tenancy.FromContext(ctx)
	if tenant == "" {
		return nil, ErrNoTenant
	}
	if !d.Action.Valid() {
		return nil, fmt.Errorf("audit: unknown action %q", d.Action)
	}
	if d.ResourceType == "" {
		return nil, fmt.Errorf("audit: resource type is required")
	}

	now := r.nowFn().UTC()
	return &Entry{
		ID:           newEntryID(now),
		Tenant:       tenant,
		ActorID:      d.ActorID,
		Action:       d.Action,
		ResourceType: d.ResourceType,
		ResourceID:   d.ResourceID,
		Details:      boundDetails(d.Details),
		Origin:       d.Origin,
		Agent:        d.Agent,
		OccurredAt:   now,
	}, nil
}

// boundDetails caps the payload so a caller cannot bloat the ledger. Extra
// keys are dropped, oversized string values truncated.
func boundDetails(details map[string]any) map[string]any {
	if details == nil {
		return map[string]any{}
	}

	bounded := make(map[string]any, len(details))
	for k, v := range details {
		if len(bounded) >= maxDetailKeys {
			bounded["_truncated"] = true
			break
		}
		if s, ok := v.(string); ok && len(s) > maxDetailValueLen {
			v = s[:maxDetailValueLen]
		}
		bounded[k] = v
	}
	return bounded
}
