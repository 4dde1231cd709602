// Package audit is the append-only ledger every PHI-relevant operation must
// write to. The package exposes no update or delete operation: once recorded,
// an entry cannot be altered by any code path in the system.
package audit

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/medrec/medrec/internal/platform/tenancy"
)

// Action classifies what happened to a PHI resource.
type Action string

const (
	ActionCreate               Action = "create"
	ActionRead                 Action = "read"
	ActionUpdate               Action = "update"
	ActionDelete               Action = "delete"
	ActionSign                 Action = "sign"
	ActionWithdraw             Action = "withdraw"
	ActionBreakGlassActivate   Action = "break_glass_activate"
	ActionBreakGlassDeactivate Action = "break_glass_deactivate"
	ActionLogin                Action = "login"
	ActionLogout               Action = "logout"
	ActionExport               Action = "export"
)

var validActions = map[Action]bool{
	ActionCreate:               true,
	ActionRead:                 true,
	ActionUpdate:               true,
	ActionDelete:               true,
	ActionSign:                 true,
	ActionWithdraw:             true,
	ActionBreakGlassActivate:   true,
	ActionBreakGlassDeactivate: true,
	ActionLogin:                true,
	ActionLogout:               true,
	ActionExport:               true,
}

// Valid reports whether the action is one of the known audit actions.
func (a Action) Valid() bool {
	return validActions[a]
}

// Entry is an immutable audit record. IDs are ULIDs: unique and
// lexicographically ordered by creation time, so two entries written within
// the same millisecond for the same tenant never conflate.
type Entry struct {
	ID           string            `db:"id" json:"id"`
	Tenant       tenancy.Namespace `db:"tenant" json:"tenant"`
	ActorID      string            `db:"actor_id" json:"actor_id"`
	Action       Action            `db:"action" json:"action"`
	ResourceType string            `db:"resource_type" json:"resource_type"`
	ResourceID   *uuid.UUID        `db:"resource_id" json:"resource_id,omitempty"`
	Details      map[string]any    `db:"details" json:"details"`
	Origin       string            `db:"origin" json:"origin,omitempty"`
	Agent        string            `db:"agent" json:"agent,omitempty"`
	OccurredAt   time.Time         `db:"occurred_at" json:"occurred_at"`
}

// Draft is the caller-supplied portion of an entry. The recorder fills in
// id, tenant, and timestamp at write time.
type Draft struct {
	ActorID      string
	Action       Action
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]any
	Origin       string
	Agent        string
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// newEntryID returns a sortable unique identifier for a ledger entry.
func newEntryID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
