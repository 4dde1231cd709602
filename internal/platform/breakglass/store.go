package breakglass

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// GrantStore holds live grants with TTL semantics. It is an injected
// capability, not a package-level singleton: a single-node deployment uses
// MemoryGrantStore, a multi-instance one plugs in a shared implementation
// (a distributed cache or a table with an expiry index) so every instance
// sees the same grants.
type GrantStore interface {
	// Put stores a grant.
	Put(grant *Grant)

	// FindActive returns the newest non-expired grant for the (actor,
	// subject) pair. Expired grants encountered during the scan are removed
	// atomically, so two concurrent readers can never both see a grant past
	// its expiry instant.
	FindActive(actorID string, subjectID uuid.UUID, now time.Time) (*Grant, bool)

	// Remove deletes a grant. It returns the grant only if it was present
	// and still active; removing an unknown or expired grant is a no-op.
	Remove(id uuid.UUID, now time.Time) (*Grant, bool)

	// Reauthenticate refreshes the grant's step-up timestamp if it is still
	// active.
	Reauthenticate(id uuid.UUID, now time.Time) bool

	// PurgeExpired drops every expired grant and returns how many were
	// removed. Expiry is otherwise lazy; a periodic sweep bounds growth.
	PurgeExpired(now time.Time) int
}

// MemoryGrantStore is a mutex-guarded in-process GrantStore.
type MemoryGrantStore struct {
	mu     sync.Mutex
	grants map[uuid.UUID]*Grant
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{
		grants: make(map[uuid.UUID]*Grant),
	}
}

func (s *MemoryGrantStore) Put(grant *Grant) {
	cp := *grant
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[cp.ID] = &cp
}

func (s *MemoryGrantStore) FindActive(actorID string, subjectID uuid.UUID, now time.Time) (*Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *Grant
	for id, g := range s.grants {
		if !g.Active(now) {
			delete(s.grants, id)
			continue
		}
		if g.ActorID != actorID || g.SubjectID != subjectID {
			continue
		}
		if found == nil || g.ActivatedAt.After(found.ActivatedAt) {
			found = g
		}
	}
	if found == nil {
		return nil, false
	}
	cp := *found
	return &cp, true
}

func (s *MemoryGrantStore) Remove(id uuid.UUID, now time.Time) (*Grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[id]
	if !ok {
		return nil, false
	}
	delete(s.grants, id)
	if !g.Active(now) {
		return nil, false
	}
	cp := *g
	return &cp, true
}

func (s *MemoryGrantStore) Reauthenticate(id uuid.UUID, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[id]
	if !ok || !g.Active(now) {
		return false
	}
	g.LastReauthenticatedAt = now
	return true
}

func (s *MemoryGrantStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, g := range s.grants {
		if !g.Active(now) {
			delete(s.grants, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of grants held, expired or not.
func (s *MemoryGrantStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}
