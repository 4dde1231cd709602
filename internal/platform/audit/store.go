package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medrec/medrec/internal/platform/tenancy"
)

// Filter narrows a ledger query. Zero-valued fields match everything.
type Filter struct {
	Tenant       tenancy.Namespace
	ActorID      string
	Action       Action
	ResourceType string
	ResourceID   *uuid.UUID
	From         *time.Time
	To           *time.Time
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Result is one page of ledger entries with the totals callers need for
// stable pagination.
type Result struct {
	Entries   []*Entry `json:"entries"`
	Total     int      `json:"total"`
	Page      int      `json:"page"`
	PageSize  int      `json:"page_size"`
	PageCount int      `json:"page_count"`
}

// Store persists ledger entries. The interface is deliberately append-only:
// there is no update or delete, not even a privileged one.
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
	Query(ctx context.Context, f Filter, p Page) (*Result, error)
}

func (f Filter) matches(e *Entry) bool {
	if f.Tenant != "" && e.Tenant != f.Tenant {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != nil && (e.ResourceID == nil || *e.ResourceID != *f.ResourceID) {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

func pageCount(total, size int) int {
	if total == 0 {
		return 0
	}
	return (total + size - 1) / size
}

// MemoryStore is an in-process append-only store used in tests and
// single-node development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, entry *Entry) error {
	cp := *entry
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter, p Page) (*Result, error) {
	p = normalizePage(p)

	s.mu.RLock()
	var matched []*Entry
	for _, e := range s.entries {
		if f.matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	// Newest first; ULIDs sort by creation time.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := (p.Number - 1) * p.Size
	if start > total {
		start = total
	}
	end := start + p.Size
	if end > total {
		end = total
	}

	return &Result{
		Entries:   matched[start:end],
		Total:     total,
		Page:      p.Number,
		PageSize:  p.Size,
		PageCount: pageCount(total, p.Size),
	}, nil
}

// Len returns the number of entries written so far.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func normalizePage(p Page) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}
