package cache

import (
	"context"
	"sync"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/shared"
)

// DefaultSpoolCapacity bounds the in-memory spool
const DefaultSpoolCapacity = 10000

// ErrSpoolFull is returned when the in-memory spool cannot take more entries
var ErrSpoolFull = shared.NewDomainError("SPOOL_FULL", "Audit spool is full")

// InMemoryAuditSpool implements audit.Spool with a bounded FIFO queue.
// This is suitable for single-instance deployments and testing; spooled
// entries do not survive a restart.
type InMemoryAuditSpool struct {
	mu       sync.Mutex
	entries  []audit.Entry
	capacity int
}

// NewInMemoryAuditSpool creates a spool holding at most capacity entries.
// A non-positive capacity uses DefaultSpoolCapacity.
func NewInMemoryAuditSpool(capacity int) *InMemoryAuditSpool {
	if capacity <= 0 {
		capacity = DefaultSpoolCapacity
	}
	return &InMemoryAuditSpool{capacity: capacity}
}

// Push appends an entry
func (s *InMemoryAuditSpool) Push(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.capacity {
		return ErrSpoolFull
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Pop removes the oldest entry
func (s *InMemoryAuditSpool) Pop(_ context.Context) (audit.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return audit.Entry{}, false, nil
	}
	e := s.entries[0]
	s.entries[0] = audit.Entry{}
	s.entries = s.entries[1:]
	return e, true, nil
}

// Len returns the number of spooled entries
func (s *InMemoryAuditSpool) Len(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries)), nil
}

// Ensure InMemoryAuditSpool implements audit.Spool
var _ audit.Spool = (*InMemoryAuditSpool)(nil)
