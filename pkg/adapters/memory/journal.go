package memory

import (
	"context"
	"sync"

	"github.com/aretw0/contract/pkg/ports"
)

// DefaultCapacity bounds a Journal created without an explicit capacity.
const DefaultCapacity = 1000

// Journal implements ports.Journal in memory as a bounded ring.
// Safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	entries []ports.Entry
	next    int
	full    bool
}

// NewJournal creates a journal that keeps the last capacity entries.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{entries: make([]ports.Entry, capacity)}
}

// Record stores the entry, overwriting the oldest one when full.
func (j *Journal) Record(ctx context.Context, entry ports.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[j.next] = copyEntry(entry)
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]ports.Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	size := j.next
	if j.full {
		size = len(j.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]ports.Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.entries)) % len(j.entries)
		out = append(out, copyEntry(j.entries[idx]))
	}
	return out, nil
}

// Clear removes every entry.
func (j *Journal) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	clear(j.entries)
	j.next = 0
	j.full = false
	return nil
}

// copyEntry isolates the stored violation from the caller's pointer.
func copyEntry(e ports.Entry) ports.Entry {
	if e.Violation != nil {
		v := *e.Violation
		e.Violation = &v
	}
	return e
}
