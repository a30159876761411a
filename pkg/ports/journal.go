package ports

import (
	"context"
	"time"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/google/uuid"
)

// Entry is one recorded violation.
type Entry struct {
	ID         string            `json:"id"`
	CallID     string            `json:"call_id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Function   string            `json:"function,omitempty"`
	Param      string            `json:"param"`
	Phase      contract.Phase    `json:"phase"`
	Annotation string            `json:"annotation"`
	Message    string            `json:"message"`
	Violation  *schema.Violation `json:"violation,omitempty"`
}

// NewEntry converts a failed check into a journal entry with a fresh id.
func NewEntry(e *contract.CheckEvent) Entry {
	entry := Entry{
		ID:         uuid.NewString(),
		CallID:     e.CallID,
		Timestamp:  e.Timestamp,
		Function:   e.Function,
		Param:      e.Param,
		Phase:      e.Phase,
		Annotation: e.Annotation,
	}
	if e.Err != nil {
		entry.Message = e.Err.Error()
		entry.Violation, _ = schema.AsViolation(e.Err)
	}
	return entry
}

// Journal defines the interface for recording violations.
// Implementations keep a bounded number of entries; the oldest are dropped first.
type Journal interface {
	// Record appends an entry.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, newest first. A limit <= 0 returns all of them.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
