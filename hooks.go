package contract

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Phase tells whether a check ran on an argument or on a result.
type Phase string

const (
	PhaseArgument Phase = "argument"
	PhaseReturn   Phase = "return"
)

// CheckEvent describes one structural check.
type CheckEvent struct {
	// CallID is shared by the argument and return checks of one call.
	CallID     string        `json:"call_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Function   string        `json:"function,omitempty"`
	Param      string        `json:"param"`
	Phase      Phase         `json:"phase"`
	Annotation string        `json:"annotation"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// Failed reports whether the check produced an error.
func (e *CheckEvent) Failed() bool { return e.Err != nil }

// Hooks defines callbacks for guard observability.
// OnCheck fires for every check, OnViolation only for failed ones.
type Hooks struct {
	OnCheck     func(context.Context, *CheckEvent)
	OnViolation func(context.Context, *CheckEvent)
}

// Chain combines hooks so that each callback runs in argument order.
func Chain(hooks ...Hooks) Hooks {
	var out Hooks
	for _, h := range hooks {
		out.OnCheck = chain(out.OnCheck, h.OnCheck)
		out.OnViolation = chain(out.OnViolation, h.OnViolation)
	}
	return out
}

func chain(first, second func(context.Context, *CheckEvent)) func(context.Context, *CheckEvent) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ctx context.Context, e *CheckEvent) {
		first(ctx, e)
		second(ctx, e)
	}
}

type callIDKey struct{}

// WithCallID marks ctx so that every check made with it reports id.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallID returns the call id carried by ctx, if any.
func CallID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDKey{}).(string)
	return id, ok && id != ""
}

// ensureCallID gives ctx a fresh call id unless it already carries one.
func ensureCallID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := CallID(ctx); ok {
		return ctx
	}
	return WithCallID(ctx, uuid.NewString())
}
