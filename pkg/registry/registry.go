// Package registry keeps named implementations behind their contracts, so
// that callers which only know a name and keyword-style arguments (RPC
// handlers, agents, scripts) get the same checks as a wrapped Go function.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/contract"
	"github.com/google/uuid"
)

// ErrNotFound reports an unknown function name.
var ErrNotFound = errors.New("function not found")

// Function defines the signature for an implementation.
// It receives a context and a map of arguments, and returns a result or error.
type Function func(ctx context.Context, args map[string]any) (any, error)

type binding struct {
	contract *contract.Contract
	fn       Function
}

// Registry manages the available functions. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]binding
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]binding),
	}
}

// Register adds fn under the contract's name.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(c *contract.Contract, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[c.Name()] = binding{contract: c, fn: fn}
}

// Bind registers each implementation under the compiled contract of the
// same name. Implementations without a contract are reported together.
func (r *Registry) Bind(contracts map[string]*contract.Contract, impls map[string]Function) error {
	names := make([]string, 0, len(impls))
	for name := range impls {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		c, ok := contracts[name]
		if !ok {
			errs = append(errs, fmt.Errorf("bind %q: no contract declared", name))
			continue
		}
		r.Register(c, impls[name])
	}
	return errors.Join(errs...)
}

// Execute looks up a function by name, checks args against its contract,
// runs it and checks the result. The function is not run when an argument
// fails; an error returned by the function skips the result check.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	b, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if _, ok := contract.CallID(ctx); !ok {
		ctx = contract.WithCallID(ctx, uuid.NewString())
	}
	if err := b.contract.CheckNamed(ctx, args); err != nil {
		return nil, err
	}
	out, err := b.fn(ctx, args)
	if err != nil {
		return out, err
	}
	return out, b.contract.CheckReturn(ctx, out)
}

// Names lists the registered functions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
