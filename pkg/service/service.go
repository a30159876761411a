// Package service binds a guard and a manifest into the operations the
// outer surfaces (CLI, HTTP, MCP) expose. Values arrive as JSON or YAML
// text and are decoded against the declared descriptor.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/internal/wire"
	"github.com/aretw0/contract/pkg/manifest"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/aretw0/contract/pkg/registry"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/google/uuid"
)

var (
	// ErrNotFound reports an unknown contract name.
	ErrNotFound = errors.New("contract not found")
	// ErrNoJournal reports that violations are not being recorded.
	ErrNoJournal = errors.New("no violation journal configured")
)

// Result is the outcome of a check. A violation is a result, not an error.
type Result struct {
	Valid     bool              `json:"valid"`
	Message   string            `json:"message,omitempty"`
	Violation *schema.Violation `json:"violation,omitempty"`
}

// RunResult is the outcome of Run.
type RunResult struct {
	Result
	Value any `json:"value,omitempty"`
}

// ParamInfo describes one compiled binding.
type ParamInfo struct {
	Name       string      `json:"name"`
	Annotation string      `json:"annotation"`
	Descriptor schema.Node `json:"descriptor"`
}

// ContractInfo describes one compiled contract.
type ContractInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Params      []ParamInfo `json:"params"`
	Returns     *ParamInfo  `json:"returns,omitempty"`
}

// ContractCheck carries encoded values for a contract. Args are checked
// positionally, Named by parameter name and Returns, when set, as the result.
type ContractCheck struct {
	Args    [][]byte
	Named   map[string][]byte
	Returns []byte
}

// Service runs checks for the outer surfaces. It is safe for concurrent
// use, including Reload while checks are running.
type Service struct {
	mu        sync.RWMutex
	guard     *contract.Guard
	manifest  *manifest.Manifest
	contracts map[string]*contract.Contract
	journal   ports.Journal
	impls     map[string]registry.Function
	registry  *registry.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithJournal exposes the violations recorded in j through Violations.
// Recording itself is wired on the guard with observability.JournalHooks.
func WithJournal(j ports.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithImplementations makes each function runnable through Run under the
// contract of the same name.
func WithImplementations(impls map[string]registry.Function) Option {
	return func(s *Service) {
		s.impls = impls
	}
}

// New compiles every contract of m with g. A nil manifest means no
// named contracts.
func New(g *contract.Guard, m *manifest.Manifest, opts ...Option) (*Service, error) {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(g, m); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload compiles m with g and swaps them in. On error the service keeps
// serving the previous contracts.
func (s *Service) Reload(g *contract.Guard, m *manifest.Manifest) error {
	if m == nil {
		m = &manifest.Manifest{}
	}
	contracts, err := m.Compile(g)
	if err != nil {
		return err
	}
	impls := make(map[string]registry.Function, len(s.impls))
	for name, fn := range s.impls {
		impls[name] = reshaped(contracts[name], fn)
	}
	reg := registry.NewRegistry()
	if err := reg.Bind(contracts, impls); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.guard, s.manifest, s.contracts, s.registry = g, m.Clone(), contracts, reg
	return nil
}

// Guard returns the guard used for every check.
func (s *Service) Guard() *contract.Guard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guard
}

// Parse describes an annotation.
func (s *Service) Parse(annotation string) (schema.Node, error) {
	d, err := s.Guard().Parser().ParseString(annotation)
	if err != nil {
		return schema.Node{}, err
	}
	return d.Describe(), nil
}

// Check decodes raw against annotation and validates it under name.
func (s *Service) Check(ctx context.Context, name, annotation string, raw []byte) (Result, error) {
	if name == "" {
		name = "value"
	}
	g := s.Guard()
	d, err := g.Parser().ParseString(annotation)
	if err != nil {
		return Result{}, err
	}
	value, err := wire.Decode(raw, d)
	if err != nil {
		return Result{}, err
	}
	return result(g.Check(ctx, name, annotation, value))
}

// Contracts describes the compiled contracts in manifest order.
func (s *Service) Contracts() []ContractInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ContractInfo, 0, len(s.contracts))
	for _, e := range s.manifest.Contracts {
		c, ok := s.contracts[e.Name]
		if !ok {
			continue
		}
		info := ContractInfo{Name: e.Name, Description: e.Description}
		for _, b := range c.Bindings() {
			info.Params = append(info.Params, paramInfo(b))
		}
		if b, ok := c.Returns(); ok {
			ret := paramInfo(b)
			info.Returns = &ret
		}
		infos = append(infos, info)
	}
	return infos
}

// Contract returns the description of one contract.
func (s *Service) Contract(name string) (ContractInfo, error) {
	for _, info := range s.Contracts() {
		if info.Name == name {
			return info, nil
		}
	}
	return ContractInfo{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// CheckContract validates encoded arguments and an optional result
// against the named contract.
func (s *Service) CheckContract(ctx context.Context, name string, req ContractCheck) (Result, error) {
	s.mu.RLock()
	c, ok := s.contracts[name]
	s.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if _, ok := contract.CallID(ctx); !ok {
		ctx = contract.WithCallID(ctx, uuid.NewString())
	}

	bindings := c.Bindings()
	args := make([]any, len(req.Args))
	for i, raw := range req.Args {
		var d *schema.Descriptor
		if i < len(bindings) {
			d = bindings[i].Descriptor
		}
		v, err := wire.Decode(raw, d)
		if err != nil {
			return Result{}, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	if err := c.CheckArgs(ctx, args...); err != nil {
		return result(err)
	}

	named := make(map[string]any, len(req.Named))
	for key, raw := range req.Named {
		b, _ := c.Lookup(key)
		v, err := wire.Decode(raw, b.Descriptor)
		if err != nil {
			return Result{}, fmt.Errorf("argument %s: %w", key, err)
		}
		named[key] = v
	}
	if err := c.CheckNamed(ctx, named); err != nil {
		return result(err)
	}

	if req.Returns != nil {
		b, _ := c.Returns()
		v, err := wire.Decode(req.Returns, b.Descriptor)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", contract.ReturnName, err)
		}
		return result(c.CheckReturn(ctx, v))
	}
	return Result{Valid: true}, nil
}

// Run decodes named arguments against the contract, then runs its
// implementation through the registry. Value carries the implementation's
// result whenever it ran, including when that result violates the contract.
func (s *Service) Run(ctx context.Context, name string, named map[string][]byte) (RunResult, error) {
	s.mu.RLock()
	c, ok := s.contracts[name]
	reg := s.registry
	s.mu.RUnlock()
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if _, ok := contract.CallID(ctx); !ok {
		ctx = contract.WithCallID(ctx, uuid.NewString())
	}

	args := make(map[string]any, len(named))
	for key, raw := range named {
		b, _ := c.Lookup(key)
		v, err := wire.Decode(raw, b.Descriptor)
		if err != nil {
			return RunResult{}, fmt.Errorf("argument %s: %w", key, err)
		}
		args[key] = v
	}

	out, err := reg.Execute(ctx, name, args)
	res, err := result(err)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Result: res, Value: out}, nil
}

// Violations returns up to limit recorded violations, newest first.
func (s *Service) Violations(ctx context.Context, limit int) ([]ports.Entry, error) {
	if s.journal == nil {
		return nil, ErrNoJournal
	}
	return s.journal.Recent(ctx, limit)
}

// result turns a violation into a failed Result and passes other errors on.
func result(err error) (Result, error) {
	if err == nil {
		return Result{Valid: true}, nil
	}
	if v, ok := schema.AsViolation(err); ok {
		return Result{Valid: false, Message: err.Error(), Violation: v}, nil
	}
	return Result{}, err
}

// reshaped decodes tuples in fn's result the way wire.Decode does for
// arguments, since implementations answering in JSON cannot produce them.
func reshaped(c *contract.Contract, fn registry.Function) registry.Function {
	if c == nil {
		return fn
	}
	ret, ok := c.Returns()
	if !ok {
		return fn
	}
	return func(ctx context.Context, args map[string]any) (any, error) {
		out, err := fn(ctx, args)
		return wire.Reshape(out, ret.Descriptor), err
	}
}

func paramInfo(b contract.Binding) ParamInfo {
	return ParamInfo{Name: b.Name, Annotation: b.Annotation, Descriptor: b.Descriptor.Describe()}
}
