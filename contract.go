package contract

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/contract/internal/logging"
	"github.com/aretw0/contract/pkg/schema"
)

// Guard is the high-level entry point of the library.
// It owns the parser, the validator and the observability wiring that
// every compiled Contract shares.
type Guard struct {
	registry  *schema.Registry
	cache     *schema.Cache
	parser    *schema.Parser
	validator *schema.Validator
	hooks     Hooks
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Guard.
type Option func(*Guard)

// WithRegistry resolves atomic type names through r instead of the default registry.
func WithRegistry(r *schema.Registry) Option {
	return func(g *Guard) {
		g.registry = r
	}
}

// WithCache memoizes parsed annotations in c. The cache must not be shared
// with a guard that uses a different registry.
func WithCache(c *schema.Cache) Option {
	return func(g *Guard) {
		g.cache = c
	}
}

// WithLogger sets a custom structured logger for the guard.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithHooks registers observability hooks. Repeated calls chain the hooks.
func WithHooks(hooks Hooks) Option {
	return func(g *Guard) {
		g.hooks = Chain(g.hooks, hooks)
	}
}

var defaultCache = schema.NewCache()

// New creates a Guard. Without options it uses the default registry, a
// process-wide descriptor cache and a no-op logger.
func New(opts ...Option) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}

	if g.registry == nil {
		g.registry = schema.Default()
		if g.cache == nil {
			g.cache = defaultCache
		}
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}

	parserOpts := []schema.ParserOption{schema.WithRegistry(g.registry)}
	if g.cache != nil {
		parserOpts = append(parserOpts, schema.WithCache(g.cache))
	}
	g.parser = schema.NewParser(parserOpts...)
	g.validator = schema.NewValidator(g.registry)
	return g
}

var defaultGuard = sync.OnceValue(func() *Guard { return New() })

// Default returns the shared Guard used by MustWrap.
func Default() *Guard {
	return defaultGuard()
}

// Parser exposes the guard's annotation parser.
func (g *Guard) Parser() *schema.Parser { return g.parser }

// Registry exposes the guard's atomic type registry.
func (g *Guard) Registry() *schema.Registry { return g.registry }

// Check validates a single value against an annotation outside of any
// contract. It is what the CLI and the adapters use for ad hoc checks.
func (g *Guard) Check(ctx context.Context, name string, annotation any, value any) error {
	d, err := g.parser.Parse(annotation)
	if err != nil {
		return err
	}
	return g.check(ctx, "", PhaseArgument, Binding{Name: name, Annotation: annotationText(annotation, d), Descriptor: d}, value)
}

func (g *Guard) check(ctx context.Context, function string, phase Phase, b Binding, value any) error {
	if b.Descriptor == nil {
		return nil
	}
	ctx = ensureCallID(ctx)
	callID, _ := CallID(ctx)

	start := time.Now()
	err := g.validator.Validate(schema.NewContext(b.Name, value, b.Descriptor))
	event := &CheckEvent{
		CallID:     callID,
		Timestamp:  start,
		Function:   function,
		Param:      b.Name,
		Phase:      phase,
		Annotation: b.Annotation,
		Err:        err,
		Duration:   time.Since(start),
	}

	if g.hooks.OnCheck != nil {
		g.hooks.OnCheck(ctx, event)
	}
	if err != nil {
		g.logger.Warn("contract violation",
			"function", function,
			"param", b.Name,
			"phase", phase,
			"annotation", b.Annotation,
			"error", err,
		)
		if g.hooks.OnViolation != nil {
			g.hooks.OnViolation(ctx, event)
		}
		return err
	}

	g.logger.Debug("contract check passed",
		"function", function,
		"param", b.Name,
		"phase", phase,
		"annotation", b.Annotation,
	)
	return nil
}
