package contract

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/aretw0/contract/pkg/schema"
)

// ErrSignature reports a declared-type table that does not fit the
// function it describes.
var ErrSignature = errors.New("invalid signature")

// ReturnName is the subject used in messages about results.
const ReturnName = "return"

// Param is one declared parameter. A nil Annotation leaves it unchecked.
type Param struct {
	Name       string `json:"name" yaml:"name"`
	Annotation any    `json:"type,omitempty" yaml:"type,omitempty"`
}

// Signature is the declared-type table of a function: ordered parameters
// plus an optional result annotation.
type Signature struct {
	Name   string  `json:"name" yaml:"name"`
	Params []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Return any     `json:"returns,omitempty" yaml:"returns,omitempty"`
}

// Params builds parameters from name/annotation pairs:
//
//	contract.Params("arg_a", "List[int]", "arg_b", "str")
//
// It panics when pairs has odd length or a name is not a string.
func Params(pairs ...any) []Param {
	if len(pairs)%2 != 0 {
		panic("contract.Params: odd number of arguments")
	}
	params := make([]Param, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("contract.Params: parameter name %v is %T, not string", pairs[i], pairs[i]))
		}
		params = append(params, Param{Name: name, Annotation: pairs[i+1]})
	}
	return params
}

// Binding is a compiled parameter: its name, the annotation as written and
// the parsed descriptor (nil when unchecked).
type Binding struct {
	Name       string
	Annotation string
	Descriptor *schema.Descriptor
}

// Checked reports whether values bound to b are validated at all.
func (b Binding) Checked() bool { return b.Descriptor != nil }

// Contract is a compiled Signature. It is immutable and safe for concurrent use.
type Contract struct {
	guard  *Guard
	name   string
	params []Binding
	index  map[string]int
	ret    *Binding
}

// Compile parses every annotation of sig once. Unreadable annotations and
// duplicate parameter names are reported together.
func (g *Guard) Compile(sig Signature) (*Contract, error) {
	c := &Contract{
		guard: g,
		name:  sig.Name,
		index: make(map[string]int, len(sig.Params)),
	}

	var errs []error
	for i, p := range sig.Params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		if _, dup := c.index[name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate parameter %q", ErrSignature, name))
		} else {
			c.index[name] = len(c.params)
		}

		d, err := g.parser.Parse(p.Annotation)
		if err != nil {
			errs = append(errs, fmt.Errorf("parameter %s: %w", name, err))
		}
		c.params = append(c.params, Binding{Name: name, Annotation: annotationText(p.Annotation, d), Descriptor: d})
	}

	if sig.Return != nil {
		d, err := g.parser.Parse(sig.Return)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ReturnName, err))
		}
		c.ret = &Binding{Name: ReturnName, Annotation: annotationText(sig.Return, d), Descriptor: d}
	}

	if err := schema.Join(errs); err != nil {
		return nil, fmt.Errorf("contract %s: %w", c.Name(), err)
	}
	g.logger.Debug("contract compiled", "function", c.Name(), "params", len(c.params), "returns", c.ret != nil)
	return c, nil
}

// Name returns the declared function name, or "<anonymous>".
func (c *Contract) Name() string {
	if c.name == "" {
		return "<anonymous>"
	}
	return c.name
}

// Bindings returns the compiled parameters in declaration order.
func (c *Contract) Bindings() []Binding {
	out := make([]Binding, len(c.params))
	copy(out, c.params)
	return out
}

// Returns returns the compiled result binding, if any.
func (c *Contract) Returns() (Binding, bool) {
	if c.ret == nil {
		return Binding{}, false
	}
	return *c.ret, true
}

// Lookup returns the binding of the named parameter.
func (c *Contract) Lookup(name string) (Binding, bool) {
	i, ok := c.index[name]
	if !ok {
		return Binding{}, false
	}
	return c.params[i], true
}

// CheckArgs validates positional arguments in order and returns the first
// violation. Arguments beyond the declared parameters are not checked, and
// neither are declared parameters that were not supplied.
func (c *Contract) CheckArgs(ctx context.Context, args ...any) error {
	ctx = ensureCallID(ctx)
	for i, arg := range args {
		if i >= len(c.params) {
			break
		}
		if err := c.guard.check(ctx, c.name, PhaseArgument, c.params[i], arg); err != nil {
			return err
		}
	}
	return nil
}

// CheckNamed validates keyword-style arguments. Parameters are visited in
// declaration order so the reported violation is deterministic; names
// that are not declared are ignored.
func (c *Contract) CheckNamed(ctx context.Context, args map[string]any) error {
	ctx = ensureCallID(ctx)
	for _, b := range c.params {
		value, ok := args[b.Name]
		if !ok {
			continue
		}
		if err := c.guard.check(ctx, c.name, PhaseArgument, b, value); err != nil {
			return err
		}
	}
	return nil
}

// CheckReturn validates a result. Without a declared result it always passes.
func (c *Contract) CheckReturn(ctx context.Context, value any) error {
	if c.ret == nil {
		return nil
	}
	return c.guard.check(ctx, c.name, PhaseReturn, *c.ret, value)
}

// Invoke checks args, calls fn with them unchanged and checks its result.
// fn is not called when an argument fails. A result failure is reported
// together with the result itself, since fn has already run; an error
// returned by fn skips the result check.
func (c *Contract) Invoke(ctx context.Context, fn func(args ...any) (any, error), args ...any) (any, error) {
	ctx = ensureCallID(ctx)
	if err := c.CheckArgs(ctx, args...); err != nil {
		return nil, err
	}
	out, err := fn(args...)
	if err != nil {
		return out, err
	}
	return out, c.CheckReturn(ctx, out)
}

// annotationText renders an annotation for logs and events.
func annotationText(annotation any, d *schema.Descriptor) string {
	switch a := annotation.(type) {
	case nil:
		return ""
	case string:
		return a
	case reflect.Type:
		return a.String()
	}
	if d != nil {
		return d.Name()
	}
	return fmt.Sprint(annotation)
}
