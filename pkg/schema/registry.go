package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/xreflect"
)

// Registry resolves atomic type names to type identities.
// It is injected into the Parser so that resolution never depends on the
// caller's scope. Safe for concurrent use.
//
// Names live in an xreflect type store: "time.Time" is kept as type Time
// of package time, and the Go renderings "*T" and "[]T" of a registered
// name T resolve to the pointer and slice of its type.
type Registry struct {
	mu    sync.RWMutex
	types *xreflect.Types
	names map[reflect.Type]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		// An empty parent keeps xreflect's own builtins out: only
		// registered names resolve, and they are never swapped for one.
		types: xreflect.NewTypes(xreflect.WithRegistry(&xreflect.Types{})),
		names: make(map[reflect.Type]string),
	}
}

var builtinTypes = []struct {
	name  string
	rType reflect.Type
}{
	// Display names come first: the first name registered for a type is
	// the one used in messages.
	{"int", reflect.TypeOf(int(0))},
	{"str", reflect.TypeOf("")},
	{"float", reflect.TypeOf(float64(0))},
	{"bool", reflect.TypeOf(false)},
	{"bytes", reflect.TypeOf([]byte(nil))},
	{"complex", reflect.TypeOf(complex128(0))},
	{"Any", reflect.TypeOf((*any)(nil)).Elem()},
	{"object", reflect.TypeOf((*any)(nil)).Elem()},
	{"string", reflect.TypeOf("")},
	{"int8", reflect.TypeOf(int8(0))},
	{"int16", reflect.TypeOf(int16(0))},
	{"int32", reflect.TypeOf(int32(0))},
	{"int64", reflect.TypeOf(int64(0))},
	{"uint", reflect.TypeOf(uint(0))},
	{"uint8", reflect.TypeOf(uint8(0))},
	{"uint16", reflect.TypeOf(uint16(0))},
	{"uint32", reflect.TypeOf(uint32(0))},
	{"uint64", reflect.TypeOf(uint64(0))},
	{"float32", reflect.TypeOf(float32(0))},
	{"float64", reflect.TypeOf(float64(0))},
	{"complex64", reflect.TypeOf(complex64(0))},
	{"complex128", reflect.TypeOf(complex128(0))},
	{"rune", reflect.TypeOf(rune(0))},
	{"byte", reflect.TypeOf(byte(0))},
	{"any", reflect.TypeOf((*any)(nil)).Elem()},
	{"interface {}", reflect.TypeOf((*any)(nil)).Elem()},
	{"error", reflect.TypeOf((*error)(nil)).Elem()},
	{"time.Time", reflect.TypeOf(time.Time{})},
	{"time.Duration", reflect.TypeOf(time.Duration(0))},
}

// DefaultRegistry creates a registry preloaded with the builtin names
// (python-style "int", "str", "float", ... and the Go spellings).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, b := range builtinTypes {
		if err := r.Register(b.name, b.rType); err != nil {
			panic(fmt.Sprintf("schema: register builtin %q: %v", b.name, err))
		}
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the shared registry used when none is injected.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = DefaultRegistry()
	})
	return defaultRegistry
}

// Register binds name to t.
func (r *Registry) Register(name string, t reflect.Type) error {
	if name == "" {
		return fmt.Errorf("register: empty type name")
	}
	if t == nil {
		return fmt.Errorf("register %q: nil type", name)
	}
	if strings.ContainsAny(name, "[]*") {
		return fmt.Errorf("register %q: name must not be a type expression", name)
	}
	if t.Kind() == reflect.Pointer {
		return fmt.Errorf("register %q: pointer type %s resolves as \"*%s\"", name, t, t.Elem())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.types.Register(name, xreflect.WithReflectType(t)); err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}
	if _, ok := r.names[t]; !ok {
		r.names[t] = name
	}
	return nil
}

// RegisterValue binds name to the dynamic type of sample.
func (r *Registry) RegisterValue(name string, sample any) error {
	return r.Register(name, reflect.TypeOf(sample))
}

// Alias makes alias resolve to the type currently bound to existing.
func (r *Registry) Alias(alias, existing string) error {
	t, ok := r.Lookup(existing)
	if !ok {
		return fmt.Errorf("alias %q: %w: %s", alias, ErrUnresolved, existing)
	}
	return r.Register(alias, t)
}

// Lookup resolves a registered name, or a "*T" or "[]T" rendering of one.
func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.types.Has(name) {
		return nil, false
	}
	t, err := r.types.Lookup(name)
	if err != nil || t == nil {
		return nil, false
	}
	return t, true
}

// NameOf returns the display name for t: the first name it was registered
// under, or its Go rendering.
func (r *Registry) NameOf(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if name, ok := r.nameFor(t); ok {
		return name
	}
	return t.String()
}

func (r *Registry) nameFor(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[t]
	return name, ok
}

// Names lists every registered name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, pkgName := range r.types.PackageNames() {
		pkg := r.types.Package(pkgName)
		if pkg == nil {
			continue
		}
		for _, name := range pkg.TypeNames() {
			if pkgName != "" {
				name = pkgName + "." + name
			}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
