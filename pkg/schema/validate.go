package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Context is the per-argument input to a check: the declared name, the
// runtime type tag, the value and the descriptor it must satisfy.
// It lives for a single check.
type Context struct {
	Name       string
	Type       reflect.Type
	Value      any
	Descriptor *Descriptor

	path string
}

// NewContext creates a context for value, tagging it with its runtime type.
func NewContext(name string, value any, d *Descriptor) *Context {
	return &Context{
		Name:       name,
		Type:       reflect.TypeOf(value),
		Value:      value,
		Descriptor: d,
	}
}

// nested derives the context for an element or entry of c.
func (c *Context) nested(suffix string, value any, d *Descriptor) *Context {
	child := NewContext(c.Name, value, d)
	child.path = c.path + suffix
	return child
}

// Validator checks runtime values against descriptors. It never mutates
// or converts the value it inspects.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator that names types through r.
// A nil registry means the Default one.
func NewValidator(r *Registry) *Validator {
	if r == nil {
		r = Default()
	}
	return &Validator{registry: r}
}

// Validate checks value against d with the default registry.
func Validate(name string, value any, d *Descriptor) error {
	return NewValidator(nil).Validate(NewContext(name, value, d))
}

// Validate returns nil when c.Value matches c.Descriptor and a *Violation
// describing the first mismatch otherwise. A nil descriptor is unchecked.
// An inconsistent descriptor is reported as an error wrapping ErrInconsistent
// before any value is inspected.
func (v *Validator) Validate(c *Context) error {
	if c == nil || c.Descriptor == nil {
		return nil
	}
	if err := c.Descriptor.check(); err != nil {
		return fmt.Errorf("validate %q: %w", c.Name, err)
	}
	return v.validate(c)
}

func (v *Validator) validate(c *Context) error {
	switch c.Descriptor.kind {
	case KindList:
		return v.validateList(c)
	case KindMapping:
		return v.validateMapping(c)
	case KindTuple:
		return v.validateTuple(c)
	default:
		return v.validateAtomic(c)
	}
}

func (v *Validator) validateList(c *Context) error {
	rv := reflect.ValueOf(c.Value)
	if shapeOf(rv) != KindList {
		return v.kindViolation(c, "list")
	}
	elem := c.Descriptor.subTypes[0]
	for i := 0; i < rv.Len(); i++ {
		if err := v.element(c, i, rv.Index(i), elem); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateTuple(c *Context) error {
	rv := reflect.ValueOf(c.Value)
	if shapeOf(rv) != KindTuple {
		return v.kindViolation(c, "tuple")
	}
	want := len(c.Descriptor.subTypes)
	if rv.Len() != want {
		return &Violation{
			Name:     c.Name,
			Path:     c.path,
			Rule:     RuleLength,
			Index:    -1,
			Actual:   strconv.Itoa(rv.Len()),
			Expected: strconv.Itoa(want),
		}
	}
	for i, sub := range c.Descriptor.subTypes {
		if err := v.element(c, i, rv.Index(i), sub); err != nil {
			return err
		}
	}
	return nil
}

// element checks one positional item: recursively for nested generics,
// by assignability for atomic sub-types.
func (v *Validator) element(c *Context, i int, rv reflect.Value, d *Descriptor) error {
	item := rv.Interface()
	if d.kind != KindAtomic {
		return v.validate(c.nested("["+strconv.Itoa(i)+"]", item, d))
	}
	if compatible(item, d.rType) {
		return nil
	}
	return &Violation{
		Name:     c.Name,
		Path:     c.path,
		Rule:     RuleElement,
		Index:    i,
		Actual:   v.typeName(item),
		Expected: d.name,
	}
}

func (v *Validator) validateMapping(c *Context) error {
	rv := reflect.ValueOf(c.Value)
	if shapeOf(rv) != KindMapping {
		return v.kindViolation(c, "dict")
	}
	keyType, valueType := c.Descriptor.subTypes[0], c.Descriptor.subTypes[1]
	for _, e := range sortedEntries(rv) {
		k, val := e.key, e.value
		suffix := "[" + fmt.Sprintf("%#v", k) + "]"

		keyOK := keyType.kind != KindAtomic || identical(k, keyType.rType)
		valueOK := valueType.kind != KindAtomic || identical(val, valueType.rType)
		if !keyOK || !valueOK {
			return &Violation{
				Name:        c.Name,
				Path:        c.path,
				Rule:        RuleEntry,
				Index:       -1,
				ActualKey:   v.typeName(k),
				Actual:      v.typeName(val),
				ExpectedKey: keyType.Name(),
				Expected:    valueType.Name(),
			}
		}
		if keyType.kind != KindAtomic {
			if err := v.validate(c.nested(suffix+".key", k, keyType)); err != nil {
				return err
			}
		}
		if valueType.kind != KindAtomic {
			if err := v.validate(c.nested(suffix, val, valueType)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) validateAtomic(c *Context) error {
	if compatible(c.Value, c.Descriptor.rType) {
		return nil
	}
	return &Violation{
		Name:     c.Name,
		Path:     c.path,
		Rule:     RuleAtomic,
		Index:    -1,
		Actual:   v.typeName(c.Value),
		Expected: c.Descriptor.name,
	}
}

func (v *Validator) kindViolation(c *Context, expected string) error {
	return &Violation{
		Name:     c.Name,
		Path:     c.path,
		Rule:     RuleKind,
		Index:    -1,
		Actual:   v.typeName(c.Value),
		Expected: expected,
	}
}

// typeName names the runtime type of value: lists, tuples and dicts by
// their shape, everything else through the registry.
func (v *Validator) typeName(value any) string {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return "nil"
	}
	if name, ok := v.registry.nameFor(rv.Type()); ok {
		return name
	}
	switch shapeOf(rv) {
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindMapping:
		return "dict"
	}
	return v.registry.NameOf(rv.Type())
}

// shapeOf classifies a runtime value. Non-container values are atomic.
func shapeOf(rv reflect.Value) Kind {
	if !rv.IsValid() {
		return KindAtomic
	}
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type() == tupleType {
			return KindTuple
		}
		return KindList
	case reflect.Array:
		return KindTuple
	case reflect.Map:
		return KindMapping
	}
	return KindAtomic
}

// compatible is the isinstance-style check: the value's type must be
// assignable to t, which for interfaces means implementing them. nil only
// satisfies nillable types.
func compatible(value any, t reflect.Type) bool {
	if value == nil {
		return nillable(t)
	}
	return reflect.TypeOf(value).AssignableTo(t)
}

// identical is the exact-type check used for mapping entries. No runtime
// value has an interface type, so interface declarations fall back to
// compatibility.
func identical(value any, t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return compatible(value, t)
	}
	return value != nil && reflect.TypeOf(value) == t
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// sortedEntries returns the map entries ordered by their printed form so the
// first reported violation does not depend on map iteration order.
func sortedEntries(rv reflect.Value) []entry {
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().Interface()
		entries = append(entries, entry{
			key:     k,
			value:   iter.Value().Interface(),
			printed: fmt.Sprintf("%T:%#v", k, k),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].printed < entries[j].printed })
	return entries
}

// entry is one key/value pair. Pairs are read with MapRange because keys
// such as NaN cannot be looked up again.
type entry struct {
	key, value any
	printed    string
}
