package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Kind is the base shape of a declared type.
type Kind int

const (
	// KindAtomic is a non-parameterized type compared by identity or assignability.
	KindAtomic Kind = iota
	// KindList is an ordered, homogeneous sequence: List[T].
	KindList
	// KindMapping is a key/value container: Dict[K, V].
	KindMapping
	// KindTuple is a fixed-arity positional sequence: Tuple[T1, ..., Tn].
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tuple is the runtime representation of a tuple-shaped value.
// Plain slices are lists; a Tuple (or a Go array) is a fixed-length sequence.
type Tuple []any

// ErrInconsistent reports a descriptor whose kind and sub-type arity disagree.
var ErrInconsistent = errors.New("inconsistent descriptor")

// Descriptor is the normalized, immutable form of a declared type.
// Descriptors are safe to share between goroutines.
type Descriptor struct {
	kind     Kind
	subTypes []*Descriptor
	rType    reflect.Type
	name     string
}

// New builds a container descriptor, enforcing the arity of its kind:
// List takes one sub-type, Mapping two, Tuple any number, Atomic none.
func New(kind Kind, subTypes ...*Descriptor) (*Descriptor, error) {
	for i, sub := range subTypes {
		if sub == nil {
			return nil, fmt.Errorf("%w: %s sub-type %d is nil", ErrInconsistent, kind, i)
		}
	}
	switch kind {
	case KindList:
		if len(subTypes) != 1 {
			return nil, fmt.Errorf("%w: list takes 1 sub-type, got %d", ErrInconsistent, len(subTypes))
		}
	case KindMapping:
		if len(subTypes) != 2 {
			return nil, fmt.Errorf("%w: mapping takes 2 sub-types, got %d", ErrInconsistent, len(subTypes))
		}
	case KindTuple:
	case KindAtomic:
		return nil, fmt.Errorf("%w: atomic descriptors are built with Atomic", ErrInconsistent)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInconsistent, int(kind))
	}
	subs := make([]*Descriptor, len(subTypes))
	copy(subs, subTypes)
	return &Descriptor{kind: kind, subTypes: subs}, nil
}

// Atomic creates a descriptor for a non-parameterized type.
// The name is used when rendering messages; it defaults to t.String().
func Atomic(name string, t reflect.Type) *Descriptor {
	if t == nil {
		panic("schema: Atomic requires a non-nil type")
	}
	if name == "" {
		name = t.String()
	}
	return &Descriptor{kind: KindAtomic, rType: t, name: name}
}

// List creates a List[elem] descriptor.
func List(elem *Descriptor) *Descriptor { return must(New(KindList, elem)) }

// Mapping creates a Dict[key, value] descriptor.
func Mapping(key, value *Descriptor) *Descriptor { return must(New(KindMapping, key, value)) }

// TupleOf creates a Tuple[elems...] descriptor.
func TupleOf(elems ...*Descriptor) *Descriptor { return must(New(KindTuple, elems...)) }

func must(d *Descriptor, err error) *Descriptor {
	if err != nil {
		panic("schema: " + err.Error())
	}
	return d
}

// Kind returns the base kind.
func (d *Descriptor) Kind() Kind { return d.kind }

// SubTypes returns a copy of the ordered sub-type descriptors.
func (d *Descriptor) SubTypes() []*Descriptor {
	out := make([]*Descriptor, len(d.subTypes))
	copy(out, d.subTypes)
	return out
}

// Arity is the number of sub-types.
func (d *Descriptor) Arity() int { return len(d.subTypes) }

// Type returns the atomic type identity, or nil for containers.
func (d *Descriptor) Type() reflect.Type { return d.rType }

// Name renders the descriptor in canonical form, e.g. "List[Tuple[int, str]]".
func (d *Descriptor) Name() string {
	if d == nil {
		return "<unchecked>"
	}
	switch d.kind {
	case KindAtomic:
		return d.name
	case KindList:
		return "List[" + d.subTypes[0].Name() + "]"
	case KindMapping:
		return "Dict[" + d.subTypes[0].Name() + ", " + d.subTypes[1].Name() + "]"
	case KindTuple:
		if len(d.subTypes) == 0 {
			return "Tuple[()]"
		}
		names := make([]string, len(d.subTypes))
		for i, sub := range d.subTypes {
			names[i] = sub.Name()
		}
		return "Tuple[" + strings.Join(names, ", ") + "]"
	}
	return d.kind.String()
}

func (d *Descriptor) String() string { return d.Name() }

// Equal reports structural equality: same kind, same atomic identity and
// pairwise equal sub-types. Display names are ignored.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.kind != other.kind || d.rType != other.rType || len(d.subTypes) != len(other.subTypes) {
		return false
	}
	for i := range d.subTypes {
		if !d.subTypes[i].Equal(other.subTypes[i]) {
			return false
		}
	}
	return true
}

// check verifies the kind/arity invariant of d and every nested descriptor.
func (d *Descriptor) check() error {
	switch d.kind {
	case KindAtomic:
		if d.rType == nil || len(d.subTypes) != 0 {
			return fmt.Errorf("%w: atomic %q", ErrInconsistent, d.name)
		}
		return nil
	case KindList:
		if len(d.subTypes) != 1 {
			return fmt.Errorf("%w: list with %d sub-types", ErrInconsistent, len(d.subTypes))
		}
	case KindMapping:
		if len(d.subTypes) != 2 {
			return fmt.Errorf("%w: mapping with %d sub-types", ErrInconsistent, len(d.subTypes))
		}
	case KindTuple:
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInconsistent, int(d.kind))
	}
	for _, sub := range d.subTypes {
		if sub == nil {
			return fmt.Errorf("%w: nil sub-type in %s", ErrInconsistent, d.kind)
		}
		if err := sub.check(); err != nil {
			return err
		}
	}
	return nil
}
