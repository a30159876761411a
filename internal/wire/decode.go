// Package wire turns JSON and YAML payloads into values the validator can
// judge.
//
// Text formats have no tuples, so a sequence is only a tuple when the
// descriptor says so. Decode reshapes exactly those sequences into
// schema.Tuple and leaves every scalar as the decoder produced it.
package wire

import (
	"fmt"

	"github.com/aretw0/contract/pkg/schema"
	"gopkg.in/yaml.v3"
)

// Decode parses data (YAML, or JSON as a subset of it) and reshapes it
// against d. Integers decode to int and floats to float64, so
// "[1, 1.5]" fails List[int] at index 1.
func Decode(data []byte, d *schema.Descriptor) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return Reshape(v, d), nil
}

// DecodeString is Decode for text.
func DecodeString(s string, d *schema.Descriptor) (any, error) {
	return Decode([]byte(s), d)
}

// Reshape converts generic sequences declared as tuples into schema.Tuple,
// recursively. Values that do not have the declared shape are returned as
// they are so the validator can report them.
func Reshape(v any, d *schema.Descriptor) any {
	if d == nil {
		return v
	}
	subs := d.SubTypes()

	switch d.Kind() {
	case schema.KindTuple:
		seq, ok := v.([]any)
		if !ok {
			return v
		}
		tuple := make(schema.Tuple, len(seq))
		for i, item := range seq {
			if i < len(subs) {
				item = Reshape(item, subs[i])
			}
			tuple[i] = item
		}
		return tuple

	case schema.KindList:
		seq, ok := v.([]any)
		if !ok {
			return v
		}
		out := make([]any, len(seq))
		for i, item := range seq {
			out[i] = Reshape(item, subs[0])
		}
		return out

	case schema.KindMapping:
		switch m := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(m))
			for k, val := range m {
				out[k] = Reshape(val, subs[1])
			}
			return out
		case map[any]any:
			out := make(map[any]any, len(m))
			for k, val := range m {
				out[k] = Reshape(val, subs[1])
			}
			return out
		}
	}
	return v
}
