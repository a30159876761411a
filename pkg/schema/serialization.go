package schema

import (
	"encoding/json"
)

// Node is the tree form of a descriptor used by JSON and YAML outputs.
type Node struct {
	Kind     string `json:"kind" yaml:"kind"`
	Name     string `json:"name" yaml:"name"`
	GoType   string `json:"go_type,omitempty" yaml:"go_type,omitempty"`
	SubTypes []Node `json:"sub_types,omitempty" yaml:"sub_types,omitempty"`
}

// Describe returns the descriptor as a tree. A nil descriptor describes
// an unchecked annotation.
func (d *Descriptor) Describe() Node {
	if d == nil {
		return Node{Kind: "unchecked", Name: d.Name()}
	}
	n := Node{Kind: d.kind.String(), Name: d.Name()}
	if d.rType != nil {
		n.GoType = d.rType.String()
	}
	for _, sub := range d.subTypes {
		n.SubTypes = append(n.SubTypes, sub.Describe())
	}
	return n
}

// MarshalJSON serializes the descriptor as its canonical name.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Name())
}

// MarshalYAML serializes the descriptor as its canonical name.
func (d *Descriptor) MarshalYAML() (any, error) {
	if d == nil {
		return nil, nil
	}
	return d.Name(), nil
}
