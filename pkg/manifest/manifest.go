// Package manifest reads declared-type tables from YAML or JSON files.
//
// Go cannot reflect parameter names, so the names and annotations of a
// guarded function are written down instead:
//
//	types:
//	  UserID: int
//	contracts:
//	  - name: to_strings
//	    params:
//	      - name: arg_a
//	        type: List[int]
//	    returns: List[str]
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a manifest whose structure is unusable.
var ErrInvalid = errors.New("invalid manifest")

// ParamEntry is one declared parameter. An empty Type leaves it unchecked.
type ParamEntry struct {
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	Type string `yaml:"type" json:"type" mapstructure:"type"`
}

// Entry declares the types of one function.
type Entry struct {
	Name        string       `yaml:"name" json:"name" mapstructure:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty" mapstructure:"description"`
	Params      []ParamEntry `yaml:"params,omitempty" json:"params,omitempty" mapstructure:"params"`
	Returns     string       `yaml:"returns,omitempty" json:"returns,omitempty" mapstructure:"returns"`
}

// Signature converts the entry to a contract.Signature.
func (e Entry) Signature() contract.Signature {
	sig := contract.Signature{Name: e.Name}
	for _, p := range e.Params {
		param := contract.Param{Name: p.Name}
		if p.Type != "" {
			param.Annotation = p.Type
		}
		sig.Params = append(sig.Params, param)
	}
	if e.Returns != "" {
		sig.Return = e.Returns
	}
	return sig
}

// Manifest is a set of type aliases and contract declarations.
type Manifest struct {
	Types     map[string]string `yaml:"types,omitempty" json:"types,omitempty" mapstructure:"types"`
	Contracts []Entry           `yaml:"contracts" json:"contracts" mapstructure:"contracts"`
}

// New builds a manifest from declarations and checks its structure.
func New(types map[string]string, entries ...Entry) (*Manifest, error) {
	m := &Manifest{Types: types, Contracts: entries}
	if err := m.check(); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// Clone returns a deep copy. A nil manifest clones to an empty one.
func (m *Manifest) Clone() *Manifest {
	out := &Manifest{}
	if m == nil {
		return out
	}
	if m.Types != nil {
		out.Types = make(map[string]string, len(m.Types))
		for k, v := range m.Types {
			out.Types[k] = v
		}
	}
	out.Contracts = make([]Entry, len(m.Contracts))
	for i, e := range m.Contracts {
		e.Params = append([]ParamEntry(nil), e.Params...)
		out.Contracts[i] = e
	}
	return out
}

// Merge appends other's declarations to m. Conflicting aliases and
// duplicate contract names are reported as ErrInvalid.
func (m *Manifest) Merge(other *Manifest) error {
	var errs []error
	for alias, target := range other.Types {
		if existing, ok := m.Types[alias]; ok && existing != target {
			errs = append(errs, fmt.Errorf("%w: alias %q declared as both %q and %q", ErrInvalid, alias, existing, target))
			continue
		}
		if m.Types == nil {
			m.Types = make(map[string]string)
		}
		m.Types[alias] = target
	}
	m.Contracts = append(m.Contracts, other.Clone().Contracts...)
	if err := m.check(); err != nil {
		errs = append(errs, err)
	}
	return schema.Join(errs)
}

// Load reads a manifest from r. JSON is accepted as a subset of YAML.
func Load(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads a manifest file.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// File is a manifest file on disk. It satisfies ports.Source.
type File string

// Load reads the file.
func (f File) Load(ctx context.Context) (*Manifest, error) {
	return LoadFile(string(f))
}

// FromMap decodes an already parsed document, e.g. a section of a config
// file or a request payload.
func FromMap(raw map[string]any) (*Manifest, error) {
	var m Manifest
	if err := mapstructure.Decode(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) check() error {
	var errs []error
	seen := make(map[string]bool, len(m.Contracts))
	for i, e := range m.Contracts {
		switch {
		case e.Name == "":
			errs = append(errs, fmt.Errorf("%w: contract #%d has no name", ErrInvalid, i+1))
		case seen[e.Name]:
			errs = append(errs, fmt.Errorf("%w: duplicate contract %q", ErrInvalid, e.Name))
		}
		seen[e.Name] = true
	}
	for alias, target := range m.Types {
		if alias == "" || target == "" {
			errs = append(errs, fmt.Errorf("%w: empty type alias %q: %q", ErrInvalid, alias, target))
		}
	}
	return schema.Join(errs)
}

// Names returns the contract names in file order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Contracts))
	for i, e := range m.Contracts {
		names[i] = e.Name
	}
	return names
}

// Signatures converts every entry, in file order.
func (m *Manifest) Signatures() []contract.Signature {
	sigs := make([]contract.Signature, len(m.Contracts))
	for i, e := range m.Contracts {
		sigs[i] = e.Signature()
	}
	return sigs
}

// Lookup returns the entry with the given name.
func (m *Manifest) Lookup(name string) (Entry, bool) {
	for _, e := range m.Contracts {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// ApplyAliases registers the manifest's type aliases in r. An alias may
// point at another alias declared in the same manifest.
func (m *Manifest) ApplyAliases(r *schema.Registry) error {
	pending := make([]string, 0, len(m.Types))
	for alias := range m.Types {
		pending = append(pending, alias)
	}
	sort.Strings(pending)

	for len(pending) > 0 {
		var next []string
		var errs []error
		for _, alias := range pending {
			if err := r.Alias(alias, m.Types[alias]); err != nil {
				next = append(next, alias)
				errs = append(errs, err)
			}
		}
		if len(next) == len(pending) {
			return fmt.Errorf("apply aliases: %w", schema.Join(errs))
		}
		pending = next
	}
	return nil
}

// Compile compiles every contract with g. All unreadable declarations are
// reported together as a *schema.AggregateError.
func (m *Manifest) Compile(g *contract.Guard) (map[string]*contract.Contract, error) {
	out := make(map[string]*contract.Contract, len(m.Contracts))
	var errs []error
	for _, e := range m.Contracts {
		c, err := g.Compile(e.Signature())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[e.Name] = c
	}
	if len(errs) > 0 {
		return out, &schema.AggregateError{Errors: errs}
	}
	return out, nil
}
