package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// maxArrayLen bounds the arity of Go array renderings such as "[4]int".
const maxArrayLen = 1 << 16

// Parser turns annotations into descriptors.
type Parser struct {
	registry *Registry
	cache    *Cache
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRegistry injects the atomic type registry used to resolve names.
func WithRegistry(r *Registry) ParserOption {
	return func(p *Parser) {
		p.registry = r
	}
}

// WithCache memoizes textual parses in c.
func WithCache(c *Cache) ParserOption {
	return func(p *Parser) {
		p.cache = c
	}
}

// NewParser creates a parser. Without options it resolves names against
// the Default registry and does not cache.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry == nil {
		p.registry = Default()
	}
	return p
}

// Registry returns the registry the parser resolves names against.
func (p *Parser) Registry() *Registry { return p.registry }

// Parse accepts a textual annotation (string), a structural one
// (reflect.Type or *Descriptor) or nil.
//
// A nil descriptor with a nil error means the annotation is unchecked:
// absent, not one of the generic kinds List/Dict/Tuple, or a bare name
// the registry does not know.
func (p *Parser) Parse(annotation any) (*Descriptor, error) {
	switch a := annotation.(type) {
	case nil:
		return nil, nil
	case *Descriptor:
		if a == nil {
			return nil, nil
		}
		if err := a.check(); err != nil {
			return nil, &ParseError{Annotation: a.Name(), Err: err}
		}
		return a, nil
	case reflect.Type:
		return p.FromType(a), nil
	case string:
		return p.ParseString(a)
	default:
		return nil, &ParseError{
			Annotation: fmt.Sprint(annotation),
			Err:        fmt.Errorf("%w: unsupported annotation of type %T", ErrSyntax, annotation),
		}
	}
}

// ParseString parses the textual rendering of a type hint. Both the
// python-style "Dict[str, List[int]]" (optionally qualified, e.g.
// "typing.List[int]") and the Go rendering "map[string][]int" are accepted.
func (p *Parser) ParseString(annotation string) (*Descriptor, error) {
	if p.cache != nil {
		if d, ok := p.cache.Get(annotation); ok {
			return d, nil
		}
	}
	d, err := p.parseTop(annotation)
	if err != nil {
		return nil, &ParseError{Annotation: annotation, Err: err}
	}
	if p.cache != nil {
		d = p.cache.Put(annotation, d)
	}
	return d, nil
}

func (p *Parser) parseTop(annotation string) (*Descriptor, error) {
	s := strings.TrimSpace(annotation)
	if s == "" {
		return nil, nil
	}
	if err := checkBalanced(s); err != nil {
		return nil, err
	}
	return p.parseExpr(s, true)
}

// parseExpr parses one (already balanced) type expression. At the top
// level unrecognized kinds and unknown names are unchecked; nested inside
// a sub-type list they are errors.
func (p *Parser) parseExpr(s string, top bool) (*Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty sub-type", ErrSyntax)
	}

	if strings.HasPrefix(s, "[]") {
		elem, err := p.parseExpr(s[2:], false)
		if err != nil {
			return nil, err
		}
		return New(KindList, elem)
	}
	if strings.HasPrefix(s, "map[") {
		end := closing(s, 3)
		if end < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnbalanced, s)
		}
		key, err := p.parseExpr(s[4:end], false)
		if err != nil {
			return nil, err
		}
		value, err := p.parseExpr(s[end+1:], false)
		if err != nil {
			return nil, err
		}
		return New(KindMapping, key, value)
	}
	if s[0] == '[' {
		return p.parseArray(s)
	}

	open := strings.IndexByte(s, '[')
	if open < 0 {
		return p.resolve(s, top)
	}
	if closing(s, open) != len(s)-1 {
		return nil, fmt.Errorf("%w: trailing text after %q", ErrSyntax, s[:open])
	}
	keyword := unqualified(strings.TrimSpace(s[:open]))
	if keyword == "" {
		return nil, fmt.Errorf("%w: missing generic kind in %q", ErrSyntax, s)
	}

	var kind Kind
	switch strings.ToLower(keyword) {
	case "dict":
		kind = KindMapping
	case "list":
		kind = KindList
	case "tuple":
		kind = KindTuple
	default:
		if top {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: unsupported generic %q", ErrUnresolved, keyword)
	}

	tokens := splitTopLevel(s[open+1 : len(s)-1])
	if kind == KindTuple {
		switch {
		case len(tokens) == 0:
			return nil, fmt.Errorf("%w: the empty tuple is spelled %s[()]", ErrSyntax, keyword)
		case len(tokens) == 1 && tokens[0] == "()":
			tokens = nil
		}
	}
	subs := make([]*Descriptor, 0, len(tokens))
	for _, token := range tokens {
		sub, err := p.parseExpr(token, false)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	d, err := New(kind, subs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s takes %s, got %d", ErrArity, keyword, arityText(kind), len(subs))
	}
	return d, nil
}

// parseArray handles the Go rendering "[N]T", a tuple of N elements of T.
func (p *Parser) parseArray(s string) (*Descriptor, error) {
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnbalanced, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[1:end]))
	if err != nil || n < 0 || n > maxArrayLen {
		return nil, fmt.Errorf("%w: bad array length in %q", ErrSyntax, s)
	}
	elem, err := p.parseExpr(s[end+1:], false)
	if err != nil {
		return nil, err
	}
	subs := make([]*Descriptor, n)
	for i := range subs {
		subs[i] = elem
	}
	return New(KindTuple, subs...)
}

func (p *Parser) resolve(name string, top bool) (*Descriptor, error) {
	if t, ok := p.registry.Lookup(name); ok {
		return Atomic(name, t), nil
	}
	if short := unqualified(name); short != name {
		if t, ok := p.registry.Lookup(short); ok {
			return Atomic(short, t), nil
		}
	}
	if top {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolved, name)
}

// FromType builds a descriptor from a Go type: slices become lists, maps
// mappings and arrays fixed-arity tuples. Types known to the registry
// (such as []byte as "bytes") stay atomic.
func (p *Parser) FromType(t reflect.Type) *Descriptor {
	if t == nil {
		return nil
	}
	if name, ok := p.registry.nameFor(t); ok {
		return Atomic(name, t)
	}
	switch t.Kind() {
	case reflect.Slice:
		if t != tupleType {
			return List(p.FromType(t.Elem()))
		}
	case reflect.Map:
		return Mapping(p.FromType(t.Key()), p.FromType(t.Elem()))
	case reflect.Array:
		elem := p.FromType(t.Elem())
		subs := make([]*Descriptor, t.Len())
		for i := range subs {
			subs[i] = elem
		}
		return TupleOf(subs...)
	}
	return Atomic(p.registry.NameOf(t), t)
}

var tupleType = reflect.TypeOf(Tuple(nil))

func arityText(kind Kind) string {
	switch kind {
	case KindList:
		return "1 sub-type"
	case KindMapping:
		return "2 sub-types"
	default:
		return "any number of sub-types"
	}
}

// unqualified strips a module or package qualification: "typing.List" -> "List".
func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// checkBalanced verifies that square brackets and parentheses nest properly.
func checkBalanced(s string) error {
	var stack []byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '[', '(':
			stack = append(stack, c)
		case ']', ')':
			want := byte('[')
			if c == ')' {
				want = '('
			}
			if len(stack) == 0 || stack[len(stack)-1] != want {
				return fmt.Errorf("%w: unexpected %q at offset %d", ErrUnbalanced, c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("%w: %d unclosed", ErrUnbalanced, len(stack))
	}
	return nil
}

// closing returns the index of the bracket closing the one at open, or -1.
func closing(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on commas that are not nested inside brackets or
// parentheses, so "List[int], Dict[str, int]" yields two tokens.
func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		tokens []string
		depth  int
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				tokens = append(tokens, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(tokens, strings.TrimSpace(s[start:]))
}
