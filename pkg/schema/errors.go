package schema

import (
	"errors"
	"fmt"
)

// Parse failures. They mean a declaration is unreadable, not that a
// caller passed bad data.
var (
	ErrSyntax     = errors.New("malformed annotation")
	ErrUnbalanced = errors.New("unbalanced brackets")
	ErrUnresolved = errors.New("unresolved type name")
	ErrArity      = errors.New("wrong number of sub-types")
)

// ParseError reports an annotation that could not be turned into a Descriptor.
type ParseError struct {
	Annotation string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Annotation, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Rule names the structural check that failed.
type Rule string

const (
	RuleKind    Rule = "kind"
	RuleLength  Rule = "length"
	RuleElement Rule = "element"
	RuleEntry   Rule = "entry"
	RuleAtomic  Rule = "atomic"
)

// Violation is the single failure raised when a runtime value does not
// match its declared shape.
type Violation struct {
	Name string `json:"name"`           // parameter name, or "return"
	Path string `json:"path,omitempty"` // location inside the value, e.g. `[1]["b"]`; empty at the top
	Rule Rule   `json:"rule"`

	Index    int    `json:"index"`  // offending position for list and tuple elements, -1 otherwise
	Actual   string `json:"actual"` // actual type (value type for entries, length for RuleLength)
	Expected string `json:"expected"`

	// Entry violations also carry the key types.
	ActualKey   string `json:"actual_key,omitempty"`
	ExpectedKey string `json:"expected_key,omitempty"`
}

// Subject is the name plus the nested path, e.g. "arg_a[1]".
func (v *Violation) Subject() string { return v.Name + v.Path }

func (v *Violation) Error() string {
	subject := v.Subject()
	switch v.Rule {
	case RuleLength:
		return fmt.Sprintf("'%s' has a length of %s, but should be a length of %s.", subject, v.Actual, v.Expected)
	case RuleElement:
		return fmt.Sprintf("'%s' has a %s at index %d, but should be %s.", subject, v.Actual, v.Index, v.Expected)
	case RuleEntry:
		return fmt.Sprintf("'%s' has a key type of %s and a value type of %s.\nShould have a key type of %s and a value type of %s.",
			subject, v.ActualKey, v.Actual, v.ExpectedKey, v.Expected)
	default:
		return fmt.Sprintf("'%s' is a %s, but should be %s.", subject, v.Actual, v.Expected)
	}
}

// AsViolation extracts a *Violation from err's chain.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsParseError reports whether err comes from reading a declaration.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// AggregateError represents multiple independent failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// Errors returns all collected errors if err is an AggregateError.
// Otherwise returns nil.
func Errors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

// Join returns nil for no errors, the error itself for one, and an
// AggregateError otherwise.
func Join(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &AggregateError{Errors: errs}
	}
}
