// Package schema parses parameterized type annotations and checks runtime
// values against them.
//
// An annotation is either text, in the python typing style or in Go's own
// rendering, or a structural reflect.Type:
//
//	parser := schema.NewParser(schema.WithCache(schema.NewCache()))
//	d, err := parser.Parse("Dict[str, List[int]]")  // also "map[string][]int"
//	if err != nil {
//	    // *ParseError: the declaration itself is unreadable
//	}
//
// Only three container shapes are generic: List[T], Dict[K, V] and the
// fixed-arity Tuple[T1, ..., Tn]. Everything else is atomic, resolved by
// name through an injected Registry, or unchecked (a nil descriptor) when
// the parser does not recognize it.
//
// Values are checked with a Validator:
//
//	err := schema.Validate("arg_a", []any{1, 1, "1"}, schema.List(intType))
//	// 'arg_a' has a str at index 2, but should be int.
//
// List and Tuple elements use assignability (the Go analogue of isinstance),
// mapping keys and values use exact type identity. Plain slices are lists;
// tuples are schema.Tuple values or Go arrays. Values are never converted.
package schema
