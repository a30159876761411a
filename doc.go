/*
Package contract checks Go values against parameterized type annotations at call boundaries.

Annotations use the python typing vocabulary (List[int], Dict[str, int], Tuple[int, str]) or Go's own rendering ([]int, map[string]int, [2]int). A Guard compiles a Signature, the declared-type table of a function, once, and then validates every call against it.

# Concept

Only three container shapes are generic: lists, mappings and fixed-arity tuples. Everything else is an atomic type looked up by name in a registry, and anything the parser does not recognize is left unchecked. Values are never converted: a check either passes or reports the first mismatch as a *schema.Violation.

# Usage

Wrap a function so that its arguments are checked before it runs and its result afterwards:

	package main

	import (
		"fmt"

		"github.com/aretw0/contract"
	)

	func sum(xs []any) int { ... }

	func main() {
		checked, err := contract.Wrap(contract.New(), sum, contract.Signature{
			Params: contract.Params("xs", "List[int]"),
			Return: "int",
		})
		if err != nil {
			// the annotations themselves are unreadable
			panic(err)
		}

		checked([]any{1, 2, "3"})
		// panics: 'xs' has a str at index 2, but should be int.
	}

Functions with a trailing error result receive violations through it instead of panicking. When the arguments are already at hand as values, Contract.Invoke and the Check methods return the violation as an explicit result.

# Observability

Guards accept a *slog.Logger (WithLogger) and Hooks (WithHooks). The pkg/observability package turns hooks into prometheus metrics.
*/
package contract
