package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/contract/pkg/schema"
)

// GenerateMermaid produces a Mermaid flowchart of a type tree.
// It applies semantic styling:
// - List/Dict/Tuple: [[Subroutine]]
// - Atomic: [Rectangle]
// - Unchecked: ((Circle))
// Edges are labelled with the slot they fill: key/value for mappings and
// the position for tuples.
func GenerateMermaid(root schema.Node) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var next int
	var walk func(n schema.Node) string
	walk = func(n schema.Node) string {
		id := fmt.Sprintf("n%d", next)
		next++

		opener, closer := "[", "]"
		switch n.Kind {
		case "list", "mapping", "tuple":
			opener, closer = "[[", "]]"
		case "unchecked":
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, sanitizeLabel(label(n)), closer))

		for i, sub := range n.SubTypes {
			childID := walk(sub)
			switch {
			case n.Kind == "mapping" && i == 0:
				sb.WriteString(fmt.Sprintf("    %s -- key --> %s\n", id, childID))
			case n.Kind == "mapping":
				sb.WriteString(fmt.Sprintf("    %s -- value --> %s\n", id, childID))
			case n.Kind == "tuple":
				sb.WriteString(fmt.Sprintf("    %s -- \"%d\" --> %s\n", id, i, childID))
			default:
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", id, childID))
			}
		}
		return id
	}
	walk(root)

	return sb.String()
}

// label shows containers by their keyword and atomic types by name.
func label(n schema.Node) string {
	switch n.Kind {
	case "list":
		return "List"
	case "mapping":
		return "Dict"
	case "tuple":
		if len(n.SubTypes) == 0 {
			return "Tuple[()]"
		}
		return "Tuple"
	}
	return n.Name
}

// sanitizeLabel escapes double quotes for Mermaid labels.
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}
