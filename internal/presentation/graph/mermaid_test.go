package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/contract/internal/presentation/graph"
	"github.com/aretw0/contract/pkg/schema"
)

func describe(t *testing.T, annotation string) schema.Node {
	t.Helper()
	d, err := schema.NewParser().Parse(annotation)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", annotation, err)
	}
	return d.Describe()
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name       string
		annotation string
		contains   []string
	}{
		{
			name:       "Atomic Shape",
			annotation: "str",
			contains:   []string{"n0[\"str\"]"},
		},
		{
			name:       "Container Shape",
			annotation: "List[int]",
			contains: []string{
				"n0[[\"List\"]]",
				"n1[\"int\"]",
				"n0 --> n1",
			},
		},
		{
			name:       "Mapping Edges",
			annotation: "Dict[str, List[int]]",
			contains: []string{
				"n0 -- key --> n1",
				"n0 -- value --> n2",
				"n2 --> n3",
			},
		},
		{
			name:       "Tuple Positions",
			annotation: "Tuple[int, str]",
			contains: []string{
				"n0 -- \"0\" --> n1",
				"n0 -- \"1\" --> n2",
			},
		},
		{
			name:       "Empty Tuple",
			annotation: "Tuple[()]",
			contains:   []string{"n0[[\"Tuple[()]\"]]"},
		},
		{
			name:       "Unchecked Shape",
			annotation: "Optional[int]",
			contains:   []string{"n0((\"&lt;unchecked&gt;\"))"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(describe(t, tt.annotation))
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("missing header:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, got)
				}
			}
		})
	}
}
