package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/contract/internal/presentation/graph"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <annotation>",
	Short: "Parse an annotation and print its type tree",
	Long: `Parses a type annotation (List[int], Dict[str, Tuple[int, str]], map[string][]int, ...)
and prints the resulting type tree as text, JSON, YAML or a Mermaid diagram (graph TD).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()
		node, err := env.service.Parse(args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return writeNode(cmd.OutOrStdout(), node, format)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml or mermaid")
}

func writeNode(w io.Writer, node schema.Node, format string) error {
	switch format {
	case "text", "":
		writeTree(w, node, 0)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(node)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(node)
	case "mermaid":
		_, err := io.WriteString(w, graph.GenerateMermaid(node))
		return err
	default:
		return fmt.Errorf("unknown format %q: supported: text, json, yaml, mermaid", format)
	}
}

func writeTree(w io.Writer, node schema.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if node.GoType != "" {
		fmt.Fprintf(w, "%s%s (%s, %s)\n", indent, node.Name, node.Kind, node.GoType)
	} else {
		fmt.Fprintf(w, "%s%s (%s)\n", indent, node.Name, node.Kind)
	}
	for _, sub := range node.SubTypes {
		writeTree(w, sub, depth+1)
	}
}
