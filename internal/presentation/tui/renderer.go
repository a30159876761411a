package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/contract/pkg/service"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// ContractsMarkdown lays out contracts as markdown: one heading and one
// parameter table per contract.
func ContractsMarkdown(infos []service.ContractInfo) string {
	if len(infos) == 0 {
		return "_No contracts declared._\n"
	}

	var sb strings.Builder
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("## %s\n\n", info.Name))
		if info.Description != "" {
			sb.WriteString(info.Description + "\n\n")
		}
		sb.WriteString("| Parameter | Annotation | Kind |\n")
		sb.WriteString("|---|---|---|\n")
		for _, p := range info.Params {
			sb.WriteString(row(p))
		}
		if info.Returns != nil {
			sb.WriteString(row(*info.Returns))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func row(p service.ParamInfo) string {
	annotation := p.Annotation
	if annotation == "" {
		annotation = "-"
	}
	return fmt.Sprintf("| `%s` | `%s` | %s |\n", p.Name, strings.ReplaceAll(annotation, "|", "\\|"), p.Descriptor.Kind)
}
