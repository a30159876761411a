package main

import (
	"context"
	"fmt"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint [manifest...]",
	Short: "Check manifests for unreadable declarations",
	Long: `Loads each manifest file or contract directory, applies its type aliases and compiles every contract.
Every malformed annotation, unknown type name or duplicate parameter is reported.
Without arguments the configured manifest is linted.`,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		v, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := v.GetString(cfgKeyManifest)
		if path == "" {
			return fmt.Errorf("no manifest given and none configured")
		}
		args = []string{path}
	}

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range args {
		errs := lintFile(cmd.Context(), path)
		if len(errs) == 0 {
			fmt.Fprintf(out, "%s: ok\n", path)
			continue
		}
		failed++
		for _, err := range errs {
			fmt.Fprintf(out, "%s: %v\n", path, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d manifests have errors", failed, len(args))
	}
	return nil
}

// lintFile returns every problem found in one manifest file or contract directory.
func lintFile(ctx context.Context, path string) []error {
	source, err := openSource(path)
	if err != nil {
		return flatten(err)
	}
	m, err := source.Load(ctx)
	if err != nil {
		return flatten(err)
	}

	registry := schema.DefaultRegistry()
	if err := m.ApplyAliases(registry); err != nil {
		return flatten(err)
	}

	_, err = m.Compile(contract.New(contract.WithRegistry(registry)))
	return flatten(err)
}

// flatten lists the parts of an aggregate error, one per declaration.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if aggr, ok := err.(*schema.AggregateError); ok {
		return aggr.Errors
	}
	return []error{err}
}
