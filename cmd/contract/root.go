package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errViolation is returned after a failed check has been printed.
var errViolation = errors.New("value violates its declared type")

var rootCmd = &cobra.Command{
	Use:   "contract",
	Short: "Contract checks runtime values against generic type annotations",
	Long: `Contract parses annotations such as List[int], Dict[str, int] or Tuple[int, str]
and checks JSON or YAML values against them, either ad hoc or through the
contracts declared in a manifest file or a directory of contract documents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./contract.yaml)")
	rootCmd.PersistentFlags().String("manifest", "", "Manifest file or contract directory")
	rootCmd.PersistentFlags().String("tools", "", "Tools file binding contracts to local commands")
	rootCmd.PersistentFlags().String("journal", "", "Violation journal: memory, redis or none")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}
