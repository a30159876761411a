package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/contract"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of contract",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contract version %s\n", strings.TrimSpace(contract.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
