package main

import (
	"fmt"

	"github.com/aretw0/contract/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the contracts declared in the manifest",
	Long:  `Renders every declared contract as a table of parameters, annotations and kinds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		md := tui.ContractsMarkdown(env.service.Contracts())
		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		}

		rendered, err := tui.NewRenderer()(md)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().Bool("plain", false, "Print markdown without terminal styling")
}
