package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "List recorded contract violations",
	Long: `Lists the most recent violations kept in the configured journal, newest first.
Only a shared journal (journal.backend: redis) outlives a single command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		if clearAll, _ := cmd.Flags().GetBool("clear"); clearAll {
			if env.journal == nil {
				return fmt.Errorf("no violation journal configured")
			}
			return env.journal.Clear(cmd.Context())
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := env.service.Violations(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			fmt.Fprintln(out, "No violations recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tFUNCTION\tPARAM\tPHASE\tMESSAGE")
		for _, e := range entries {
			function := e.Function
			if function == "" {
				function = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02T15:04:05"), function, e.Param, e.Phase, firstLine(e.Message))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(violationsCmd)

	violationsCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	violationsCmd.Flags().Bool("json", false, "Print entries as JSON")
	violationsCmd.Flags().Bool("clear", false, "Remove every recorded violation")
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
