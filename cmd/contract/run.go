package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/contract/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <contract> [name=value...]",
	Short: "Run a contract's command with checked arguments",
	Long: `Runs the command bound to a contract in the tools file. Arguments are
name=value pairs whose values are JSON or YAML text, checked before the
command starts; the command's output is checked as the result.

The command receives every argument as a CONTRACT_ARG_<NAME> environment
variable and answers on standard output.`,
	Example: `  contract run --manifest contracts.yaml --tools tools.yaml to_strings 'arg_a=[1, 2]'`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	named := make(map[string][]byte, len(args)-1)
	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return fmt.Errorf("argument %q is not name=value", arg)
		}
		raw, err := readValue(cmd.InOrStdin(), value)
		if err != nil {
			return err
		}
		named[key] = raw
	}

	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.service.Run(cmd.Context(), args[0], named)
	if err != nil {
		return err
	}
	if res.Value != nil {
		out, err := json.Marshal(res.Value)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	if !res.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), tui.Status(res.Result))
		return errViolation
	}
	return nil
}
