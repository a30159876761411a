package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/contract/internal/presentation/tui"
	"github.com/aretw0/contract/pkg/service"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <annotation> <value>",
	Short: "Check a JSON or YAML value against an annotation",
	Long: `Checks a value against an annotation and reports the first violation.
The value is JSON or YAML text; "-" reads it from standard input.

With --contract the arguments are the values of the named contract's
parameters, in declaration order, and --returns checks a result as well.`,
	Example: `  contract check 'List[int]' '[1, 1, "1"]'
  contract check 'Tuple[int, int]' '[4, 1]' --name arg_a
  contract check --manifest contracts.yaml --contract pair '[4, 1]' --returns '["a", "b"]'`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("name", "value", "Name used in the violation message")
	checkCmd.Flags().String("contract", "", "Check against a contract declared in the manifest")
	checkCmd.Flags().String("returns", "", "Result value to check against the contract (with --contract)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	name, _ := cmd.Flags().GetString("name")
	contractName, _ := cmd.Flags().GetString("contract")
	returns, _ := cmd.Flags().GetString("returns")

	var res service.Result
	if contractName != "" {
		req := service.ContractCheck{}
		for _, arg := range args {
			raw, err := readValue(cmd.InOrStdin(), arg)
			if err != nil {
				return err
			}
			req.Args = append(req.Args, raw)
		}
		if returns != "" {
			req.Returns = []byte(returns)
		}
		res, err = env.service.CheckContract(cmd.Context(), contractName, req)
	} else {
		if len(args) != 2 {
			return fmt.Errorf("check needs <annotation> <value>, got %d arguments", len(args))
		}
		raw, rerr := readValue(cmd.InOrStdin(), args[1])
		if rerr != nil {
			return rerr
		}
		res, err = env.service.Check(cmd.Context(), name, args[0], raw)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), tui.Status(res))
	if !res.Valid {
		return errViolation
	}
	return nil
}

// readValue returns arg, or standard input when arg is "-".
func readValue(stdin io.Reader, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read value: %w", err)
	}
	return data, nil
}
