package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodManifest = `
types:
  UserID: int
contracts:
  - name: pair
    description: Pairs two labels.
    params:
      - {name: arg_a, type: "Tuple[int, int]"}
    returns: "Tuple[str, str]"
  - name: users
    params:
      - {name: ids, type: "List[UserID]"}
`

const badManifest = `
contracts:
  - name: broken
    params:
      - {name: a, type: "List[int"}
      - {name: a, type: "int"}
  - name: unknown
    returns: "Dict[str, Widget]"
`

// execute runs the root command with fresh flag values.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "contract version 0.1.0")
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "", "parse", "Dict[str, List[int]]")
	require.NoError(t, err)
	assert.Contains(t, out, "Dict[str, List[int]] (mapping)")
	assert.Contains(t, out, "    int (atomic, int)")

	out, err = execute(t, "", "parse", "--format", "json", "Tuple[int, str]")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "tuple"`)

	out, err = execute(t, "", "parse", "-f", "yaml", "List[int]")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: list")

	out, err = execute(t, "", "parse", "-f", "mermaid", "List[int]")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))

	_, err = execute(t, "", "parse", "-f", "xml", "List[int]")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, "", "parse", "List[int")
	assert.True(t, schema.IsParseError(err))
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "", "check", "List[int]", "[1, 1, 1]")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	out, err = execute(t, "", "check", "--name", "arg_a", "List[int]", `[1, 1, "1"]`)
	assert.ErrorIs(t, err, errViolation)
	assert.Contains(t, out, "'arg_a' has a str at index 2, but should be int.")

	out, err = execute(t, "[4, 1, 1]", "check", "--name", "arg_a", "Tuple[int, int]", "-")
	assert.ErrorIs(t, err, errViolation)
	assert.Contains(t, out, "'arg_a' has a length of 3, but should be a length of 2.")

	_, err = execute(t, "", "check", "List[int]")
	assert.ErrorContains(t, err, "needs <annotation> <value>")
}

func TestCheckCommand_Contract(t *testing.T) {
	path := writeFile(t, "contracts.yaml", goodManifest)

	out, err := execute(t, "", "check", "--manifest", path, "--contract", "pair", "[4, 1]", "--returns", `["a", "b"]`)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	out, err = execute(t, "", "check", "--manifest", path, "--contract", "pair", "[4, 1]", "--returns", "1")
	assert.ErrorIs(t, err, errViolation)
	assert.Contains(t, out, "'return' is a int, but should be tuple.")

	out, err = execute(t, "", "check", "--manifest", path, "--contract", "users", `[1, "2"]`)
	assert.ErrorIs(t, err, errViolation)
	assert.Contains(t, out, "'ids' has a str at index 1, but should be UserID.")

	_, err = execute(t, "", "check", "--manifest", path, "--contract", "nope")
	assert.ErrorContains(t, err, "contract not found")
}

func TestConfigFile(t *testing.T) {
	manifestPath := writeFile(t, "contracts.yaml", goodManifest)
	configPath := writeFile(t, "contract.yaml", "log_level: error\naliases:\n  - {name: Count, type: int}\n  - {name: OwnerID, type: Count}\nmanifest: "+manifestPath+"\n")

	out, err := execute(t, "", "check", "--config", configPath, "List[Count]", "[1, 2]")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	_, err = execute(t, "", "check", "--config", configPath, "Dict[str, OwnerID]", `{"a": "1"}`)
	assert.ErrorIs(t, err, errViolation)

	out, err = execute(t, "", "describe", "--config", configPath, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "## pair")
	assert.Contains(t, out, "| `arg_a` | `Tuple[int, int]` | tuple |")

	_, err = execute(t, "", "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "int", "1")
	assert.ErrorContains(t, err, "read config")
}

func TestConfigAliases(t *testing.T) {
	v := viper.New()
	types, err := configAliases(v)
	require.NoError(t, err)
	assert.Empty(t, types)

	v.Set(cfgKeyAliases, []any{
		map[string]any{"name": "UserID", "type": "int"},
		map[string]any{"name": "OwnerID", "type": "UserID"},
	})
	types, err = configAliases(v)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"UserID": "int", "OwnerID": "UserID"}, types)

	v.Set(cfgKeyAliases, map[string]any{"count": "int"})
	_, err = configAliases(v)
	assert.ErrorContains(t, err, "expected a list of {name, type}")

	v.Set(cfgKeyAliases, []any{map[string]any{"name": "Count"}})
	_, err = configAliases(v)
	assert.ErrorContains(t, err, "entry 0 needs both name and type")
}

func TestLintCommand(t *testing.T) {
	good := writeFile(t, "good.yaml", goodManifest)
	bad := writeFile(t, "bad.yaml", badManifest)

	out, err := execute(t, "", "lint", good)
	require.NoError(t, err)
	assert.Contains(t, out, good+": ok")

	out, err = execute(t, "", "lint", good, bad)
	assert.ErrorContains(t, err, "1 of 2 manifests have errors")
	assert.Contains(t, out, "contract broken")
	assert.Contains(t, out, "contract unknown")

	_, err = execute(t, "", "lint")
	assert.ErrorContains(t, err, "no manifest")
}

func TestDescribeCommand_Empty(t *testing.T) {
	out, err := execute(t, "", "describe", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "No contracts declared")
}

func TestContractDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pair.md"), []byte(`---
params:
  - name: arg_a
    type: Tuple[int, int]
returns: Tuple[str, str]
---
Pairs two labels.`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.md"), []byte("---\ntypes:\n  UserID: int\n---\n"), 0o644))

	out, err := execute(t, "", "check", "--manifest", dir, "--contract", "pair", "[4, 1, 1]")
	assert.ErrorIs(t, err, errViolation)
	assert.Contains(t, out, "'arg_a' has a length of 3, but should be a length of 2.")

	out, err = execute(t, "", "check", "--manifest", dir, "List[UserID]", "[1]")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	out, err = execute(t, "", "describe", "--manifest", dir, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Pairs two labels.")

	out, err = execute(t, "", "lint", dir)
	require.NoError(t, err)
	assert.Contains(t, out, dir+": ok")
}

func TestViolationsCommand(t *testing.T) {
	out, err := execute(t, "", "violations")
	require.NoError(t, err)
	assert.Contains(t, out, "No violations recorded.")

	_, err = execute(t, "", "violations", "--journal", "none")
	assert.ErrorContains(t, err, "no violation journal configured")

	_, err = execute(t, "", "violations", "--journal", "kafka")
	assert.ErrorContains(t, err, "unknown journal backend")
}

func TestViolationsCommand_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	configPath := writeFile(t, "contract.yaml", "journal:\n  backend: redis\n  redis:\n    addr: "+mr.Addr()+"\n")

	_, err := execute(t, "", "check", "--config", configPath, "--name", "arg_a", "List[int]", `[1, "2"]`)
	require.ErrorIs(t, err, errViolation)
	_, err = execute(t, "", "check", "--config", configPath, "Dict[str, int]", `{"a": 1}`)
	require.NoError(t, err)

	out, err := execute(t, "", "violations", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "FUNCTION")
	assert.Contains(t, out, "'arg_a' has a str at index 1, but should be int.")

	out, err = execute(t, "", "violations", "--config", configPath, "--json")
	require.NoError(t, err)
	var entries []ports.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "arg_a", entries[0].Param)
	assert.Equal(t, schema.RuleElement, entries[0].Violation.Rule)

	_, err = execute(t, "", "violations", "--config", configPath, "--clear")
	require.NoError(t, err)
	out, err = execute(t, "", "violations", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No violations recorded.")
}

func TestRunCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tools use sh")
	}
	manifestPath := writeFile(t, "contracts.yaml", goodManifest)
	toolsPath := writeFile(t, "tools.yaml", `
tools:
  - name: pair
    command: sh
    args: ["-c", "echo \"[\\\"$CONTRACT_ARG_ARG_A\\\", \\\"b\\\"]\""]
  - name: users
    command: sh
    args: ["-c", "echo '[1, 2]'"]
`)

	out, err := execute(t, "", "--manifest", manifestPath, "--tools", toolsPath, "run", "users", "ids=[1, 2]")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]\n", out)

	_, err = execute(t, "", "--manifest", manifestPath, "--tools", toolsPath, "run", "users", `ids=[1, "2"]`)
	require.Error(t, err)

	out, err = execute(t, "", "--manifest", manifestPath, "--tools", toolsPath, "run", "pair", "arg_a=[4, 1]")
	require.NoError(t, err)
	assert.Equal(t, "[\"[4,1]\",\"b\"]\n", out)

	_, err = execute(t, "", "--manifest", manifestPath, "--tools", toolsPath, "run", "pair", "arg_a")
	assert.EqualError(t, err, `argument "arg_a" is not name=value`)

	_, err = execute(t, "", "--manifest", manifestPath, "--tools", filepath.Join(t.TempDir(), "none.yaml"), "run", "pair")
	assert.ErrorContains(t, err, "failed to read tools")
}
