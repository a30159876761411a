// Package process runs contract implementations as local processes.
//
// Arguments reach the process as CONTRACT_ARG_<NAME> environment variables,
// never as command line flags, so argument values cannot inject flags. The
// process answers on standard output; JSON output is decoded, anything
// else is returned as trimmed text.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/contract/pkg/registry"
)

// EnvPrefix starts the name of every argument variable.
const EnvPrefix = "CONTRACT_ARG_"

// ErrExecution reports a process that could not start or exited non-zero.
var ErrExecution = errors.New("execution failed")

// Runner holds the allow-list of commands it may start.
type Runner struct {
	registry map[string]ProcessConfig
	baseDir  string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithTools populates the allow-list from a loaded config.
func WithTools(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			tool.Name = name
			r.registry[name] = tool
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = ProcessConfig{
		Name:    name,
		Command: command,
		Args:    args,
	}
}

// Names lists the registered commands in sorted order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns one registry.Function per registered command, ready
// for registry.Registry.Bind.
func (r *Runner) Functions() map[string]registry.Function {
	out := make(map[string]registry.Function, len(r.registry))
	for name, proc := range r.registry {
		out[name] = func(ctx context.Context, args map[string]any) (any, error) {
			return r.run(ctx, proc, args)
		}
	}
	return out
}

// Execute runs the command registered under name.
func (r *Runner) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: process not registered: %s", registry.ErrNotFound, name)
	}
	return r.run(ctx, proc, args)
}

func (r *Runner) run(ctx context.Context, proc ProcessConfig, args map[string]any) (any, error) {
	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir

	env := cmd.Environ()
	for k, v := range proc.Environment {
		env = append(env, k+"="+v)
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+encodeArg(args[k]))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v. Stderr: %s", ErrExecution, proc.Name, err, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.String()), nil
}

// encodeArg renders scalars as text and everything else as JSON.
func encodeArg(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// decodeOutput parses JSON objects and arrays and falls back to text.
func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return normalize(v)
		}
	}
	return trimmed
}

// normalize turns whole JSON numbers into int so that results judge like
// values decoded from YAML.
func normalize(v any) any {
	switch v := v.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalize(v[i])
		}
		return v
	case map[string]any:
		for k := range v {
			v[k] = normalize(v[k])
		}
		return v
	}
	return v
}
