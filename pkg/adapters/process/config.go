package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTool reports a tools file entry that cannot be run safely.
var ErrInvalidTool = errors.New("invalid tool")

// ProcessConfig describes one command that implements a contract. Env is
// added to the inherited environment; argument variables are set after it.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// validate rejects environment keys a shell could not export and keys in
// the argument namespace, which would shadow or forge contract arguments.
func (c ProcessConfig) validate() error {
	var errs []error
	for key := range c.Environment {
		switch {
		case key == "":
			errs = append(errs, fmt.Errorf("%w: %s: empty env key", ErrInvalidTool, c.Name))
		case strings.ContainsAny(key, "=\x00"):
			errs = append(errs, fmt.Errorf("%w: %s: env key %q", ErrInvalidTool, c.Name, key))
		case strings.HasPrefix(strings.ToUpper(key), EnvPrefix):
			errs = append(errs, fmt.Errorf("%w: %s: env key %q uses the reserved %s prefix", ErrInvalidTool, c.Name, key, EnvPrefix))
		}
	}
	return errors.Join(errs...)
}

// ConfigFile is the tools file: the commands allowed to implement contracts.
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a tools file (YAML, or JSON by extension) keyed by tool
// name. A missing file means no tools. Entries without a name or command
// are skipped; duplicate names and bad env keys fail the whole file.
func LoadTools(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}
	if err := unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	tools := make(map[string]ProcessConfig, len(cfg.Tools))
	var errs []error
	for _, tool := range cfg.Tools {
		if tool.Name == "" || tool.Command == "" {
			continue
		}
		if _, dup := tools[tool.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: %s declared twice", ErrInvalidTool, tool.Name))
			continue
		}
		if err := tool.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		tools[tool.Name] = tool
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tools, nil
}
