package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/internal/logging"
	loamAdapter "github.com/aretw0/contract/pkg/adapters/loam"
	"github.com/aretw0/contract/pkg/adapters/memory"
	"github.com/aretw0/contract/pkg/adapters/process"
	redisAdapter "github.com/aretw0/contract/pkg/adapters/redis"
	"github.com/aretw0/contract/pkg/manifest"
	"github.com/aretw0/contract/pkg/observability"
	"github.com/aretw0/contract/pkg/ports"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/aretw0/contract/pkg/service"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "contract"
	configFileType = "yaml"

	// Config keys.
	cfgKeyLogLevel        = "log_level"
	cfgKeyPort            = "port"
	cfgKeyManifest        = "manifest"
	cfgKeyAliases         = "aliases"
	cfgKeyTools           = "tools"
	cfgKeyJournalBackend  = "journal.backend"
	cfgKeyJournalCapacity = "journal.capacity"
	cfgKeyRedisAddr       = "journal.redis.addr"
	cfgKeyRedisPassword   = "journal.redis.password"
	cfgKeyRedisDB         = "journal.redis.db"
	cfgKeyRedisPrefix     = "journal.redis.prefix"

	defaultLogLevel        = "info"
	defaultPort            = 8080
	defaultJournalBackend  = "memory"
	defaultJournalCapacity = 1000
	defaultRedisAddr       = "localhost:6379"
	defaultRedisPrefix     = "contract:"
)

// loadConfig reads contract.yaml from the working directory, or the file
// named by --config. A missing default file is not an error. Flags that
// were set on the command line take precedence over the file, and
// CONTRACT_* environment variables over both defaults and file.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyPort, defaultPort)
	v.SetDefault(cfgKeyJournalBackend, defaultJournalBackend)
	v.SetDefault(cfgKeyJournalCapacity, defaultJournalCapacity)
	v.SetDefault(cfgKeyRedisAddr, defaultRedisAddr)
	v.SetDefault(cfgKeyRedisPrefix, defaultRedisPrefix)
	v.SetEnvPrefix("CONTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, flag := range map[string]string{
		cfgKeyLogLevel:       "log-level",
		cfgKeyManifest:       "manifest",
		cfgKeyPort:           "port",
		cfgKeyJournalBackend: "journal",
		cfgKeyTools:          "tools",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	return v, nil
}

// openSource returns the contracts declared at path: a Loam repository
// when path is a directory, a manifest file otherwise.
func openSource(path string) (ports.Source, error) {
	if path == "" {
		return memory.NewSource(nil), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if info.IsDir() {
		return loamAdapter.Open(path)
	}
	return manifest.File(path), nil
}

// openRunner loads the process implementations listed in a tools file.
// Commands run from the directory holding the file.
func openRunner(path string) (*process.Runner, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read tools: %w", err)
	}
	tools, err := process.LoadTools(path)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return process.NewRunner(process.WithTools(tools), process.WithBaseDir(dir)), nil
}

// openJournal creates the violation journal named by journal.backend.
func openJournal(ctx context.Context, v *viper.Viper) (ports.Journal, error) {
	switch backend := v.GetString(cfgKeyJournalBackend); backend {
	case "none", "":
		return nil, nil
	case "memory":
		return memory.NewJournal(v.GetInt(cfgKeyJournalCapacity)), nil
	case "redis":
		j := redisAdapter.New(
			v.GetString(cfgKeyRedisAddr),
			v.GetString(cfgKeyRedisPassword),
			v.GetInt(cfgKeyRedisDB),
			redisAdapter.WithPrefix(v.GetString(cfgKeyRedisPrefix)),
			redisAdapter.WithCapacity(v.GetInt(cfgKeyJournalCapacity)),
		)
		if err := j.Ping(ctx); err != nil {
			_ = j.Close()
			return nil, fmt.Errorf("connect journal: %w", err)
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q: supported: memory, redis, none", backend)
	}
}

// aliasEntry is one configured alias. Aliases are a list rather than a
// map because viper lower-cases map keys and type names are case-sensitive.
type aliasEntry struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
}

// configAliases decodes the aliases key:
//
//	aliases:
//	  - {name: Count, type: int}
func configAliases(v *viper.Viper) (map[string]string, error) {
	raw := v.Get(cfgKeyAliases)
	if raw == nil {
		return nil, nil
	}
	var entries []aliasEntry
	if err := mapstructure.Decode(raw, &entries); err != nil {
		return nil, fmt.Errorf("config aliases: expected a list of {name, type}: %w", err)
	}
	types := make(map[string]string, len(entries))
	for i, e := range entries {
		if e.Name == "" || e.Type == "" {
			return nil, fmt.Errorf("config aliases: entry %d needs both name and type", i)
		}
		types[e.Name] = e.Type
	}
	return types, nil
}

// environment is everything a command needs to run checks.
type environment struct {
	config   *viper.Viper
	logger   *slog.Logger
	source   ports.Source
	manifest *manifest.Manifest
	metrics  *observability.Metrics
	journal  ports.Journal
	service  *service.Service
}

// newEnvironment builds the registry, guard and service described by the
// configuration.
func newEnvironment(cmd *cobra.Command) (*environment, error) {
	v, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(v.GetString(cfgKeyLogLevel))
	if err != nil {
		return nil, err
	}
	logger := logging.New(level)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	env := &environment{
		config:  v,
		logger:  logger,
		metrics: observability.NewMetrics(),
	}
	if env.source, err = openSource(v.GetString(cfgKeyManifest)); err != nil {
		return nil, err
	}
	if env.journal, err = openJournal(ctx, v); err != nil {
		return nil, err
	}

	m, g, err := env.load(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}

	var opts []service.Option
	if env.journal != nil {
		opts = append(opts, service.WithJournal(env.journal))
	}
	if path := v.GetString(cfgKeyTools); path != "" {
		runner, err := openRunner(path)
		if err != nil {
			env.Close()
			return nil, err
		}
		opts = append(opts, service.WithImplementations(runner.Functions()))
	}
	if env.service, err = service.New(g, m, opts...); err != nil {
		env.Close()
		return nil, err
	}
	env.manifest = m
	return env, nil
}

// load reads the source and builds a guard whose registry knows the
// configured and declared aliases.
func (e *environment) load(ctx context.Context) (*manifest.Manifest, *contract.Guard, error) {
	m, err := e.source.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	registry := schema.DefaultRegistry()
	types, err := configAliases(e.config)
	if err != nil {
		return nil, nil, err
	}
	aliases := &manifest.Manifest{Types: types}
	if err := aliases.ApplyAliases(registry); err != nil {
		return nil, nil, fmt.Errorf("config aliases: %w", err)
	}
	if err := m.ApplyAliases(registry); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", e.config.GetString(cfgKeyManifest), err)
	}

	opts := []contract.Option{
		contract.WithRegistry(registry),
		contract.WithCache(schema.NewCache()),
		contract.WithLogger(e.logger),
		contract.WithHooks(e.metrics.Hooks()),
	}
	if e.journal != nil {
		opts = append(opts, contract.WithHooks(observability.JournalHooks(e.journal, e.logger)))
	}
	return m, contract.New(opts...), nil
}

// reload loads the source again and swaps the service's contracts.
func (e *environment) reload(ctx context.Context) error {
	m, g, err := e.load(ctx)
	if err != nil {
		return err
	}
	if err := e.service.Reload(g, m); err != nil {
		return err
	}
	e.logger.Info("contracts reloaded", "contracts", len(m.Contracts))
	return nil
}

// Close releases the journal connection.
func (e *environment) Close() {
	if c, ok := e.journal.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			e.logger.Warn("failed to close journal", "error", err)
		}
	}
}
