// Package config loads runtime configuration for corectl: flags, a
// config.yaml, and CORE_-prefixed environment variables merged through
// viper, grounded on the teacher's cmd/server/main.go loadConfig/
// bindWithDefaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultDataDir                = ".corectl"
	DefaultClusterAddr            = "localhost:7070"
	DefaultLockTimeoutIntervalMs  = 30_000
	DefaultCollectorMaxSize       = 5000
	DefaultReadCacheMaxSize       = 5000
	DefaultOmitDefaultPermissions = false
)

// Config is the full set of runtime knobs: the spec's own §6 options
// (OmitDefaultPermissions, the two LRU bounds) plus the ambient fields
// every long-running process needs (data directory, journal paths,
// cluster address, lock expiry resolution).
type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	Journal JournalConfig `mapstructure:"journal"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Locks   LocksConfig   `mapstructure:"locks"`
	ACL     ACLConfig     `mapstructure:"acl"`
}

type JournalConfig struct {
	Path        string `mapstructure:"path"`
	AuditDBPath string `mapstructure:"audit_db_path"`
}

type ClusterConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // "memory" or "websocket"
}

type LocksConfig struct {
	TimeoutIntervalMs int `mapstructure:"timeout_interval_ms"`
}

type ACLConfig struct {
	OmitDefaultPermissions bool   `mapstructure:"omit_default_permissions"`
	CollectorMaxSize       int    `mapstructure:"collector_max_size"`
	ReadCacheMaxSize       int    `mapstructure:"read_cache_max_size"`
	SeedFile               string `mapstructure:"seed_file"`
}

// Validate rejects configurations that would leave a component
// unusable rather than failing lazily deep inside it.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir must not be empty")
	}
	if c.Locks.TimeoutIntervalMs <= 0 {
		return errors.New("config: locks.timeout_interval_ms must be positive")
	}
	switch c.Cluster.Mode {
	case "memory", "websocket":
	default:
		return fmt.Errorf("config: cluster.mode %q must be \"memory\" or \"websocket\"", c.Cluster.Mode)
	}
	return nil
}

// LogValue renders the config for structured logging without a secrets
// table to mask against, unlike the teacher's server config.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_dir", c.DataDir),
		slog.String("journal_path", c.Journal.Path),
		slog.String("cluster_addr", c.Cluster.Addr),
		slog.String("cluster_mode", c.Cluster.Mode),
		slog.Int("lock_timeout_interval_ms", c.Locks.TimeoutIntervalMs),
		slog.Bool("acl_omit_default_permissions", c.ACL.OmitDefaultPermissions),
	)
}

// LockTimeoutInterval converts the millisecond knob into a time.Duration.
// The lock registry's timeout worker does not read it; the worker sweeps at
// its own fixed one-second interval.
func (c *Config) LockTimeoutInterval() time.Duration {
	return time.Duration(c.Locks.TimeoutIntervalMs) * time.Millisecond
}

// Load initializes viper against cmd's flags, config.yaml (or the path
// named by --config), and CORE_-prefixed env vars, then unmarshals and
// validates the result.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	if cmd.Flag("config").Changed {
		v.SetConfigFile(cmd.Flag("config").Value.String())
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/corectl/")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindWithDefaults(v, cmd)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		enoent := errors.Is(err, os.ErrNotExist)
		if cmd.Flag("config").Changed && enoent {
			return nil, err
		}
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindWithDefaults(v *viper.Viper, cmd *cobra.Command) {
	v.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	v.BindPFlag("cluster.addr", cmd.Flags().Lookup("cluster-addr"))

	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.audit_db_path", "")
	v.SetDefault("cluster.addr", DefaultClusterAddr)
	v.SetDefault("cluster.mode", "memory")
	v.SetDefault("locks.timeout_interval_ms", DefaultLockTimeoutIntervalMs)
	v.SetDefault("acl.omit_default_permissions", DefaultOmitDefaultPermissions)
	v.SetDefault("acl.collector_max_size", DefaultCollectorMaxSize)
	v.SetDefault("acl.read_cache_max_size", DefaultReadCacheMaxSize)
	v.SetDefault("acl.seed_file", "")
}
