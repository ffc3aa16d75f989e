package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the optional TOML file at <dir>/config.toml plus the well-known
// paths derived from the state directory. Every field has a working default;
// the file only tunes them.
type Config struct {
	// Dir is the per-user state directory holding socket, marker, mirror
	// and daemon log. Not settable from the file; it locates the file.
	Dir string `mapstructure:"-"`

	Socket  string `mapstructure:"socket"`   // control socket path
	PIDFile string `mapstructure:"pid_file"` // liveness marker path
	Mirror  string `mapstructure:"mirror"`   // JSON metadata mirror path
	LogFile string `mapstructure:"log_file"` // daemon's own rotated log

	MaxLogLines   int    `mapstructure:"max_log_lines"`  // default retained window
	MetricsListen string `mapstructure:"metrics_listen"` // optional HTTP status/metrics addr

	Client  ClientConfig  `mapstructure:"client"`
	History HistoryConfig `mapstructure:"history"`
}

// ClientConfig tunes the request helper and the reachability probe. The two
// budgets are independent.
type ClientConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	Attempts      int           `mapstructure:"attempts"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	ProbeAttempts int           `mapstructure:"probe_attempts"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// HistoryConfig selects an optional lifecycle-event sink by DSN
// (sqlite://, postgres://, clickhouse://). Empty disables history.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// DefaultDir returns the per-user state directory (~/.scriptd).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".scriptd"), nil
}

// Default returns the configuration used when no file is present.
func Default(dir string) Config {
	return Config{
		Dir:         dir,
		Socket:      filepath.Join(dir, "daemon.sock"),
		PIDFile:     filepath.Join(dir, "daemon.pid"),
		Mirror:      filepath.Join(dir, "processes.json"),
		LogFile:     filepath.Join(dir, "daemon.log"),
		MaxLogLines: 1000,
		Client: ClientConfig{
			Timeout:       5 * time.Second,
			Attempts:      3,
			RetryInterval: 500 * time.Millisecond,
			ProbeAttempts: 25,
			ProbeInterval: 200 * time.Millisecond,
		},
	}
}

// Load reads <dir>/config.toml over the defaults. A missing file is not an
// error; a present but unreadable or invalid file is.
func Load(dir string) (Config, error) {
	cfg := Default(dir)
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Dir = dir
	if cfg.MaxLogLines <= 0 {
		cfg.MaxLogLines = 1000
	}
	return cfg, nil
}

// EnsureDir creates the state directory when missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}
