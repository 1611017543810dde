// Package daemon holds the service configuration, loaded from a TOML file
// with defaults for every key.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/metergrid/metergrid/internal/publisher"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig        `toml:"api"`
	Storage StorageConfig    `toml:"storage"`
	Drain   DrainConfig      `toml:"drain"`
	Metrics MetricsConfig    `toml:"metrics"`
	MQTT    publisher.Config `toml:"mqtt"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// StorageConfig configures on-disk state.
type StorageConfig struct {
	DataDir     string `toml:"data_dir"`
	LedgerFile  string `toml:"ledger_file"`
	AuditFile   string `toml:"audit_file"`
	HistoryFile string `toml:"history_file"`
}

// DrainConfig configures the consolidation batch job.
type DrainConfig struct {
	Workers int `toml:"workers"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns production defaults. State lives under
// ~/.metergrid by default.
func DefaultConfig() Config {
	dataDir := ".metergrid"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".metergrid")
	}
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8690,
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			LedgerFile:  "electricity_record.json",
			AuditFile:   "app_log.txt",
			HistoryFile: "history.db",
		},
		Drain: DrainConfig{
			Workers: 8,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads the config file at path over the defaults. A missing file is not
// an error — the defaults stand.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LedgerPath returns the resolved ledger file path.
func (c Config) LedgerPath() string { return c.resolve(c.Storage.LedgerFile) }

// AuditPath returns the resolved audit log path.
func (c Config) AuditPath() string { return c.resolve(c.Storage.AuditFile) }

// HistoryPath returns the resolved drain-history database path.
func (c Config) HistoryPath() string { return c.resolve(c.Storage.HistoryFile) }

// EnsureDataDir creates the data directory if needed.
func (c Config) EnsureDataDir() error {
	return os.MkdirAll(c.Storage.DataDir, 0755)
}

func (c Config) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.Storage.DataDir, file)
}
