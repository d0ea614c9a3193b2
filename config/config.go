package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"gasbench/native/players"
	"gasbench/storage"
)

// DefaultOwner is the privileged identity used when none is configured.
const DefaultOwner = "0x00000000000000000000000000000000000000aa"

type Config struct {
	DataDir   string    `toml:"DataDir"`
	Backend   string    `toml:"Backend"`
	Ledger    Ledger    `toml:"ledger"`
	Batch     Batch     `toml:"batch"`
	Arith     Arith     `toml:"arith"`
	Costs     Costs     `toml:"costs"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		DataDir: "./gasbench-data",
		Backend: storage.BackendLevelDB,
		Ledger: Ledger{
			Owner:          DefaultOwner,
			Layout:         string(players.LayoutPacked),
			Name:           players.DefaultName,
			IntegrityCheck: true,
		},
		Batch:     Batch{BatchSize: 10},
		Arith:     Arith{Multiplier: 5},
		Costs:     defaultCosts(),
		Telemetry: Telemetry{LogLevel: "info"},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there first if the file does not exist. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = storage.BackendLevelDB
	}
	c.Ledger.Owner = strings.TrimSpace(c.Ledger.Owner)
	if c.Ledger.Owner == "" {
		c.Ledger.Owner = DefaultOwner
	}
	c.Ledger.Layout = strings.ToLower(strings.TrimSpace(c.Ledger.Layout))
	if c.Ledger.Layout == "" {
		c.Ledger.Layout = string(players.LayoutPacked)
	}
	if c.Ledger.Name == "" {
		c.Ledger.Name = players.DefaultName
	}
	c.Telemetry.LogLevel = strings.ToLower(strings.TrimSpace(c.Telemetry.LogLevel))
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
