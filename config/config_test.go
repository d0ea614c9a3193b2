package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Batch.BatchSize != 10 || cfg.Arith.Multiplier != 5 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Costs.WriteSet != 20000 || cfg.Costs.ColdAccess != 2100 {
		t.Fatalf("unexpected default costs %+v", cfg.Costs)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Ledger.Layout != "packed" || !again.Ledger.IntegrityCheck {
		t.Fatalf("persisted defaults lost: %+v", again.Ledger)
	}
}

func TestLoadOverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "./bench"
Backend = " Bolt "

[ledger]
Layout = " Unpacked "
IntegrityCheck = false

[batch]
BatchSize = 25

[costs]
WriteSet = 22100
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != "bolt" {
		t.Fatalf("backend override not normalised: %q", cfg.Backend)
	}
	if cfg.Ledger.Layout != "unpacked" || cfg.Ledger.IntegrityCheck {
		t.Fatalf("ledger overrides not applied: %+v", cfg.Ledger)
	}
	if cfg.Batch.BatchSize != 25 || cfg.Costs.WriteSet != 22100 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Costs.WriteReset != 5000 || cfg.Arith.Multiplier != 5 {
		t.Fatalf("unspecified keys must keep defaults: %+v", cfg)
	}
	if cfg.OwnerAddress() != Default().OwnerAddress() {
		t.Fatalf("expected default owner")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"DataDir":     func(c *Config) { c.DataDir = "" },
		"Backend":     func(c *Config) { c.Backend = "rocks" },
		"owner":       func(c *Config) { c.Ledger.Owner = "nope" },
		"layout":      func(c *Config) { c.Ledger.Layout = "sparse" },
		"name longer": func(c *Config) { c.Ledger.Name = strings.Repeat("x", 40) },
		"BatchSize":   func(c *Config) { c.Batch.BatchSize = 0 },
		"costs":       func(c *Config) { c.Costs.Div = 0 },
		"log level":   func(c *Config) { c.Telemetry.LogLevel = "trace" },
	}
	for want, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%s: expected error mentioning it, got %v", want, err)
		}
	}
}
