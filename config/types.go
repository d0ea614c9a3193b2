package config

import "gasbench/core/gas"

// Ledger configures the player ledger.
type Ledger struct {
	Owner string `toml:"Owner"`
	// Layout is one of "packed", "unpacked" or "key-only".
	Layout         string `toml:"Layout"`
	Name           string `toml:"Name"`
	IntegrityCheck bool   `toml:"IntegrityCheck"`
}

// Batch configures the batch orchestrator.
type Batch struct {
	BatchSize uint64 `toml:"BatchSize"`
}

// Arith configures the arithmetic module.
type Arith struct {
	Multiplier uint64 `toml:"Multiplier"`
}

// Telemetry controls logging, metrics and tracing.
type Telemetry struct {
	Environment   string `toml:"Environment"`
	LogLevel      string `toml:"LogLevel"`
	MetricsAddr   string `toml:"MetricsAddr"`
	OTLPEndpoint  string `toml:"OTLPEndpoint"`
	OTLPInsecure  bool   `toml:"OTLPInsecure"`
	TracesEnabled bool   `toml:"TracesEnabled"`
}

// Costs is the price list charged by the engine.
type Costs = gas.Table
