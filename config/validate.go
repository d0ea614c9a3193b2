package config

import (
	"fmt"

	"gasbench/core/gas"
	"gasbench/core/state"
	"gasbench/core/types"
	"gasbench/native/players"
	"gasbench/storage"
)

var logLevels = map[string]struct{}{"": {}, "debug": {}, "info": {}, "warn": {}, "error": {}}

func defaultCosts() Costs {
	return gas.DefaultTable()
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	switch c.Backend {
	case storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("config: unknown Backend %q", c.Backend)
	}
	if _, err := types.ParseAddress(c.Ledger.Owner); err != nil {
		return fmt.Errorf("ledger: owner: %w", err)
	}
	if _, err := players.ParseLayoutKind(c.Ledger.Layout); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if len(c.Ledger.Name) > state.CellSize-1 {
		return fmt.Errorf("ledger: name longer than %d bytes", state.CellSize-1)
	}
	if c.Batch.BatchSize == 0 {
		return fmt.Errorf("batch: BatchSize must be positive")
	}
	if err := c.Costs.Validate(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}
	if _, ok := logLevels[c.Telemetry.LogLevel]; !ok {
		return fmt.Errorf("telemetry: unknown log level %q", c.Telemetry.LogLevel)
	}
	return nil
}

// OwnerAddress returns the parsed ledger owner.
func (c *Config) OwnerAddress() types.Address {
	addr, err := types.ParseAddress(c.Ledger.Owner)
	if err != nil {
		return types.Address{}
	}
	return addr
}
