package config

import (
	"fmt"
	"time"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

const (
	DefaultIntervalMS = 500
	maxIntervalMS     = 60_000
)

// SimulatorConfig controls signal generation.
type SimulatorConfig struct {
	// Mode is the initial scenario name.
	Mode string `json:"mode"`
	// IntervalMS is the publish period in milliseconds.
	IntervalMS int `json:"interval_ms"`
	// Seed makes noise reproducible when non-zero.
	Seed uint64 `json:"seed"`
	// InitialSoC overrides the battery state of charge at start.
	InitialSoC *float64 `json:"initial_soc"`
}

// SetDefaults applies the normal driving scenario at 2 Hz.
func (c *SimulatorConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = model.NormalDriving.String()
	}
	if c.IntervalMS == 0 {
		c.IntervalMS = DefaultIntervalMS
	}
}

// Validate checks the scenario name and interval.
func (c SimulatorConfig) Validate() error {
	if _, err := model.ParseScenarioMode(c.Mode); err != nil {
		return fmt.Errorf("simulator.mode: %w", err)
	}
	if c.IntervalMS <= 0 || c.IntervalMS > maxIntervalMS {
		return fmt.Errorf("simulator.interval_ms must be in (0, %d], got %d", maxIntervalMS, c.IntervalMS)
	}
	if c.InitialSoC != nil && (*c.InitialSoC < 0 || *c.InitialSoC > 100) {
		return fmt.Errorf("simulator.initial_soc must be in [0, 100], got %v", *c.InitialSoC)
	}
	return nil
}

// Interval returns the publish period.
func (c SimulatorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}
