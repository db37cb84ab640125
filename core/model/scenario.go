package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScenario is returned when a scenario name cannot be parsed.
var ErrUnknownScenario = errors.New("unknown scenario")

// ScenarioMode selects the operating regime of the simulation models.
type ScenarioMode int

const (
	NormalDriving ScenarioMode = iota
	EngineWarning
	BatteryLow
)

// ScenarioModes lists every mode in declaration order.
var ScenarioModes = []ScenarioMode{NormalDriving, EngineWarning, BatteryLow}

// String returns the wire name of the scenario.
func (m ScenarioMode) String() string {
	switch m {
	case NormalDriving:
		return "normal_driving"
	case EngineWarning:
		return "engine_warning"
	case BatteryLow:
		return "battery_low"
	default:
		return "unknown"
	}
}

// ParseScenarioMode converts a wire name into a ScenarioMode. Leading and
// trailing whitespace is ignored and matching is case-insensitive.
func ParseScenarioMode(s string) (ScenarioMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, m := range ScenarioModes {
		if m.String() == name {
			return m, nil
		}
	}
	return NormalDriving, fmt.Errorf("%w %q: valid modes are %s", ErrUnknownScenario, s, strings.Join(ScenarioNames(), ", "))
}

// ScenarioNames returns the wire names of all modes.
func ScenarioNames() []string {
	names := make([]string, len(ScenarioModes))
	for i, m := range ScenarioModes {
		names[i] = m.String()
	}
	return names
}

// MarshalText implements encoding.TextMarshaler.
func (m ScenarioMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ScenarioMode) UnmarshalText(b []byte) error {
	v, err := ParseScenarioMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
