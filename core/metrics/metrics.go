package metrics

import (
	"io"
	"time"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

// CycleEvent describes one publish cycle.
type CycleEvent struct {
	Cycle    int
	Scenario model.ScenarioMode
	// Signals is the map handed to the broker. Sinks must not modify it.
	Signals  *model.SignalMap
	Duration time.Duration
	Err      error
	Time     time.Time
}

// Result labels the outcome of the cycle as "ok" or "error".
func (e CycleEvent) Result() string {
	if e.Err != nil {
		return "error"
	}
	return "ok"
}

// MetricsSink records publish cycles for observability purposes.
type MetricsSink interface {
	RecordCycle(ev CycleEvent) error
}

// ScenarioEvent records a scenario switch.
type ScenarioEvent struct {
	From model.ScenarioMode
	To   model.ScenarioMode
	Time time.Time
}

// ScenarioRecorder records scenario switches.
type ScenarioRecorder interface {
	RecordScenarioChange(ev ScenarioEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error             { return nil }
func (NopSink) RecordScenarioChange(ScenarioEvent) error { return nil }

// Close releases the resources held by s when it implements io.Closer.
func Close(s MetricsSink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
