package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
)

func sampleSignals() *model.SignalMap {
	m := model.NewSignalMap()
	m.Set(model.PathEngineSpeed, model.Float(950))
	m.Set(model.PathVehicleSpeed, model.Float(61.5))
	m.Set(model.PathDTCList, model.Strings([]string{"P0301", "P0420"}))
	return m
}

func TestPromSink_RecordCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordCycle(coremetrics.CycleEvent{
		Cycle: 1, Scenario: model.EngineWarning, Signals: sampleSignals(), Duration: 20 * time.Millisecond,
	}))
	require.NoError(t, sink.RecordCycle(coremetrics.CycleEvent{
		Cycle: 2, Scenario: model.EngineWarning, Err: assert.AnError,
	}))

	expected := `
# HELP vsim_publish_cycles_total Total number of publish cycles by scenario and result
# TYPE vsim_publish_cycles_total counter
vsim_publish_cycles_total{result="error",scenario="engine_warning"} 1
vsim_publish_cycles_total{result="ok",scenario="engine_warning"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.cycles, strings.NewReader(expected)))
	assert.Equal(t, 950.0, testutil.ToFloat64(sink.signals.WithLabelValues(model.PathEngineSpeed)))
	assert.Equal(t, 61.5, testutil.ToFloat64(sink.signals.WithLabelValues(model.PathVehicleSpeed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.dtcs))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.signals))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestPromSink_RecordScenarioChange(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, sink.RecordScenarioChange(coremetrics.ScenarioEvent{From: model.NormalDriving, To: model.BatteryLow}))
	require.NoError(t, sink.RecordScenarioChange(coremetrics.ScenarioEvent{From: model.EngineWarning, To: model.BatteryLow}))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.scenarios.WithLabelValues("battery_low")))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordCycle(coremetrics.CycleEvent{Scenario: model.NormalDriving}))
	require.NoError(t, second.RecordCycle(coremetrics.CycleEvent{Scenario: model.NormalDriving}))
	assert.Equal(t, 2.0, testutil.ToFloat64(second.cycles.WithLabelValues("normal_driving", "ok")))
}
