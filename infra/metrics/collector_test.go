package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
	"github.com/ehdgml1/vehicle-sim/internal/eventbus"
)

type memorySink struct {
	mu        sync.Mutex
	cycles    []int
	scenarios []model.ScenarioMode
}

func (m *memorySink) RecordCycle(ev coremetrics.CycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, ev.Cycle)
	return nil
}

func (m *memorySink) RecordScenarioChange(ev coremetrics.ScenarioEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios = append(m.scenarios, ev.To)
	return nil
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New()
	sink := &memorySink{}
	done := StartEventCollector(context.Background(), bus, sink, logger.NopLogger{})

	bus.Publish(coremetrics.CycleEvent{Cycle: 1})
	bus.Publish(coremetrics.ScenarioEvent{From: model.NormalDriving, To: model.EngineWarning})
	bus.Publish("ignored")
	bus.Publish(coremetrics.CycleEvent{Cycle: 2})
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop after bus close")
	}
	assert.Equal(t, []int{1, 2}, sink.cycles)
	assert.Equal(t, []model.ScenarioMode{model.EngineWarning}, sink.scenarios)
}

func TestStartEventCollectorStopsOnCancel(t *testing.T) {
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, coremetrics.NopSink{}, nil)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop after cancel")
	}
}

func TestStartEventCollectorNilBus(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, coremetrics.NopSink{}, nil)
	_, open := <-done
	require.False(t, open)
}
