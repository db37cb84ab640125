package metrics

import (
	"context"

	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
	"github.com/ehdgml1/vehicle-sim/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed; done is closed
// once the last event has been recorded.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) (done <-chan struct{}) {
	finished := make(chan struct{})
	if bus == nil || sink == nil {
		close(finished)
		return finished
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(finished)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev, log)
			}
		}
	}()
	return finished
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event, log logger.Logger) {
	switch e := ev.(type) {
	case coremetrics.CycleEvent:
		if err := sink.RecordCycle(e); err != nil {
			log.Warnf("record cycle %d: %v", e.Cycle, err)
		}
	case coremetrics.ScenarioEvent:
		if r, ok := sink.(coremetrics.ScenarioRecorder); ok {
			if err := r.RecordScenarioChange(e); err != nil {
				log.Warnf("record scenario change: %v", err)
			}
		}
	}
}
