package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
)

// PromSink records publish cycles and signal values in Prometheus metrics.
type PromSink struct {
	cycles    *prometheus.CounterVec
	duration  prometheus.Histogram
	signals   *prometheus.GaugeVec
	dtcs      prometheus.Gauge
	scenarios *prometheus.CounterVec
}

var _ coremetrics.ScenarioRecorder = (*PromSink)(nil)

// NewPromSink registers simulator metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vsim_publish_cycles_total",
		Help: "Total number of publish cycles by scenario and result",
	}, []string{"scenario", "result"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vsim_publish_duration_seconds",
		Help:    "Time spent generating and publishing one signal map",
		Buckets: prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	signals, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vsim_signal_value",
		Help: "Last published value of each numeric VSS signal",
	}, []string{"path"}))
	if err != nil {
		return nil, err
	}
	dtcs, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vsim_active_dtcs",
		Help: "Number of active diagnostic trouble codes",
	}))
	if err != nil {
		return nil, err
	}
	scenarios, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vsim_scenario_changes_total",
		Help: "Number of scenario switches by target scenario",
	}, []string{"to"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{cycles: cycles, duration: duration, signals: signals, dtcs: dtcs, scenarios: scenarios}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordCycle counts the cycle and updates the signal gauges.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Scenario.String(), ev.Result()).Inc()
	s.duration.Observe(ev.Duration.Seconds())
	if ev.Signals == nil {
		return nil
	}
	ev.Signals.Range(func(path string, v model.SignalValue) bool {
		if f, ok := v.Float(); ok {
			s.signals.WithLabelValues(path).Set(f)
		} else if codes, ok := v.List(); ok {
			s.dtcs.Set(float64(len(codes)))
		}
		return true
	})
	return nil
}

// RecordScenarioChange counts scenario switches.
func (s *PromSink) RecordScenarioChange(ev coremetrics.ScenarioEvent) error {
	s.scenarios.WithLabelValues(ev.To.String()).Inc()
	return nil
}
