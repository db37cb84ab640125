package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ehdgml1/vehicle-sim/config"
	"github.com/ehdgml1/vehicle-sim/core/broker"
	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/core/simulator"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
	"github.com/ehdgml1/vehicle-sim/infra/metrics"
	"github.com/ehdgml1/vehicle-sim/infra/mqtt"
	"github.com/ehdgml1/vehicle-sim/infra/recorder"
	"github.com/ehdgml1/vehicle-sim/internal/eventbus"
)

const collectorDrainTimeout = 5 * time.Second

// Service wires the orchestrator, the broker, the publish loop and the
// metrics pipeline.
type Service struct {
	cfg       *config.Config
	mode      model.ScenarioMode
	Orch      *simulator.Orchestrator
	Publisher *Publisher
	brk       broker.Broker
	bus       *eventbus.TypedBus[eventbus.Event]
	sink      coremetrics.MetricsSink
	log       logger.Logger
}

// New creates a Service connected to the MQTT broker described by cfg.
func New(cfg *config.Config) (*Service, error) {
	brk, err := mqtt.NewBroker(cfg.Broker, logger.New("mqtt"))
	if err != nil {
		return nil, fmt.Errorf("mqtt broker: %w", err)
	}
	return NewWithBroker(cfg, brk)
}

// NewWithBroker creates a Service publishing through brk.
func NewWithBroker(cfg *config.Config, brk broker.Broker) (*Service, error) {
	mode, err := cfg.Scenario()
	if err != nil {
		return nil, err
	}
	logg := logger.New("service")

	opts := []simulator.Option{
		simulator.WithLogger(logger.New("orchestrator")),
		simulator.WithSeed(cfg.Simulator.Seed),
	}
	if cfg.Simulator.InitialSoC != nil {
		opts = append(opts, simulator.WithBattery(simulator.WithSoC(*cfg.Simulator.InitialSoC)))
	}
	orch := simulator.NewOrchestrator(opts...)
	if mode != orch.Mode() {
		orch.SetScenario(mode)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.Recorder.Enabled {
		rec, err := recorder.NewJSONLRecorder(cfg.Recorder.Path, cfg.Recorder.MaxSizeMB, cfg.Recorder.MaxBackups, cfg.Recorder.MaxAgeDays)
		if err != nil {
			_ = coremetrics.Close(sink)
			return nil, fmt.Errorf("recorder: %w", err)
		}
		logg.Infof("recording signals to %s (run %s)", cfg.Recorder.Path, rec.RunID())
		sink = coremetrics.NewMultiSink(sink, rec)
	}

	bus := eventbus.New()
	pub := NewPublisher(orch, brk, PublisherConfig{
		Interval: cfg.Simulator.Interval(),
		Retry:    cfg.Broker.Retry,
	}, WithEventBus(bus), WithPublisherLogger(logger.New("publisher")))

	return &Service{
		cfg:       cfg,
		mode:      mode,
		Orch:      orch,
		Publisher: pub,
		brk:       brk,
		bus:       bus,
		sink:      sink,
		log:       logg,
	}, nil
}

// Run starts the service and blocks until the context is cancelled or the
// publish loop fails.
func (s *Service) Run(ctx context.Context) error {
	s.log.Infof("vehicle simulator starting: broker=%s scenario=%s interval=%s",
		s.cfg.Broker.BrokerURL(), s.mode, s.cfg.Simulator.Interval())

	collectCtx, cancelCollect := context.WithCancel(context.Background())
	defer cancelCollect()
	done := metrics.StartEventCollector(collectCtx, s.bus, s.sink, logger.New("metrics"))

	if s.cfg.Metrics.HasSink("prometheus") {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr, logger.New("prom_server")); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	err := s.Publisher.Run(ctx)

	s.bus.Close()
	select {
	case <-done:
	case <-time.After(collectorDrainTimeout):
		s.log.Warnf("metrics collector did not drain within %s", collectorDrainTimeout)
	}
	if dropped := s.bus.Dropped(); dropped > 0 {
		s.log.Warnf("%d metrics events dropped by slow sinks", dropped)
	}
	if err != nil {
		return fmt.Errorf("publish loop: %w", err)
	}
	return nil
}

// Close disconnects from the broker and releases the metrics sinks.
// Errors are logged, not returned.
func (s *Service) Close() error {
	s.brk.Close()
	if err := coremetrics.Close(s.sink); err != nil {
		s.log.Errorf("close metrics sinks: %v", err)
	}
	s.log.Infof("vehicle simulator stopped")
	return nil
}
