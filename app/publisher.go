package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ehdgml1/vehicle-sim/core/broker"
	coremetrics "github.com/ehdgml1/vehicle-sim/core/metrics"
	"github.com/ehdgml1/vehicle-sim/core/model"
	"github.com/ehdgml1/vehicle-sim/core/simulator"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
	"github.com/ehdgml1/vehicle-sim/infra/mqtt"
	"github.com/ehdgml1/vehicle-sim/internal/eventbus"
)

// ErrConnectExhausted is returned when every broker connection attempt failed.
var ErrConnectExhausted = errors.New("broker connection attempts exhausted")

const (
	// hvacSyncThreshold is the minimum difference between the broker
	// set-point and the simulated one before the simulation follows.
	hvacSyncThreshold = 0.1
	summaryEvery      = 10
)

// PublisherConfig controls the publish loop cadence and connection retries.
type PublisherConfig struct {
	Interval time.Duration
	Retry    mqtt.RetryConfig
}

// PublisherOption customises a Publisher.
type PublisherOption func(*Publisher)

// WithEventBus publishes cycle and scenario events on bus.
func WithEventBus(bus eventbus.EventBus) PublisherOption {
	return func(p *Publisher) { p.bus = bus }
}

// WithPublisherLogger overrides the default component logger.
func WithPublisherLogger(l logger.Logger) PublisherOption {
	return func(p *Publisher) { p.log = l }
}

// Publisher drives the orchestrator at a fixed interval and pushes every
// signal map to the broker. The orchestrator is only touched from the
// goroutine running Run.
type Publisher struct {
	orch     *simulator.Orchestrator
	brk      broker.Broker
	interval time.Duration
	retry    mqtt.RetryConfig
	bus      eventbus.EventBus
	log      logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	cycle int
}

// NewPublisher wires the loop. Zero config fields take their defaults.
func NewPublisher(orch *simulator.Orchestrator, brk broker.Broker, cfg PublisherConfig, opts ...PublisherOption) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	cfg.Retry.SetDefaults()
	p := &Publisher{
		orch:     orch,
		brk:      brk,
		interval: cfg.Interval,
		retry:    cfg.Retry,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.New("publisher")
	}
	return p
}

// Cycles returns the number of completed publish cycles.
func (p *Publisher) Cycles() int { return p.cycle }

// Run connects, then publishes one signal map per interval until ctx is
// canceled (returns nil) or a publish fails (returns the error). A lost
// connection is redialed with the Connect backoff once; the loop fails if
// that is exhausted or the cycle after the redial is still disconnected.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Connect(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	redialed := false
	for {
		if ctx.Err() != nil {
			p.log.Infof("publish loop stopped after %d cycles", p.cycle)
			return nil
		}
		err := p.Step(ctx)
		switch {
		case err == nil:
			redialed = false
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, broker.ErrNotConnected) && !redialed:
			p.log.Warnf("broker connection lost at cycle %d, reconnecting", p.cycle)
			if err := p.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			redialed = true
			continue
		default:
			return err
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Connect dials the broker with exponential backoff.
func (p *Publisher) Connect(ctx context.Context) error {
	backoff := p.retry.InitialBackoff()
	var lastErr error
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		err := p.brk.Dial(ctx)
		if err == nil {
			p.log.Infof("connected to broker (attempt %d)", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if attempt == p.retry.MaxAttempts {
			break
		}
		p.log.Warnf("broker connection attempt %d/%d failed: %v, retrying in %s", attempt, p.retry.MaxAttempts, err, backoff)
		if err := p.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, p.retry.Multiplier, p.retry.MaxBackoff())
	}
	p.log.Errorf("giving up on broker after %d attempts: %v", p.retry.MaxAttempts, lastErr)
	return fmt.Errorf("%w after %d attempts: %w", ErrConnectExhausted, p.retry.MaxAttempts, lastErr)
}

func nextBackoff(cur time.Duration, factor float64, limit time.Duration) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if next > limit {
		return limit
	}
	return next
}

// Step runs one cycle: apply queued commands, follow the broker HVAC
// set-point, generate and publish.
func (p *Publisher) Step(ctx context.Context) error {
	p.drainCommands()
	p.syncOverrides(ctx)

	start := p.now()
	signals := p.orch.GenerateAll(p.interval.Seconds())
	err := p.brk.Publish(ctx, signals)
	p.cycle++
	p.emit(coremetrics.CycleEvent{
		Cycle:    p.cycle,
		Scenario: p.orch.Mode(),
		Signals:  signals,
		Duration: p.now().Sub(start),
		Err:      err,
		Time:     start,
	})
	if err != nil {
		if ctx.Err() == nil {
			p.log.Errorf("publish failed at cycle %d: %v", p.cycle, err)
		}
		return fmt.Errorf("cycle %d: %w", p.cycle, err)
	}
	if p.cycle%summaryEvery == 0 {
		p.logSummary(signals)
	}
	return nil
}

func (p *Publisher) logSummary(signals *model.SignalMap) {
	fields := map[string]any{
		"cycle":    p.cycle,
		"scenario": p.orch.Mode().String(),
	}
	if data, err := json.Marshal(signals); err == nil {
		fields["signals"] = json.RawMessage(data)
	} else {
		fields["signal_count"] = signals.Len()
	}
	p.log.Infow("cycle summary", fields)
}

func (p *Publisher) syncOverrides(ctx context.Context) {
	v, err := p.brk.CurrentValue(ctx, model.PathHvacTarget)
	if err != nil {
		if !errors.Is(err, broker.ErrNoValue) {
			p.log.Debugf("hvac target sync: %v", err)
		}
		return
	}
	target, ok := v.Float()
	if !ok {
		p.log.Debugf("hvac target sync: non numeric value %v", v.Interface())
		return
	}
	if math.Abs(target-p.orch.HvacTarget()) > hvacSyncThreshold {
		p.orch.SetHvacTarget(target)
		p.log.Debugw("hvac target synced", map[string]any{"target": p.orch.HvacTarget()})
	}
}

func (p *Publisher) drainCommands() {
	cmds := p.brk.Commands()
	for {
		select {
		case c, ok := <-cmds:
			if !ok {
				return
			}
			p.apply(c)
		default:
			return
		}
	}
}

func (p *Publisher) apply(c broker.Command) {
	switch c.Kind {
	case broker.CommandSetScenario:
		prev := p.orch.Mode()
		p.orch.SetScenario(c.Scenario)
		p.emit(coremetrics.ScenarioEvent{From: prev, To: c.Scenario, Time: p.now()})
	case broker.CommandInjectDTC:
		p.orch.InjectDTC(c.Code)
	case broker.CommandClearDTCs:
		p.orch.ClearDTCs()
	default:
		p.log.Warnf("ignoring unknown command %s", c.Kind)
	}
}

func (p *Publisher) emit(ev eventbus.Event) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
