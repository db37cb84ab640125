// Package simulator holds the vehicle signal models and the orchestrator that
// merges them into one signal map per publish cycle. Every type here is meant
// to be driven from a single goroutine.
package simulator

import (
	"github.com/ehdgml1/vehicle-sim/core/logger"
	"github.com/ehdgml1/vehicle-sim/core/model"
)

// Orchestrator owns the five signal models and the active scenario.
type Orchestrator struct {
	log  logger.Logger
	mode model.ScenarioMode

	engine  *EngineModel
	vehicle *VehicleModel
	hvac    *HvacModel
	battery *BatteryModel
	faults  *FaultCodeModel
}

// Option configures an Orchestrator.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	log         logger.Logger
	seed        uint64
	batteryOpts []BatteryOption
	hvacTarget  float64
	hvacAmbient float64
}

// WithLogger sets the logger used by the orchestrator and the fault model.
func WithLogger(l logger.Logger) Option { return func(o *orchestratorOptions) { o.log = l } }

// WithSeed fixes the noise seed. Zero means a random seed.
func WithSeed(seed uint64) Option { return func(o *orchestratorOptions) { o.seed = seed } }

// WithBattery forwards options to the battery model.
func WithBattery(opts ...BatteryOption) Option {
	return func(o *orchestratorOptions) { o.batteryOpts = append(o.batteryOpts, opts...) }
}

// WithHvac sets the initial set-point and ambient temperature.
func WithHvac(target, ambient float64) Option {
	return func(o *orchestratorOptions) { o.hvacTarget, o.hvacAmbient = target, ambient }
}

// NewOrchestrator builds all models in NormalDriving mode.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := orchestratorOptions{hvacTarget: DefaultHvacTarget, hvacAmbient: DefaultHvacAmbient}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logger.Nop{}
	}
	n := NewNoise(o.seed)
	orc := &Orchestrator{
		log:     o.log,
		mode:    model.NormalDriving,
		engine:  NewEngineModel(n),
		vehicle: NewVehicleModel(n),
		hvac:    NewHvacModel(n, o.hvacTarget, o.hvacAmbient),
		battery: NewBatteryModel(n, o.batteryOpts...),
		faults:  NewFaultCodeModel(o.log),
	}
	orc.log.Infof("scenario orchestrator initialized with mode: %s", orc.mode)
	return orc
}

// Mode returns the active scenario.
func (o *Orchestrator) Mode() model.ScenarioMode { return o.mode }

// SetScenario switches the scenario and resets every model, even when mode
// is already active.
func (o *Orchestrator) SetScenario(mode model.ScenarioMode) {
	prev := o.mode
	o.mode = mode
	o.Reset()
	o.log.Infof("scenario changed: %s -> %s", prev, mode)
}

// Reset restores every model to its constructor state.
func (o *Orchestrator) Reset() {
	o.engine.Reset()
	o.vehicle.Reset()
	o.hvac.Reset()
	o.battery.Reset()
	o.faults.Reset()
}

// GenerateAll advances every model once and merges their outputs in a fixed
// order: engine, vehicle, hvac, battery, faults.
func (o *Orchestrator) GenerateAll(elapsedSeconds float64) *model.SignalMap {
	out := model.NewSignalMap()
	out.Merge(o.engine.Generate(o.mode))
	out.Merge(o.vehicle.Generate(o.mode, elapsedSeconds))
	out.Merge(o.hvac.Generate(o.mode))
	out.Merge(o.battery.Generate(o.mode))
	out.Merge(o.faults.Generate(o.mode))
	o.log.Debugf("generated %d signals for scenario %s", out.Len(), o.mode)
	return out
}

// HvacTarget returns the HVAC set-point.
func (o *Orchestrator) HvacTarget() float64 { return o.hvac.Target() }

// SetHvacTarget updates the HVAC set-point, clamped to [16, 30].
func (o *Orchestrator) SetHvacTarget(v float64) { o.hvac.SetTarget(v) }

// InjectDTC activates a diagnostic trouble code.
func (o *Orchestrator) InjectDTC(code string) { o.faults.Inject(code) }

// ClearDTCs removes all active diagnostic trouble codes.
func (o *Orchestrator) ClearDTCs() { o.faults.ClearAll() }

// ActiveDTCs returns a snapshot of the active codes.
func (o *Orchestrator) ActiveDTCs() []string { return o.faults.ActiveCodes() }
