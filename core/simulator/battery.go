package simulator

import (
	"math"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

const (
	DefaultSoC         = 75.0
	DefaultVoltage     = 380.0
	DefaultTemperature = 30.0

	socMin = 0.0
	socMax = 100.0

	normalSoCDrain = 0.01
	normalSoCNoise = 0.002

	lowSoCDrain = 0.05
	lowSoCNoise = 0.005
	lowSoCFloor = 5.0

	voltageMin       = 300.0
	voltageMax       = 420.0
	voltageBase      = 310.0
	voltageSoCRange  = 110.0
	voltageNoise     = 0.5
	lowVoltageFloor  = 310.0
	lowVoltageFollow = 0.1

	batteryTempMax  = 45.0
	normalTempRise  = 0.005
	normalTempNoise = 0.2
	lowTempRise     = 0.01
	lowTempNoise    = 0.3
)

// BatteryModel produces traction battery state of charge, voltage and
// temperature.
type BatteryModel struct {
	noise *Noise

	initSoC, initVoltage, initTemp float64

	soc         float64
	voltage     float64
	temperature float64
	tick        int
}

// BatteryOption customises the initial battery state.
type BatteryOption func(*BatteryModel)

// WithSoC sets the initial state of charge in percent.
func WithSoC(v float64) BatteryOption { return func(b *BatteryModel) { b.initSoC = v } }

// WithVoltage sets the initial pack voltage.
func WithVoltage(v float64) BatteryOption { return func(b *BatteryModel) { b.initVoltage = v } }

// WithTemperature sets the initial pack temperature.
func WithTemperature(v float64) BatteryOption { return func(b *BatteryModel) { b.initTemp = v } }

// NewBatteryModel returns a BatteryModel starting at 75 %, 380 V and 30 °C
// unless overridden by opts.
func NewBatteryModel(n *Noise, opts ...BatteryOption) *BatteryModel {
	b := &BatteryModel{noise: n, initSoC: DefaultSoC, initVoltage: DefaultVoltage, initTemp: DefaultTemperature}
	for _, o := range opts {
		o(b)
	}
	b.Reset()
	return b
}

// Generate advances the model by one tick.
func (b *BatteryModel) Generate(mode model.ScenarioMode) *model.SignalMap {
	switch mode {
	case model.EngineWarning:
		b.soc = Clamp(b.soc+b.noise.Gauss(normalSoCNoise), socMin, socMax)
		b.voltage = b.voltageFromSoC()
		b.raiseTemperature(normalTempRise, normalTempNoise)
	case model.BatteryLow:
		b.soc = math.Max(lowSoCFloor, b.soc-lowSoCDrain+b.noise.Gauss(lowSoCNoise))
		target := math.Max(lowVoltageFloor, voltageBase+b.soc/socMax*voltageSoCRange)
		b.voltage += lowVoltageFollow * (target - b.voltage)
		b.voltage = Clamp(b.voltage+b.noise.Gauss(voltageNoise), voltageMin, voltageMax)
		b.raiseTemperature(lowTempRise, lowTempNoise)
	default:
		b.soc = Clamp(b.soc-normalSoCDrain+b.noise.Gauss(normalSoCNoise), socMin, socMax)
		b.voltage = b.voltageFromSoC()
		b.raiseTemperature(normalTempRise, normalTempNoise)
	}
	b.tick++

	out := model.NewSignalMap()
	out.Set(model.PathBatterySoC, model.Float(round(b.soc, 2)))
	out.Set(model.PathBatteryVoltage, model.Float(round(b.voltage, 1)))
	out.Set(model.PathBatteryTemp, model.Float(round(b.temperature, 1)))
	return out
}

// Reset restores the values the model was constructed with.
func (b *BatteryModel) Reset() {
	b.soc = b.initSoC
	b.voltage = b.initVoltage
	b.temperature = b.initTemp
	b.tick = 0
}

func (b *BatteryModel) voltageFromSoC() float64 {
	v := voltageBase + b.soc/socMax*voltageSoCRange + b.noise.Gauss(voltageNoise)
	return Clamp(v, voltageMin, voltageMax)
}

// raiseTemperature only ever moves the temperature up, capped at 45 °C.
func (b *BatteryModel) raiseTemperature(rise, sigma float64) {
	candidate := b.temperature + rise + b.noise.Gauss(sigma)
	b.temperature = math.Max(b.temperature, math.Min(batteryTempMax, candidate))
}
