package simulator

import (
	"math"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

const (
	normalRPMBase  = 1500.0
	normalRPMAmp   = 700.0
	normalRPMFreq  = 0.05
	normalRPMNoise = 30.0
	normalRPMMin   = 800.0
	normalRPMMax   = 3000.0

	normalECTBase  = 90.0
	normalECTAmp   = 5.0
	normalECTFreq  = 0.02
	normalECTNoise = 0.5
	normalECTMin   = 85.0
	normalECTMax   = 95.0

	warningRPMBase  = 2500.0
	warningRPMAmp   = 2000.0
	warningRPMFreq  = 0.12
	warningRPMNoise = 200.0
	warningRPMMin   = 500.0
	warningRPMMax   = 5000.0

	warningECTStart = 95.0
	warningECTRise  = 0.05
	warningECTNoise = 1.0
	warningECTMax   = 115.0

	lowRPMBase  = 1200.0
	lowRPMAmp   = 400.0
	lowRPMFreq  = 0.04
	lowRPMNoise = 20.0
	lowRPMMin   = 800.0
	lowRPMMax   = 2000.0

	lowECTBase  = 88.0
	lowECTAmp   = 3.0
	lowECTFreq  = 0.02
	lowECTNoise = 0.3
	lowECTMin   = 82.0
	lowECTMax   = 93.0
)

// EngineModel produces combustion engine RPM and coolant temperature.
type EngineModel struct {
	noise      *Noise
	tick       int
	warningECT float64
}

// NewEngineModel returns an EngineModel drawing noise from n.
func NewEngineModel(n *Noise) *EngineModel {
	return &EngineModel{noise: n, warningECT: warningECTStart}
}

// Generate advances the model by one tick.
func (e *EngineModel) Generate(mode model.ScenarioMode) *model.SignalMap {
	var rpm, ect float64
	t := float64(e.tick)
	switch mode {
	case model.EngineWarning:
		rpm = Clamp(warningRPMBase+warningRPMAmp*math.Sin(warningRPMFreq*t)+e.noise.Gauss(warningRPMNoise), warningRPMMin, warningRPMMax)
		candidate := e.warningECT + warningECTRise + e.noise.Gauss(warningECTNoise)
		e.warningECT = math.Max(e.warningECT, math.Min(warningECTMax, candidate))
		ect = e.warningECT
	case model.BatteryLow:
		rpm = Clamp(lowRPMBase+lowRPMAmp*math.Sin(lowRPMFreq*t)+e.noise.Gauss(lowRPMNoise), lowRPMMin, lowRPMMax)
		ect = Clamp(lowECTBase+lowECTAmp*math.Sin(lowECTFreq*t)+e.noise.Gauss(lowECTNoise), lowECTMin, lowECTMax)
	default:
		rpm = Clamp(normalRPMBase+normalRPMAmp*math.Sin(normalRPMFreq*t)+e.noise.Gauss(normalRPMNoise), normalRPMMin, normalRPMMax)
		ect = Clamp(normalECTBase+normalECTAmp*math.Sin(normalECTFreq*t)+e.noise.Gauss(normalECTNoise), normalECTMin, normalECTMax)
	}
	e.tick++

	out := model.NewSignalMap()
	out.Set(model.PathEngineSpeed, model.Float(rpm))
	out.Set(model.PathEngineECT, model.Float(ect))
	return out
}

// Reset restores the constructor state.
func (e *EngineModel) Reset() {
	e.tick = 0
	e.warningECT = warningECTStart
}
