package simulator

import (
	"math"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

const (
	normalSpeedBase  = 60.0
	normalSpeedAmp   = 20.0
	normalSpeedFreq  = 0.03
	normalSpeedNoise = 2.0
	normalSpeedMin   = 40.0
	normalSpeedMax   = 80.0

	warningSpeedStart = 60.0
	warningSpeedDecay = 0.1
	warningSpeedNoise = 1.5
	warningSpeedMin   = 20.0

	lowSpeedStart = 50.0
	lowSpeedDecay = 0.08
	lowSpeedNoise = 1.0
	lowSpeedMin   = 10.0

	secondsPerHour = 3600.0
)

// VehicleModel produces vehicle speed and integrates it into odometer
// distance.
type VehicleModel struct {
	noise        *Noise
	tick         int
	speed        float64
	distance     float64
	warningSpeed float64
	lowSpeed     float64
}

// NewVehicleModel returns a VehicleModel drawing noise from n.
func NewVehicleModel(n *Noise) *VehicleModel {
	v := &VehicleModel{noise: n}
	v.Reset()
	return v
}

// Generate advances the model by one tick covering elapsedSeconds of travel.
func (v *VehicleModel) Generate(mode model.ScenarioMode, elapsedSeconds float64) *model.SignalMap {
	switch mode {
	case model.EngineWarning:
		candidate := v.warningSpeed - warningSpeedDecay + v.noise.Gauss(warningSpeedNoise)
		v.warningSpeed = math.Min(v.warningSpeed, math.Max(warningSpeedMin, candidate))
		v.speed = v.warningSpeed
	case model.BatteryLow:
		candidate := v.lowSpeed - lowSpeedDecay + v.noise.Gauss(lowSpeedNoise)
		v.lowSpeed = math.Min(v.lowSpeed, math.Max(lowSpeedMin, candidate))
		v.speed = v.lowSpeed
	default:
		t := float64(v.tick)
		v.speed = Clamp(normalSpeedBase+normalSpeedAmp*math.Sin(normalSpeedFreq*t)+v.noise.Gauss(normalSpeedNoise), normalSpeedMin, normalSpeedMax)
	}
	v.distance += math.Max(0, v.speed/secondsPerHour*elapsedSeconds)
	v.tick++

	out := model.NewSignalMap()
	out.Set(model.PathVehicleSpeed, model.Float(round(v.speed, 1)))
	out.Set(model.PathTraveledDistance, model.Float(round(v.distance, 3)))
	return out
}

// Reset restores the constructor state.
func (v *VehicleModel) Reset() {
	v.tick = 0
	v.speed = 0
	v.distance = 0
	v.warningSpeed = warningSpeedStart
	v.lowSpeed = lowSpeedStart
}
