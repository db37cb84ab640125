package simulator

import "github.com/ehdgml1/vehicle-sim/core/model"

const (
	DefaultHvacTarget  = 22.0
	DefaultHvacAmbient = 25.0
	HvacTargetMin      = 16.0
	HvacTargetMax      = 30.0

	ambientConvergence = 0.02
	ambientNoise       = 0.1
)

// HvacModel keeps the cabin set-point and moves the ambient temperature
// toward it. It behaves the same in every scenario.
type HvacModel struct {
	noise   *Noise
	target  float64
	ambient float64
	tick    int
}

// NewHvacModel returns an HvacModel with the given set-point and ambient
// temperature. The set-point is clamped to [16, 30].
func NewHvacModel(n *Noise, target, ambient float64) *HvacModel {
	return &HvacModel{noise: n, target: Clamp(target, HvacTargetMin, HvacTargetMax), ambient: ambient}
}

// Target returns the current set-point.
func (h *HvacModel) Target() float64 { return h.target }

// SetTarget changes the set-point, clamped to [16, 30].
func (h *HvacModel) SetTarget(v float64) { h.target = Clamp(v, HvacTargetMin, HvacTargetMax) }

// Ambient returns the unrounded cabin temperature.
func (h *HvacModel) Ambient() float64 { return h.ambient }

// Generate advances the model by one tick. The scenario is ignored.
func (h *HvacModel) Generate(model.ScenarioMode) *model.SignalMap {
	h.ambient += ambientConvergence*(h.target-h.ambient) + h.noise.Gauss(ambientNoise)
	h.tick++

	out := model.NewSignalMap()
	out.Set(model.PathHvacTarget, model.Float(round(h.target, 1)))
	out.Set(model.PathAmbientAirTemp, model.Float(round(h.ambient, 1)))
	return out
}

// Reset returns to the default set-point and ambient temperature,
// regardless of the constructor arguments.
func (h *HvacModel) Reset() {
	h.target = DefaultHvacTarget
	h.ambient = DefaultHvacAmbient
	h.tick = 0
}
