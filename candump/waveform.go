package candump

import (
	"math"

	"github.com/ehdgml1/vehicle-sim/core/simulator"
)

// Waveform produces a physical value for a time offset in seconds.
type Waveform interface {
	At(t float64) float64
}

type sine struct {
	mid, amp, freq float64
	noise          float64
	lo, hi         float64
	rng            *simulator.Noise
}

func (s sine) At(t float64) float64 {
	v := s.mid + s.amp*math.Sin(2*math.Pi*s.freq*t) + s.rng.Uniform(s.noise)
	return simulator.Clamp(v, s.lo, s.hi)
}

type ramp struct {
	from, to float64
	over     float64
	noise    float64
	rng      *simulator.Noise
}

// At moves linearly from from to to over the ramp duration and holds the
// end value afterwards. Output stays within the ramp's own span in either
// direction.
func (r ramp) At(t float64) float64 {
	progress := math.Min(1, t/math.Max(r.over, 1e-9))
	v := r.from + progress*(r.to-r.from) + r.rng.Uniform(r.noise)
	return simulator.Clamp(v, math.Min(r.from, r.to), math.Max(r.from, r.to))
}

type constant float64

func (c constant) At(float64) float64 { return float64(c) }

// clampRange narrows [lo, hi] to the preferred [plo, phi]. When they do not
// overlap the full signal range is kept.
func clampRange(lo, hi, plo, phi float64) (float64, float64) {
	clo, chi := math.Max(lo, plo), math.Min(hi, phi)
	if clo >= chi {
		return lo, hi
	}
	return clo, chi
}

func newSine(lo, hi, freq, noise float64, rng *simulator.Noise) sine {
	return sine{
		mid:   (lo + hi) / 2,
		amp:   (hi - lo) / 2,
		freq:  freq,
		noise: noise * (hi - lo),
		lo:    lo,
		hi:    hi,
		rng:   rng,
	}
}

func newRamp(from, to, over, noise float64, rng *simulator.Noise) ramp {
	return ramp{from: from, to: to, over: over, noise: noise * math.Abs(to-from), rng: rng}
}

// NewWaveform builds the waveform for s over a run of duration seconds.
func NewWaveform(s *Signal, duration float64, rng *simulator.Noise) Waveform {
	lo, hi := s.Min, s.Max
	switch s.Role {
	case RoleEngineSpeed:
		clo, chi := clampRange(lo, hi, 800, 3000)
		return newSine(clo, chi, 0.05, 0.01, rng)
	case RoleVehicleSpeed:
		clo, chi := clampRange(lo, hi, 40, 80)
		return newSine(clo, chi, 0.03, 0.005, rng)
	case RoleTemperature:
		clo, chi := clampRange(lo, hi, 88, 95)
		return newRamp(clo, chi, duration*0.6, 0.02, rng)
	case RoleStateOfCharge:
		clo, chi := clampRange(lo, hi, 70, 75)
		return newRamp(chi, clo, duration, 0.005, rng)
	case RoleVoltage:
		clo, chi := clampRange(lo, hi, 375, 385)
		return newRamp(chi, clo, duration, 0.003, rng)
	case RoleDistance:
		start := math.Max(lo, 12345)
		end := math.Min(hi, start+50*duration/3600)
		return newRamp(start, end, duration, 0, rng)
	case RoleDTC:
		return constant(math.Max(lo, 0))
	}
	mid := (lo + hi) / 2
	spread := (hi - lo) / 6
	return newSine(mid-spread, mid+spread, 0.02, 0.01, rng)
}
