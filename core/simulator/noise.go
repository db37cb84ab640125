package simulator

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Noise draws zero-mean Gaussian and uniform samples from a single seedable
// source so a whole run can be reproduced.
type Noise struct {
	src rand.Source
}

// NewNoise returns a Noise seeded with seed. A zero seed picks a random one.
func NewNoise(seed uint64) *Noise {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Noise{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Gauss returns a sample of N(0, sigma). A non-positive sigma yields 0.
func (n *Noise) Gauss(sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return distuv.Normal{Mu: 0, Sigma: sigma, Src: n.src}.Rand()
}

// Uniform returns a sample of U(-amp, amp). A zero amplitude yields 0.
func (n *Noise) Uniform(amp float64) float64 {
	amp = math.Abs(amp)
	if amp == 0 {
		return 0
	}
	return distuv.Uniform{Min: -amp, Max: amp, Src: n.src}.Rand()
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
