package simulator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

const testSeed = 42

func mustFloat(t *testing.T, m *model.SignalMap, path string) float64 {
	t.Helper()
	v, ok := m.Float(path)
	require.True(t, ok, "missing float %s", path)
	return v
}

func TestNoiseStatistics(t *testing.T) {
	n := NewNoise(testSeed)
	samples := make([]float64, 20000)
	for i := range samples {
		samples[i] = n.Gauss(2)
	}
	mean, std := stat.MeanStdDev(samples, nil)
	assert.InDelta(t, 0, mean, 0.1)
	assert.InDelta(t, 2, std, 0.1)

	for i := 0; i < 1000; i++ {
		u := n.Uniform(0.5)
		assert.GreaterOrEqual(t, u, -0.5)
		assert.LessOrEqual(t, u, 0.5)
	}
	assert.Zero(t, n.Gauss(0))
	assert.Zero(t, n.Uniform(0))
}

func TestNoiseSeedReproducible(t *testing.T) {
	a, b := NewNoise(7), NewNoise(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Gauss(1), b.Gauss(1))
	}
}

func TestEngineBounds(t *testing.T) {
	bounds := map[model.ScenarioMode][4]float64{
		model.NormalDriving: {800, 3000, 85, 95},
		model.EngineWarning: {500, 5000, 95, 115},
		model.BatteryLow:    {800, 2000, 82, 93},
	}
	for mode, b := range bounds {
		e := NewEngineModel(NewNoise(testSeed))
		for i := 0; i < 250; i++ {
			out := e.Generate(mode)
			rpm := mustFloat(t, out, model.PathEngineSpeed)
			ect := mustFloat(t, out, model.PathEngineECT)
			require.True(t, rpm >= b[0] && rpm <= b[1], "%s rpm %v out of range", mode, rpm)
			require.True(t, ect >= b[2] && ect <= b[3], "%s ect %v out of range", mode, ect)
		}
	}
}

func TestEngineNormalMean(t *testing.T) {
	e := NewEngineModel(NewNoise(testSeed))
	rpms := make([]float64, 1257)
	for i := range rpms {
		rpms[i] = mustFloat(t, e.Generate(model.NormalDriving), model.PathEngineSpeed)
	}
	assert.InDelta(t, 1500, stat.Mean(rpms, nil), 30)
}

func TestEngineWarningECTRatchet(t *testing.T) {
	e := NewEngineModel(NewNoise(testSeed))
	prev := 0.0
	var ect float64
	for i := 0; i < 501; i++ {
		ect = mustFloat(t, e.Generate(model.EngineWarning), model.PathEngineECT)
		require.GreaterOrEqual(t, ect, prev)
		prev = ect
	}
	assert.LessOrEqual(t, ect, 115.0)
	assert.Greater(t, ect, 95.0)
}

func TestVehicleBoundsAndDistance(t *testing.T) {
	bounds := map[model.ScenarioMode][2]float64{
		model.NormalDriving: {40, 80},
		model.EngineWarning: {20, 60},
		model.BatteryLow:    {10, 50},
	}
	for mode, b := range bounds {
		v := NewVehicleModel(NewNoise(testSeed))
		prevDist := 0.0
		for i := 0; i < 250; i++ {
			out := v.Generate(mode, 0.5)
			speed := mustFloat(t, out, model.PathVehicleSpeed)
			dist := mustFloat(t, out, model.PathTraveledDistance)
			require.True(t, speed >= b[0] && speed <= b[1], "%s speed %v out of range", mode, speed)
			require.GreaterOrEqual(t, dist, prevDist)
			prevDist = dist
		}
		assert.Greater(t, prevDist, 0.0)
	}
}

func TestVehicleDecayOnly(t *testing.T) {
	for _, mode := range []model.ScenarioMode{model.EngineWarning, model.BatteryLow} {
		v := NewVehicleModel(NewNoise(testSeed))
		prev := 1000.0
		for i := 0; i < 300; i++ {
			speed := mustFloat(t, v.Generate(mode, 0.5), model.PathVehicleSpeed)
			require.LessOrEqual(t, speed, prev, "%s speed increased at tick %d", mode, i)
			prev = speed
		}
	}
}

func TestVehicleZeroElapsed(t *testing.T) {
	v := NewVehicleModel(NewNoise(testSeed))
	for i := 0; i < 10; i++ {
		out := v.Generate(model.NormalDriving, 0)
		assert.Zero(t, mustFloat(t, out, model.PathTraveledDistance))
	}
}

func TestVehicleReset(t *testing.T) {
	v := NewVehicleModel(NewNoise(testSeed))
	for i := 0; i < 100; i++ {
		v.Generate(model.BatteryLow, 1)
	}
	v.Reset()
	v.Reset()
	out := v.Generate(model.NormalDriving, 0)
	speed := mustFloat(t, out, model.PathVehicleSpeed)
	assert.True(t, speed >= 40 && speed <= 80)
	assert.Zero(t, mustFloat(t, out, model.PathTraveledDistance))
}

func TestHvacConvergence(t *testing.T) {
	for _, start := range []float64{30, 16} {
		h := NewHvacModel(NewNoise(testSeed), 22, start)
		tail := make([]float64, 0, 1500)
		for i := 0; i < 2000; i++ {
			h.Generate(model.NormalDriving)
			if i >= 500 {
				tail = append(tail, h.Ambient())
			}
		}
		assert.InDelta(t, 22, stat.Mean(tail, nil), 1.0, "start %v", start)
	}
}

func TestHvacGapShrinks(t *testing.T) {
	const target = 22.0
	for _, start := range []float64{target - 12, target + 12} {
		for seed := uint64(1); seed <= 20; seed++ {
			h := NewHvacModel(NewNoise(seed), target, start)
			for i := 0; i < 100; i++ {
				h.Generate(model.NormalDriving)
			}
			gap := math.Abs(h.Ambient() - target)
			assert.Less(t, gap, 12.0, "start %v seed %d", start, seed)
		}
	}
}

func TestHvacTargetClamp(t *testing.T) {
	h := NewHvacModel(NewNoise(testSeed), 40, 25)
	assert.Equal(t, 30.0, h.Target())
	h.SetTarget(5)
	assert.Equal(t, 16.0, h.Target())
	h.SetTarget(21.5)
	out := h.Generate(model.EngineWarning)
	assert.Equal(t, 21.5, mustFloat(t, out, model.PathHvacTarget))
	h.Reset()
	assert.Equal(t, DefaultHvacTarget, h.Target())
	assert.Equal(t, DefaultHvacAmbient, h.Ambient())
}

func TestBatteryBounds(t *testing.T) {
	for _, mode := range model.ScenarioModes {
		b := NewBatteryModel(NewNoise(testSeed))
		prevTemp := 0.0
		for i := 0; i < 500; i++ {
			out := b.Generate(mode)
			soc := mustFloat(t, out, model.PathBatterySoC)
			volt := mustFloat(t, out, model.PathBatteryVoltage)
			temp := mustFloat(t, out, model.PathBatteryTemp)
			require.True(t, soc >= 0 && soc <= 100, "%s soc %v", mode, soc)
			require.True(t, volt >= 300 && volt <= 420, "%s voltage %v", mode, volt)
			require.LessOrEqual(t, temp, 45.0)
			require.GreaterOrEqual(t, temp, prevTemp, "%s temperature dropped", mode)
			prevTemp = temp
			if mode == model.BatteryLow {
				require.GreaterOrEqual(t, soc, 5.0)
			}
		}
	}
}

func TestBatteryNormalDrain(t *testing.T) {
	b := NewBatteryModel(NewNoise(testSeed), WithSoC(80))
	var soc float64
	for i := 0; i < 200; i++ {
		soc = mustFloat(t, b.Generate(model.NormalDriving), model.PathBatterySoC)
	}
	assert.GreaterOrEqual(t, soc, 0.0)
	assert.Less(t, soc, 80.0)
}

func TestBatteryLowFloor(t *testing.T) {
	b := NewBatteryModel(NewNoise(testSeed), WithSoC(6))
	for i := 0; i < 200; i++ {
		b.Generate(model.BatteryLow)
	}
	assert.InDelta(t, 5, b.soc, 0.05)
}

func TestBatteryResetRestoresConstructedValues(t *testing.T) {
	b := NewBatteryModel(NewNoise(testSeed), WithSoC(60), WithVoltage(370), WithTemperature(25))
	for i := 0; i < 50; i++ {
		b.Generate(model.BatteryLow)
	}
	b.Reset()
	assert.Equal(t, 60.0, b.soc)
	assert.Equal(t, 370.0, b.voltage)
	assert.Equal(t, 25.0, b.temperature)
}

func TestFaultCodeTiming(t *testing.T) {
	f := NewFaultCodeModel(nil)
	for call := 1; call <= 60; call++ {
		out := f.Generate(model.EngineWarning)
		v, ok := out.Get(model.PathDTCList)
		require.True(t, ok)
		codes, isList := v.List()
		require.True(t, isList)
		if call <= 10 {
			assert.NotContains(t, codes, DTCMisfire, "call %d", call)
		} else {
			assert.Contains(t, codes, DTCMisfire, "call %d", call)
		}
		if call <= 50 {
			assert.NotContains(t, codes, DTCCatalyst, "call %d", call)
		} else {
			assert.Contains(t, codes, DTCCatalyst, "call %d", call)
		}
	}
	assert.Equal(t, []string{DTCMisfire, DTCCatalyst}, f.ActiveCodes())
}

func TestFaultCodePersistence(t *testing.T) {
	f := NewFaultCodeModel(nil)
	f.Inject("P0128")
	f.Inject("P0128")
	for _, mode := range []model.ScenarioMode{model.NormalDriving, model.BatteryLow} {
		for i := 0; i < 100; i++ {
			f.Generate(mode)
		}
	}
	assert.Equal(t, []string{"P0128"}, f.ActiveCodes())

	snap := f.ActiveCodes()
	snap[0] = "mutated"
	assert.Equal(t, []string{"P0128"}, f.ActiveCodes())

	f.ClearAll()
	assert.Empty(t, f.ActiveCodes())
	v, _ := f.Generate(model.NormalDriving).Get(model.PathDTCList)
	codes, _ := v.List()
	assert.NotNil(t, codes)
	assert.Empty(t, codes)
}

func TestFaultCodeReset(t *testing.T) {
	f := NewFaultCodeModel(nil)
	for i := 0; i < 20; i++ {
		f.Generate(model.EngineWarning)
	}
	require.NotEmpty(t, f.ActiveCodes())
	f.Reset()
	assert.Empty(t, f.ActiveCodes())
	for i := 0; i < 10; i++ {
		f.Generate(model.EngineWarning)
	}
	assert.Empty(t, f.ActiveCodes())
}
