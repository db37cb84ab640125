package simulator

import (
	"slices"

	"github.com/ehdgml1/vehicle-sim/core/logger"
	"github.com/ehdgml1/vehicle-sim/core/model"
)

// Diagnostic trouble codes raised by the engine warning scenario.
const (
	DTCMisfire  = "P0301"
	DTCCatalyst = "P0420"

	misfireDelay  = 10
	catalystDelay = 50
)

// FaultCodeModel tracks the ordered set of active diagnostic trouble codes.
type FaultCodeModel struct {
	log    logger.Logger
	active []string
	tick   int
}

// NewFaultCodeModel returns a FaultCodeModel with no active codes.
func NewFaultCodeModel(log logger.Logger) *FaultCodeModel {
	if log == nil {
		log = logger.Nop{}
	}
	return &FaultCodeModel{log: log, active: []string{}}
}

// Generate advances the model by one tick. Only EngineWarning raises codes;
// active codes persist in every scenario.
func (f *FaultCodeModel) Generate(mode model.ScenarioMode) *model.SignalMap {
	if mode == model.EngineWarning {
		if f.tick >= misfireDelay {
			f.Inject(DTCMisfire)
		}
		if f.tick >= catalystDelay {
			f.Inject(DTCCatalyst)
		}
	}
	f.tick++

	out := model.NewSignalMap()
	out.Set(model.PathDTCList, model.Strings(f.active))
	return out
}

// Inject activates code. Injecting an active code is a no-op.
func (f *FaultCodeModel) Inject(code string) {
	if slices.Contains(f.active, code) {
		return
	}
	f.active = append(f.active, code)
	f.log.Infof("DTC injected: %s (total active: %d)", code, len(f.active))
}

// ClearAll removes every active code.
func (f *FaultCodeModel) ClearAll() {
	n := len(f.active)
	f.active = f.active[:0]
	f.log.Infof("DTCs cleared (removed %d codes)", n)
}

// ActiveCodes returns a snapshot of the active codes.
func (f *FaultCodeModel) ActiveCodes() []string {
	return slices.Clone(f.active)
}

// Reset clears all codes and the tick counter.
func (f *FaultCodeModel) Reset() {
	f.active = f.active[:0]
	f.tick = 0
}
