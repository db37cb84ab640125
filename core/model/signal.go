package model

import "encoding/json"

// VSS paths produced by the simulator.
const (
	PathEngineSpeed      = "Vehicle.Powertrain.CombustionEngine.Speed"
	PathEngineECT        = "Vehicle.Powertrain.CombustionEngine.ECT"
	PathVehicleSpeed     = "Vehicle.Speed"
	PathTraveledDistance = "Vehicle.TraveledDistance"
	PathHvacTarget       = "Vehicle.Cabin.HVAC.Station.Row1.Driver.Temperature"
	PathAmbientAirTemp   = "Vehicle.Cabin.HVAC.AmbientAirTemperature"
	PathBatterySoC       = "Vehicle.Powertrain.TractionBattery.StateOfCharge.Current"
	PathBatteryVoltage   = "Vehicle.Powertrain.TractionBattery.CurrentVoltage"
	PathBatteryTemp      = "Vehicle.Powertrain.TractionBattery.Temperature.Average"
	PathDTCList          = "Vehicle.OBD.DTCList"
)

// SignalValue holds either a float reading or a list of strings.
type SignalValue struct {
	num   float64
	list  []string
	isStr bool
}

// Float wraps a numeric reading.
func Float(v float64) SignalValue { return SignalValue{num: v} }

// Strings wraps a string list. A nil slice is stored as an empty list.
func Strings(v []string) SignalValue {
	cp := make([]string, len(v))
	copy(cp, v)
	return SignalValue{list: cp, isStr: true}
}

// IsList reports whether the value carries a string list.
func (v SignalValue) IsList() bool { return v.isStr }

// Float returns the numeric value and whether the value is numeric.
func (v SignalValue) Float() (float64, bool) { return v.num, !v.isStr }

// List returns a copy of the string list and whether the value is a list.
func (v SignalValue) List() ([]string, bool) {
	if !v.isStr {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Interface returns the underlying value as float64 or []string.
func (v SignalValue) Interface() any {
	if v.isStr {
		l, _ := v.List()
		return l
	}
	return v.num
}

// MarshalJSON encodes the value as a JSON number or array.
func (v SignalValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a JSON number or an array of strings.
func (v *SignalValue) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*v = Strings(list)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Float(f)
	return nil
}

// SignalMap is an insertion-ordered mapping from VSS path to value.
type SignalMap struct {
	keys   []string
	values map[string]SignalValue
}

// NewSignalMap returns an empty SignalMap.
func NewSignalMap() *SignalMap {
	return &SignalMap{values: make(map[string]SignalValue)}
}

// Set stores a value. Re-setting an existing path keeps its position.
func (m *SignalMap) Set(path string, v SignalValue) {
	if m.values == nil {
		m.values = make(map[string]SignalValue)
	}
	if _, ok := m.values[path]; !ok {
		m.keys = append(m.keys, path)
	}
	m.values[path] = v
}

// Get returns the value stored for path.
func (m *SignalMap) Get(path string) (SignalValue, bool) {
	if m == nil {
		return SignalValue{}, false
	}
	v, ok := m.values[path]
	return v, ok
}

// Float returns the numeric value stored for path.
func (m *SignalMap) Float(path string) (float64, bool) {
	v, ok := m.Get(path)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Merge appends every entry of other in its order.
func (m *SignalMap) Merge(other *SignalMap) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.Set(k, other.values[k])
	}
}

// Paths returns the keys in insertion order.
func (m *SignalMap) Paths() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *SignalMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *SignalMap) Range(fn func(path string, v SignalValue) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Map returns a plain map of path to float64 or []string.
func (m *SignalMap) Map() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(p string, v SignalValue) bool {
		out[p] = v.Interface()
		return true
	})
	return out
}

// MarshalJSON encodes the map as a JSON object keeping insertion order.
func (m *SignalMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.Paths() {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return append(buf, '}'), nil
}
