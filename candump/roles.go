package candump

import "strings"

// Role selects the waveform a signal is driven with.
type Role int

const (
	RoleGeneric Role = iota
	RoleEngineSpeed
	RoleVehicleSpeed
	RoleTemperature
	RoleStateOfCharge
	RoleVoltage
	RoleDistance
	RoleDTC
)

var roleNames = map[Role]string{
	RoleGeneric:       "generic",
	RoleEngineSpeed:   "engine_speed",
	RoleVehicleSpeed:  "vehicle_speed",
	RoleTemperature:   "temperature",
	RoleStateOfCharge: "state_of_charge",
	RoleVoltage:       "voltage",
	RoleDistance:      "distance",
	RoleDTC:           "dtc",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

func keywords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var (
	rpmNames      = keywords("rpm", "enginespeed", "enginerpm")
	speedNames    = keywords("speed", "velocity", "vspd")
	tempNames     = keywords("temp", "temperature", "ect", "coolant")
	socNames      = keywords("soc", "stateofcharge", "batterysoc")
	voltageNames  = keywords("voltage", "volt", "batteryvoltage")
	distanceNames = keywords("distance", "odometer", "traveled")
	dtcNames      = keywords("dtc", "dtccount", "fault", "code")
)

// normalize lowercases a signal name and drops underscores and spaces.
func normalize(name string) string {
	return strings.NewReplacer("_", "", " ", "").Replace(strings.ToLower(name))
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// DetectRole classifies a signal by its whole normalized name or its unit.
// Partial names such as "EngineCoolantTemp" fall through to RoleGeneric
// unless the unit identifies them.
func DetectRole(name, unit string) Role {
	n := normalize(name)
	u := strings.ToLower(strings.TrimSpace(unit))
	switch {
	case has(rpmNames, n) || u == "rpm":
		return RoleEngineSpeed
	case has(speedNames, n) || u == "km/h":
		return RoleVehicleSpeed
	case has(tempNames, n) || u == "degc" || u == "°c":
		return RoleTemperature
	case has(socNames, n) || (u == "%" && strings.Contains(n, "soc")):
		return RoleStateOfCharge
	case has(voltageNames, n) || u == "v" || u == "volt":
		return RoleVoltage
	case has(distanceNames, n) || u == "km":
		return RoleDistance
	case has(dtcNames, n):
		return RoleDTC
	}
	return RoleGeneric
}
