package broker

import (
	"context"

	"github.com/ehdgml1/vehicle-sim/core/model"
)

// Sink publishes a complete signal map to the signal broker.
type Sink interface {
	Publish(ctx context.Context, signals *model.SignalMap) error
}

// Source reads the latest externally commanded value of a VSS path.
// It returns ErrNoValue when nothing has been commanded yet.
type Source interface {
	CurrentValue(ctx context.Context, path string) (model.SignalValue, error)
}

// CommandKind identifies a runtime command received from the broker.
type CommandKind int

const (
	CommandSetScenario CommandKind = iota
	CommandInjectDTC
	CommandClearDTCs
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetScenario:
		return "set_scenario"
	case CommandInjectDTC:
		return "inject_dtc"
	case CommandClearDTCs:
		return "clear_dtcs"
	default:
		return "unknown"
	}
}

// Command is a runtime instruction for the simulator.
type Command struct {
	Kind     CommandKind
	Scenario model.ScenarioMode
	Code     string
}

// Commander exposes commands received from the broker. The channel is
// drained by the publish loop between cycles.
type Commander interface {
	Commands() <-chan Command
}

// Conn is a broker connection that can be (re)dialled and closed.
type Conn interface {
	// Dial performs a single connection attempt.
	Dial(ctx context.Context) error
	Close()
}

// Broker groups every capability the publish loop needs.
type Broker interface {
	Conn
	Sink
	Source
	Commander
}
