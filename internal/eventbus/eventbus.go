package eventbus

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus is the untyped publish/subscribe contract shared by producers
// and collectors.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// New creates an untyped bus.
func New() *TypedBus[Event] { return NewTyped[Event]() }

var _ EventBus = (*TypedBus[Event])(nil)
