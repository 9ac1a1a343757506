package radio

// EventKind classifies sequencer events.
type EventKind int

// Event kinds.
const (
	// EventStage is emitted when a stage completes.
	EventStage EventKind = iota
	// EventTimeout is emitted when a scan finds no expected response.
	EventTimeout
	// EventReset is emitted after a hardware reset.
	EventReset
	// EventReady is emitted when the module enters relay mode.
	EventReady
	// EventAssociated is emitted when the module reported an IP during startup.
	EventAssociated
	// EventConfigure is emitted when a new record is accepted.
	EventConfigure
)

var eventNames = [...]string{"stage", "timeout", "reset", "ready", "associated", "configure"}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event describes a sequencer transition.
type Event struct {
	Kind     EventKind
	Task     TaskState
	Stage    Stage
	Sends    int
	Timeouts int
	// Millis is the clock reading at the event.
	Millis uint32
}

// Observer receives sequencer events. It is called on the loop goroutine
// and must not block.
type Observer interface {
	RadioEvent(Event)
}

// ObserverFunc is func type of Observer.
type ObserverFunc func(Event)

// RadioEvent implements Observer.
func (f ObserverFunc) RadioEvent(ev Event) {
	f(ev)
}

// Observers fans out events.
type Observers []Observer

// RadioEvent implements Observer.
func (o Observers) RadioEvent(ev Event) {
	for _, ob := range o {
		ob.RadioEvent(ev)
	}
}
