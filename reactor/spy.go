package reactor

// EventType classifies a single spy/introspection notification.
type EventType int

const (
	EventAdd EventType = iota
	EventUpdate
	EventRemove
	EventReactionScheduled
	EventReactionRan
	EventError
)

// Event is the payload delivered to a SpyFunc. Name is the atom,
// computed, reaction or property name involved; Err is only set for
// EventError.
type Event struct {
	Type EventType
	Name string
	Err  error
}

// SpyFunc receives every Event a Runtime emits. Spying is a pure
// introspection hook: it must not mutate observables, and the runtime never
// waits on it.
type SpyFunc func(Event)

// SetSpy installs fn as the runtime's single spy listener. Passing nil
// disables spying. Only one listener is supported at the core-runtime
// level; a facade wanting fan-out composes multiple listeners itself.
func (rt *Runtime) SetSpy(fn SpyFunc) { rt.spy = fn }

func (rt *Runtime) emit(e Event) {
	if rt.spy != nil {
		rt.spy(e)
	}
}
