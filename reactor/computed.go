package reactor

import (
	"fmt"
	"reflect"
)

// ComputedValue is a derivation that is also observable: reading it may
// force an upstream recompute chain, and its own observers are invalidated
// whenever its cached value actually changes. fn receives the previously
// cached value (the zero value on the first call) and returns the new one.
type ComputedValue[T any] struct {
	baseObservable
	baseDerivation
	rt               *Runtime
	fn               func(old T) (T, error)
	setter           func(T) error
	value            T
	hasValue         bool
	equals           func(a, b T) bool
	isComputing      bool
	isRunningSetter  bool
	keepAlive        bool
	requiresReaction bool
	exception        error
}

// ComputedOption configures a ComputedValue at construction time.
type ComputedOption[T any] func(*ComputedValue[T])

// WithComputedEquals overrides the default reflect.DeepEqual comparator.
func WithComputedEquals[T any](eq func(a, b T) bool) ComputedOption[T] {
	return func(c *ComputedValue[T]) { c.equals = eq }
}

// WithKeepAlive keeps a computed's observing set bound even with zero
// observers, trading memory for avoiding a teardown/rebuild cycle on
// intermittently-read computeds.
func WithKeepAlive[T any](keep bool) ComputedOption[T] {
	return func(c *ComputedValue[T]) { c.keepAlive = keep }
}

// WithRequiresReaction marks a computed as expected to always be read from
// within a reaction; an unobserved read emits a spy warning event instead
// of silently recomputing every time.
func WithRequiresReaction[T any](req bool) ComputedOption[T] {
	return func(c *ComputedValue[T]) { c.requiresReaction = req }
}

// WithSetter installs a setter, making Set usable on an otherwise
// read-only computed.
func WithSetter[T any](fn func(T) error) ComputedOption[T] {
	return func(c *ComputedValue[T]) { c.setter = fn }
}

// NewComputed creates a ComputedValue. fn must be side-effect free with
// respect to anything other than the atoms/computeds it reads.
func NewComputed[T any](rt *Runtime, name string, fn func(old T) (T, error), opts ...ComputedOption[T]) *ComputedValue[T] {
	c := &ComputedValue[T]{rt: rt, fn: fn}
	c.id = rt.nextID(name)
	c.Name = name
	c.lowestObserverState = StateUpToDate
	c.dependenciesState = StateNotTracking
	c.equals = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ComputedValue[T]) obs() *baseObservable { return &c.baseObservable }
func (c *ComputedValue[T]) der() *baseDerivation { return &c.baseDerivation }

func zeroOf[T any]() T {
	var z T
	return z
}

// Get returns the current cached value, recomputing first if this
// computed's dependenciesState says it might be out of date. If fn raised
// an error (returned or panicked) on the computation that produced the
// currently cached state, that error is returned here instead of a value,
// and keeps being returned on every subsequent Get until a recompute
// succeeds.
func (c *ComputedValue[T]) Get() (T, error) {
	if c.isComputing {
		return zeroOf[T](), &CycleError{Name: c.Name}
	}
	rt := c.rt
	observed := len(c.observers) > 0 || c.keepAlive

	if rt.trackingDerivation == nil && !observed {
		if c.requiresReaction {
			rt.emit(Event{Type: EventReactionScheduled, Name: c.Name + ": read while unobserved"})
		}
		c.trackAndCompute()
		// Nobody is watching this computed, so the dependencies just bound
		// by trackAndCompute are torn down immediately: the value is
		// computed transiently, not cached as a subscription. The next
		// unobserved read recomputes from scratch rather than trusting a
		// dangling dependency set.
		rt.clearObserving(c)
		if c.exception != nil {
			return zeroOf[T](), c.exception
		}
		return c.value, nil
	}

	rt.reportObserved(c)
	if rt.shouldCompute(c) {
		c.trackAndCompute()
	}
	if c.exception != nil {
		return zeroOf[T](), c.exception
	}
	return c.value, nil
}

// refreshIfNeeded forces a recompute if this computed's own dependency
// state requires one, returning whether the cached value actually changed.
// Called by shouldCompute on an ancestor derivation resolving a
// PossiblyStale state.
func (c *ComputedValue[T]) refreshIfNeeded() bool {
	if !c.rt.shouldCompute(c) {
		return false
	}
	return c.trackAndCompute()
}

func (c *ComputedValue[T]) trackAndCompute() (changed bool) {
	rt := c.rt
	c.isComputing = true
	rt.computingDepth++
	oldValue := c.value
	hadValue := c.hasValue
	var newValue T

	trackErr := rt.trackDerivedFunction(c, func() error {
		v, err := c.fn(oldValue)
		if err != nil {
			return err
		}
		newValue = v
		return nil
	})
	rt.computingDepth--
	c.isComputing = false

	if trackErr != nil {
		c.exception = &DerivationError{Name: c.Name, Err: trackErr}
		c.hasValue = false
		// An error is always treated as a change: observers downstream must
		// re-check, even if the last recompute also errored.
		rt.propagateChangeConfirmed(&c.baseObservable)
		return true
	}

	wasErroring := c.exception != nil
	c.exception = nil
	changed = wasErroring || !hadValue || !c.equals(oldValue, newValue)
	c.value = newValue
	c.hasValue = true
	if changed {
		// Every observer still parked at PossiblyStale from the original
		// write sweep is escalated here, from inside the recompute itself,
		// so the escalation reaches all of them regardless of which one
		// asked for the refresh.
		rt.propagateChangeConfirmed(&c.baseObservable)
	}
	return changed
}

// Set delegates to the installed setter, if any. Reentrant setter calls
// (a setter that, directly or indirectly, calls Set on the same computed)
// are rejected as a cycle.
func (c *ComputedValue[T]) Set(v T) error {
	if c.setter == nil {
		return fmt.Errorf("reactor: computed %q has no setter", c.Name)
	}
	if c.isRunningSetter {
		return &CycleError{Name: c.Name}
	}
	c.isRunningSetter = true
	defer func() { c.isRunningSetter = false }()
	return c.setter(v)
}
