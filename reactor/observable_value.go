package reactor

// Enhancer transforms a proposed new value before it is stored, given the
// previous value and the observable's name (for diagnostics). The identity
// enhancer, ReferenceEnhancer, is the only one this runtime implements: the
// policy that decides how deeply a value is made observable (arrays, maps,
// nested objects) is an external collaborator's concern, not the core's.
type Enhancer[T any] func(newValue, oldValue T, name string) T

// ReferenceEnhancer stores values exactly as given.
func ReferenceEnhancer[T any](newValue, oldValue T, name string) T { return newValue }

// ObservableValue is an Atom that also stores a value of type T, with a
// configurable enhancer and equality comparator. T is constrained to
// comparable so the default equals can be a plain ==; NewObservableValueWithEquals
// accepts a custom comparator for callers (such as Administration, which
// boxes arbitrary host values as `any`) that need structural equality
// instead.
type ObservableValue[T comparable] struct {
	Atom
	value    T
	enhancer Enhancer[T]
	equals   func(a, b T) bool
}

// NewObservableValue creates an ObservableValue using == for equality.
func NewObservableValue[T comparable](rt *Runtime, name string, initial T, enhancer Enhancer[T]) *ObservableValue[T] {
	return NewObservableValueWithEquals(rt, name, initial, enhancer, func(a, b T) bool { return a == b })
}

// NewObservableValueWithEquals creates an ObservableValue with a custom
// equality comparator, used in place of ==.
func NewObservableValueWithEquals[T comparable](rt *Runtime, name string, initial T, enhancer Enhancer[T], equals func(a, b T) bool) *ObservableValue[T] {
	if enhancer == nil {
		enhancer = ReferenceEnhancer[T]
	}
	ov := &ObservableValue[T]{enhancer: enhancer, equals: equals}
	ov.rt = rt
	ov.id = rt.nextID(name)
	ov.Name = name
	ov.lowestObserverState = StateUpToDate
	ov.value = enhancer(initial, initial, name)
	return ov
}

// Get reports this value as observed by the tracking derivation (if any)
// and returns the current value.
func (o *ObservableValue[T]) Get() T {
	o.ReportObserved()
	return o.value
}

// peek reads the current value without subscribing anything to it. Used
// internally wherever a write needs the old value for a Change record.
func (o *ObservableValue[T]) peek() T { return o.value }

// Set runs v through the enhancer and, if the resulting value differs from
// the current one under the equality comparator, stores it and propagates
// the change. Must be called from inside a batch; see Atom.ReportChanged.
// Returns the value actually stored (post-enhancer) and whether it changed.
func (o *ObservableValue[T]) Set(v T) (newValue T, changed bool) {
	// Checked before the assignment so a vetoed write leaves the stored
	// value untouched.
	if o.rt.computingDepth > 0 {
		panic(&CycleError{Name: o.Name, SideEffect: true})
	}
	newV := o.enhancer(v, o.value, o.Name)
	if o.equals(o.value, newV) {
		return o.value, false
	}
	o.value = newV
	o.ReportChanged()
	return o.value, true
}

// PrepareNewValue runs v through the enhancer and equality comparator
// without storing it, letting a caller decide what to do with the
// prospective value before committing it with Set.
func (o *ObservableValue[T]) PrepareNewValue(v T) (newValue T, changed bool) {
	newV := o.enhancer(v, o.value, o.Name)
	return newV, !o.equals(o.value, newV)
}
