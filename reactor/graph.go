package reactor

// baseObservable is the embeddable identity+observer-set shared by Atom and
// ComputedValue (a computed is both a derivation and an observable).
//
// diffValue is scratch space owned entirely by bindDependencies: it is
// always 0 on entry to a tracking pass and always reset to 0 before that
// pass returns. It exists purely so a derivation's observing-set diff can be
// done in time proportional to the number of dependencies touched, not to
// the size of any global registry.
type baseObservable struct {
	id                   uint64
	Name                 string
	observers            []derivation
	lowestObserverState  DependencyState
	diffValue            int8
}

func (o *baseObservable) addObserver(d derivation) {
	o.observers = append(o.observers, d)
}

func (o *baseObservable) removeObserver(d derivation) {
	for i, x := range o.observers {
		if x == d {
			last := len(o.observers) - 1
			o.observers[i] = o.observers[last]
			o.observers[last] = nil
			o.observers = o.observers[:last]
			return
		}
	}
}

// removeAllObservers detaches every derivation currently observing o from
// its own observing set, then clears o.observers. Used when disposing an
// owner (an Administration) whose atoms must stop being observed by
// anything still holding a stale reference to them.
func (o *baseObservable) removeAllObservers() {
	for _, d := range o.observers {
		dd := d.der()
		for i, ob := range dd.observing {
			if ob.obs() == o {
				last := len(dd.observing) - 1
				dd.observing[i] = dd.observing[last]
				dd.observing[last] = nil
				dd.observing = dd.observing[:last]
				break
			}
		}
	}
	o.observers = nil
}

// baseDerivation is the embeddable tracking state shared by ComputedValue
// and Reaction. Identity (id/Name) deliberately lives outside it: a
// ComputedValue already carries identity through its observable half, and
// promoting it from both embedded halves would make every selector
// ambiguous.
type baseDerivation struct {
	observing         []observable
	newObserving      []observable
	dependenciesState DependencyState
	runID             uint64
	unboundDepsCount  int
}
