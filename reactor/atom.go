package reactor

// Atom is a leaf observable: it carries no value of its own, only identity
// and an observer set. Host code that manages its own storage (outside an
// ObservableValue) embeds an Atom and calls ReportObserved/ReportChanged
// around its reads and writes.
type Atom struct {
	baseObservable
	rt *Runtime
}

// NewAtom creates a standalone Atom. name is used only for debug IDs and
// diagnostics; it need not be unique.
func NewAtom(rt *Runtime, name string) *Atom {
	a := &Atom{rt: rt}
	a.id = rt.nextID(name)
	a.Name = name
	a.lowestObserverState = StateUpToDate
	return a
}

func (a *Atom) obs() *baseObservable { return &a.baseObservable }

// ReportObserved registers the currently tracking derivation, if any, as an
// observer of this atom. Returns true if there was one to register.
func (a *Atom) ReportObserved() bool {
	return a.rt.reportObserved(a)
}

// ReportChanged propagates invalidation to every current observer. Must be
// called from inside a batch (StartBatch/EndBatch or Runtime.Batch); calling
// it outside one is a usage error, since write-time invalidation is only
// meaningful as part of a transaction that ends by draining reactions. A
// write from inside a computed's own body is a cycle: the computed's result
// would depend on a mutation it caused itself.
func (a *Atom) ReportChanged() {
	if a.rt.computingDepth > 0 {
		panic(&CycleError{Name: a.Name, SideEffect: true})
	}
	if a.rt.inBatch == 0 {
		panic("reactor: Atom.ReportChanged called outside a batch")
	}
	a.rt.propagateChanged(&a.baseObservable)
}
