package reactor

import "fmt"

// reportObserved registers o as a dependency of the currently tracking
// derivation, if there is one. Returns false when nothing is tracking
// (a plain, untracked read).
func (rt *Runtime) reportObserved(o observable) bool {
	d := rt.trackingDerivation
	if d == nil {
		return false
	}
	dd := d.der()
	dd.newObserving = append(dd.newObserving, o)
	return true
}

// trackDerivedFunction runs fn with d installed as the tracking derivation,
// collecting every observable fn reads into d's newObserving list, then
// binds that list as d's new observing set. Panics from fn are recovered
// and surfaced as an error, exactly like a returned error, so a derivation
// body can use either style.
func (rt *Runtime) trackDerivedFunction(d derivation, fn func() error) error {
	dd := d.der()
	prev := rt.trackingDerivation
	rt.trackingDerivation = d
	rt.runSeq++
	dd.runID = rt.runSeq
	dd.newObserving = dd.newObserving[:0]

	// d is about to observe its dependencies afresh, so it must look
	// UpToDate to propagateChanged/propagatePossiblyStale for the duration
	// of fn: a write fn makes to an atom it already observes (a reaction
	// that reads and writes the same value) has to be seen as a fresh
	// change and reschedule d, not be swallowed because d's state was still
	// Stale/PossiblyStale from the write that triggered this very run.
	dd.dependenciesState = StateUpToDate

	err := runCaptured(fn)
	dd.unboundDepsCount = len(dd.newObserving)

	rt.bindDependencies(d)
	rt.trackingDerivation = prev
	return err
}

func runCaptured(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("reactor: panic in derivation body: %v", r)
			}
		}
	}()
	err = fn()
	return err
}

// bindDependencies reconciles d's previous observing set against the set
// just collected into newObserving, using each observable's diffValue as
// O(1) scratch space: an atom read in both passes keeps its single
// subscription untouched; one read only this pass is newly subscribed; one
// read only last pass is unsubscribed. Every diffValue touched is restored
// to 0 before this returns, so the next tracking pass starts from a clean
// slate.
func (rt *Runtime) bindDependencies(d derivation) {
	dd := d.der()
	prevObserving := dd.observing
	newObserving := dd.newObserving

	// Compact duplicates in place: only the first read of each observable
	// survives, so the walks below see each dependency exactly once.
	kept := 0
	for _, o := range newObserving {
		b := o.obs()
		if b.diffValue == 0 {
			b.diffValue = 1
			newObserving[kept] = o
			kept++
		}
	}
	newObserving = newObserving[:kept]

	for _, o := range prevObserving {
		b := o.obs()
		if b.diffValue == 0 {
			b.removeObserver(d)
		} else {
			b.diffValue = 0
		}
	}

	for _, o := range newObserving {
		b := o.obs()
		if b.diffValue == 1 {
			b.addObserver(d)
			b.diffValue = 0
		}
	}

	dd.observing = newObserving
	dd.newObserving = prevObserving[:0]

	// Start from whatever dependenciesState already is, not a hardcoded
	// UpToDate: a write fn made mid-run to an atom in this same observing
	// set (d reading and writing the same value) already moved it to
	// Stale/PossiblyStale via propagateChanged, and that mark must survive
	// this reconciliation rather than being overwritten back down.
	state := dd.dependenciesState
	for _, o := range dd.observing {
		if upstream, ok := o.(derivation); ok {
			if s := upstream.der().dependenciesState; s > state {
				state = s
			}
		}
	}
	dd.dependenciesState = state
}

// clearObserving unsubscribes d from everything it currently observes and
// resets its tracking state, used when a Reaction disposes and after a
// computed that nothing observes (and isn't kept alive) is read transiently.
func (rt *Runtime) clearObserving(d derivation) {
	dd := d.der()
	for _, o := range dd.observing {
		o.obs().removeObserver(d)
	}
	dd.observing = dd.observing[:0]
	dd.dependenciesState = StateNotTracking
}

// shouldCompute resolves d's dependenciesState down to a plain bool: does d
// need to recompute/rerun right now. A PossiblyStale state is resolved by
// asking each upstream computed dependency to refresh if it needs to; if
// any of them actually produced a different cached value, d is promoted to
// Stale and must recompute too. This is what keeps the graph glitch-free:
// a diamond-shaped dependency only recomputes the bottom node once, after
// all of its inputs have settled.
func (rt *Runtime) shouldCompute(d derivation) bool {
	dd := d.der()
	switch dd.dependenciesState {
	case StateUpToDate:
		return false
	case StateStale:
		return true
	case StateNotTracking:
		return true
	}

	for _, o := range dd.observing {
		if up, ok := o.(computedRefresher); ok {
			if up.refreshIfNeeded() {
				dd.dependenciesState = StateStale
				return true
			}
		}
	}
	dd.dependenciesState = StateUpToDate
	return false
}

// propagateChanged is the entry point invoked when an Atom (or a computed
// acting as one) is written: every direct observer that was UpToDate moves
// to Stale outright (it depends on the changed value directly), reactions
// are scheduled immediately, and computed observers fan the change out
// further as PossiblyStale.
func (rt *Runtime) propagateChanged(o *baseObservable) {
	for _, obs := range o.observers {
		dd := obs.der()
		if dd.dependenciesState != StateUpToDate {
			continue
		}
		dd.dependenciesState = StateStale
		if r, ok := obs.(*Reaction); ok {
			r.Schedule()
		} else if ob, ok := obs.(observable); ok {
			rt.propagatePossiblyStale(ob.obs())
		}
	}
}

// propagatePossiblyStale fans a possible (not yet certain) change further
// down the graph: a computed whose own inputs may have changed is only
// PossiblyStale until something actually reads it and forces a recompute.
func (rt *Runtime) propagatePossiblyStale(o *baseObservable) {
	for _, obs := range o.observers {
		dd := obs.der()
		if dd.dependenciesState != StateUpToDate {
			continue
		}
		dd.dependenciesState = StatePossiblyStale
		if r, ok := obs.(*Reaction); ok {
			r.Schedule()
		} else if ob, ok := obs.(observable); ok {
			rt.propagatePossiblyStale(ob.obs())
		}
	}
}

// propagateChangeConfirmed is the entry point invoked when a computed's own
// recompute confirms its cached value actually changed. A PossiblyStale
// observer, already reached by the original propagatePossiblyStale sweep
// from whichever atom write started this round, is escalated to Stale. An
// UpToDate observer is left untouched: that state only occurs here when the
// observer is the derivation currently in the middle of its own tracking
// pass (reading this value as one of its dependencies), and its bindDependencies
// call will settle the right state once that pass finishes.
func (rt *Runtime) propagateChangeConfirmed(o *baseObservable) {
	for _, obs := range o.observers {
		dd := obs.der()
		if dd.dependenciesState == StatePossiblyStale {
			dd.dependenciesState = StateStale
		}
	}
}
