package reactor

// Reaction is a derivation-only node: it reads atoms and computeds but is
// never itself read by anything. When any of its observed values goes
// stale, it is pushed onto the runtime's pending-reaction queue and
// (re)run to completion before the enclosing batch is considered settled.
type Reaction struct {
	baseDerivation
	id             uint64
	Name           string
	rt             *Runtime
	onInvalidate   func()
	errorHandler   func(error, *Reaction)
	isScheduled    bool
	isTrackPending bool
	isRunning      bool
	isDisposed     bool
}

// NewReaction creates a Reaction. onInvalidate is called whenever the
// reaction becomes due to re-run (its dependencies went stale); in this
// core package it is the caller's job to respond to that by calling Track
// again, a higher-level autorun-style facade would do that automatically.
func NewReaction(rt *Runtime, name string, onInvalidate func()) *Reaction {
	r := &Reaction{rt: rt, onInvalidate: onInvalidate}
	r.id = rt.nextID(name)
	r.Name = name
	r.dependenciesState = StateNotTracking
	return r
}

func (r *Reaction) der() *baseDerivation { return &r.baseDerivation }

// SetErrorHandler installs a per-reaction error handler, overriding the
// runtime's global error bus for this reaction's derivation exceptions.
func (r *Reaction) SetErrorHandler(fn func(error, *Reaction)) { r.errorHandler = fn }

// Track runs fn as this reaction's body, recording every atom/computed it
// reads as a fresh dependency set. Call this directly the first time and
// again each time onInvalidate fires.
func (r *Reaction) Track(fn func() error) {
	rt := r.rt
	rt.StartBatch()
	r.isRunning = true
	err := rt.trackDerivedFunction(r, fn)
	r.isRunning = false
	r.isTrackPending = false
	// dependenciesState is left exactly as trackDerivedFunction/bindDependencies
	// computed it, not forced back to UpToDate here: a write fn made mid-run
	// to one of its own dependencies already moved it to Stale, and that
	// mark must survive so the reaction gets rescheduled instead of being
	// mistaken for settled.

	if r.isDisposed {
		rt.clearObserving(r)
	}
	if err != nil {
		r.reportException(err)
	}
	rt.EndBatch()
}

// runReaction is invoked by the scheduler drain loop. It re-evaluates
// whether the reaction is actually due to run (a PossiblyStale reaction
// may turn out its upstream computeds didn't really change) and, if so,
// fires onInvalidate so the caller re-Tracks it.
func (r *Reaction) runReaction() {
	if r.isDisposed {
		return
	}
	rt := r.rt
	rt.StartBatch()
	r.isScheduled = false
	if rt.shouldCompute(r) {
		r.isTrackPending = true
		rt.emit(Event{Type: EventReactionRan, Name: r.Name})
		if r.onInvalidate != nil {
			r.onInvalidate()
		}
		if r.isTrackPending {
			// onInvalidate returned without calling Track (a deferred or
			// async re-track); surface that for introspection.
			rt.emit(Event{Type: EventReactionScheduled, Name: r.Name})
		}
	}
	rt.EndBatch()
}

// Schedule pushes the reaction onto the runtime's pending queue and kicks
// the scheduler. Safe to call redundantly; a reaction already scheduled or
// disposed is a no-op.
func (r *Reaction) Schedule() {
	if r.isDisposed || r.isScheduled {
		return
	}
	r.isScheduled = true
	r.rt.pendingReactions = append(r.rt.pendingReactions, r)
	r.rt.runReactions()
}

// Dispose clears the reaction's observing set and marks it disposed; any
// subsequent Schedule/runReaction call is a no-op. Safe to call from
// within the reaction's own body (disposal is deferred to the end of the
// current Track).
func (r *Reaction) Dispose() {
	if r.isDisposed {
		return
	}
	r.isDisposed = true
	if !r.isRunning {
		rt := r.rt
		rt.StartBatch()
		rt.clearObserving(r)
		rt.EndBatch()
	}
}

// reportException routes a derivation exception to the per-reaction
// handler if one is installed, otherwise to the runtime's global error bus
// and logger.
func (r *Reaction) reportException(err error) {
	if r.errorHandler != nil {
		r.errorHandler(err, r)
		return
	}
	r.rt.logger.Printf("reactor: uncaught error in reaction %q: %v", r.Name, err)
	r.rt.reportGlobalError(err, r)
	r.rt.emit(Event{Type: EventError, Name: r.Name, Err: err})
}
