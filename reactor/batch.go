package reactor

// StartBatch increments the batch depth. Writes made between StartBatch
// and the matching EndBatch are coalesced: reactions only run once the
// outermost batch ends, not after every individual Atom.ReportChanged.
func (rt *Runtime) StartBatch() { rt.inBatch++ }

// EndBatch decrements the batch depth and, if it has returned to zero,
// drains the pending-reaction queue.
func (rt *Runtime) EndBatch() {
	rt.inBatch--
	if rt.inBatch == 0 {
		rt.runReactions()
	}
}

// Batch runs fn inside StartBatch/EndBatch, the common case where the
// caller doesn't need to interleave other work between the two.
func (rt *Runtime) Batch(fn func()) {
	rt.StartBatch()
	defer rt.EndBatch()
	fn()
}

// runReactions kicks the installed scheduler, which eventually calls
// runReactionsHelper. It is a no-op while still inside a batch, or while
// reactions are already draining (reentrant schedule calls just enqueue).
func (rt *Runtime) runReactions() {
	if rt.inBatch > 0 || rt.isRunningReactions {
		return
	}
	rt.scheduler(rt.runReactionsHelper)
}

// runReactionsHelper drains rt.pendingReactions to empty, running each
// reaction's runReaction in FIFO order within a round; running a round can
// itself schedule more reactions (a reaction's side effects write to
// atoms), so the loop keeps going until a round produces no new pending
// reactions. If that doesn't happen within maxIterations rounds, the
// queue is dropped and ErrDivergence is logged: a reaction is presumed to
// be oscillating forever instead of settling.
func (rt *Runtime) runReactionsHelper() {
	rt.isRunningReactions = true
	defer func() { rt.isRunningReactions = false }()

	iterations := 0
	for len(rt.pendingReactions) > 0 {
		iterations++
		if iterations >= rt.maxIterations {
			first := rt.pendingReactions[0]
			rt.logger.Printf("reactor: %v: reaction %q did not converge after %d iterations", ErrDivergence, first.Name, iterations)
			rt.pendingReactions = nil
			return
		}
		round := rt.pendingReactions
		rt.pendingReactions = nil
		for _, r := range round {
			r.runReaction()
		}
	}
}

// SetReactionScheduler wraps the current scheduler with fn: fn receives a
// closure that runs the previously-installed scheduler's drain. Composing
// schedulers this way (rather than replacing wholesale) lets each added
// layer decide whether/when to let the next one run, while the innermost,
// default scheduler always drains synchronously.
func (rt *Runtime) SetReactionScheduler(fn func(run func())) {
	prev := rt.scheduler
	rt.scheduler = func(drain func()) {
		fn(func() { prev(drain) })
	}
}
