package reactor

// DependencyState mirrors a derivation's cache status relative to the atoms
// it reads. It only ever moves forward within a single propagation pass:
// UpToDate -> PossiblyStale -> Stale, and resets to UpToDate once the
// derivation has been recomputed (or proven unaffected).
type DependencyState int8

const (
	// StateNotTracking means the derivation has never run, or was disposed
	// and cleared; it has no observing set to speak of.
	StateNotTracking DependencyState = iota
	// StateUpToDate means the cached value is known good.
	StateUpToDate
	// StatePossiblyStale means a transitive dependency changed upstream of a
	// computed in the observing set, but that computed hasn't been asked to
	// recompute yet, so whether this derivation's cache is actually invalid
	// isn't known.
	StatePossiblyStale
	// StateStale means a directly observed atom changed; recomputation is
	// required before the cached value can be trusted.
	StateStale
)

// observable is anything that can sit on the dependency side of a link:
// a plain Atom or a ComputedValue acting as one.
type observable interface {
	obs() *baseObservable
}

// derivation is anything that can sit on the subscriber side of a link:
// a ComputedValue or a Reaction.
type derivation interface {
	der() *baseDerivation
}

// computedRefresher is the subset of ComputedValue's behavior the runtime
// needs without knowing its type parameter: the ability to force a refresh
// and report whether the cached value actually changed.
type computedRefresher interface {
	derivation
	observable
	refreshIfNeeded() bool
}
