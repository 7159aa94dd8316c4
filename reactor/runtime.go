package reactor

import (
	"log"

	"github.com/cespare/xxhash/v2"
)

// DefaultMaxReactionIterations bounds how many times the pending-reaction
// queue may be fully drained and refilled within a single runReactions call
// before the runtime gives up and reports ErrDivergence.
const DefaultMaxReactionIterations = 100

// Runtime is the single piece of mutable shared state every Atom,
// ComputedValue and Reaction is threaded through: batch depth, the
// currently tracking derivation, the pending-reaction queue and the
// installed scheduler/error-handling hooks. It is a constructor-built
// value rather than a package-level global, so a process can host more
// than one independent reactive graph.
type Runtime struct {
	inBatch             int
	computingDepth      int
	trackingDerivation  derivation
	pauseStack          []derivation
	pendingReactions    []*Reaction
	isRunningReactions  bool
	runSeq              uint64
	maxIterations       int
	scheduler           func(drain func())
	logger              *log.Logger
	spy                 SpyFunc
	errorHandlers       []func(error, *Reaction)
	idSeq               uint64
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithMaxReactionIterations overrides DefaultMaxReactionIterations.
func WithMaxReactionIterations(n int) Option {
	return func(rt *Runtime) { rt.maxIterations = n }
}

// WithLogger overrides the runtime's default logger (log.Default()).
func WithLogger(l *log.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithSpy installs a spy listener at construction time; equivalent to
// calling SetSpy immediately after NewRuntime.
func WithSpy(fn SpyFunc) Option {
	return func(rt *Runtime) { rt.spy = fn }
}

// NewRuntime builds a Runtime ready to host atoms, computeds and reactions.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		maxIterations: DefaultMaxReactionIterations,
		logger:        log.Default(),
		scheduler:     func(drain func()) { drain() },
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// RegisterErrorHandler adds fn to the runtime's global error bus; it is
// invoked for any reaction whose derivation exception was not claimed by a
// per-reaction error handler. The returned dispose removes it.
func (rt *Runtime) RegisterErrorHandler(fn func(error, *Reaction)) (dispose func()) {
	rt.errorHandlers = append(rt.errorHandlers, fn)
	idx := len(rt.errorHandlers) - 1
	return func() { rt.errorHandlers[idx] = nil }
}

func (rt *Runtime) reportGlobalError(err error, r *Reaction) {
	for _, h := range rt.errorHandlers {
		if h != nil {
			h(err, r)
		}
	}
}

func (rt *Runtime) nextID(name string) uint64 {
	rt.idSeq++
	if name == "" {
		return rt.idSeq
	}
	return xxhash.Sum64String(name) ^ rt.idSeq
}

// PauseTracking suspends dependency collection for the currently tracking
// derivation, if any, so that reads inside fn don't become dependencies.
// Pairs with ResumeTracking; see Untrack for the common call pattern.
func (rt *Runtime) PauseTracking() {
	rt.pauseStack = append(rt.pauseStack, rt.trackingDerivation)
	rt.trackingDerivation = nil
}

// ResumeTracking restores the derivation suspended by the matching
// PauseTracking call.
func (rt *Runtime) ResumeTracking() {
	n := len(rt.pauseStack) - 1
	rt.trackingDerivation = rt.pauseStack[n]
	rt.pauseStack = rt.pauseStack[:n]
}

// Untrack runs fn with tracking paused, returning whatever fn returns.
func Untrack[T any](rt *Runtime, fn func() T) T {
	rt.PauseTracking()
	defer rt.ResumeTracking()
	return fn()
}
