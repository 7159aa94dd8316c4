package reactor

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietRuntime(opts ...Option) *Runtime {
	return NewRuntime(append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)...)
}

func TestSpySeesAdminChangesAndReactionRuns(t *testing.T) {
	rt := NewRuntime()
	var events []EventType
	rt.SetSpy(func(e Event) { events = append(events, e.Type) })

	h := struct{}{}
	admin := NewAdministration(rt, h, "host", nil)
	v, err := AddObservableProp(admin, "v", 1, nil)
	require.NoError(t, err)

	var r *Reaction
	body := func() error { v.Get(); return nil }
	r = NewReaction(rt, "r", func() { r.Track(body) })
	r.Track(body)

	require.NoError(t, v.Set(2))
	admin.Remove("v")

	// The reaction drains when Write's inner batch ends, before the update
	// notification goes out; removal drops the property from the map without
	// touching the backing atom, so no rerun follows EventRemove.
	assert.Equal(t, []EventType{EventAdd, EventReactionRan, EventUpdate, EventRemove}, events)
}

func TestSpyReportsReactionThatNeverRetracks(t *testing.T) {
	rt := NewRuntime()
	var scheduled []string
	rt.SetSpy(func(e Event) {
		if e.Type == EventReactionScheduled {
			scheduled = append(scheduled, e.Name)
		}
	})

	v := NewObservableValue(rt, "v", 0, nil)
	// onInvalidate deliberately does not re-Track: an async consumer would
	// pick the work up later.
	r := NewReaction(rt, "lazy", func() {})
	r.Track(func() error { v.Get(); return nil })

	rt.Batch(func() { v.Set(1) })
	assert.Equal(t, []string{"lazy"}, scheduled)
}

func TestGlobalErrorBusReceivesUnhandledReactionErrors(t *testing.T) {
	rt := quietRuntime()
	boom := errors.New("boom")

	var busErrs []error
	var busReactions []*Reaction
	dispose := rt.RegisterErrorHandler(func(err error, r *Reaction) {
		busErrs = append(busErrs, err)
		busReactions = append(busReactions, r)
	})
	defer dispose()

	v := NewObservableValue(rt, "v", 0, nil)
	var r *Reaction
	body := func() error {
		v.Get()
		return boom
	}
	r = NewReaction(rt, "failing", func() { r.Track(body) })
	r.Track(body)

	require.Len(t, busErrs, 1)
	assert.ErrorIs(t, busErrs[0], boom)
	assert.Same(t, r, busReactions[0])

	// the failed run still bound its dependencies, so the reaction keeps
	// rerunning (and keeps erroring) on subsequent writes.
	rt.Batch(func() { v.Set(1) })
	assert.Len(t, busErrs, 2)
}

func TestPerReactionErrorHandlerShadowsGlobalBus(t *testing.T) {
	rt := quietRuntime()
	boom := errors.New("boom")

	busCalls := 0
	dispose := rt.RegisterErrorHandler(func(error, *Reaction) { busCalls++ })
	defer dispose()

	var ownErr error
	var r *Reaction
	body := func() error { return boom }
	r = NewReaction(rt, "handled", func() { r.Track(body) })
	r.SetErrorHandler(func(err error, _ *Reaction) { ownErr = err })
	r.Track(body)

	assert.ErrorIs(t, ownErr, boom)
	assert.Zero(t, busCalls, "a claimed error must not reach the global bus")
}

// Scheduler composition: each SetReactionScheduler call wraps the previous
// scheduler, so the most recently installed layer runs outermost and the
// baseline synchronous drain runs innermost.
func TestSetReactionSchedulerComposes(t *testing.T) {
	rt := NewRuntime()
	var order []string
	rt.SetReactionScheduler(func(run func()) {
		order = append(order, "inner-before")
		run()
		order = append(order, "inner-after")
	})
	rt.SetReactionScheduler(func(run func()) {
		order = append(order, "outer-before")
		run()
		order = append(order, "outer-after")
	})

	v := NewObservableValue(rt, "v", 0, nil)
	runs := 0
	var r *Reaction
	body := func() error { runs++; v.Get(); return nil }
	r = NewReaction(rt, "r", func() { r.Track(body) })
	r.Track(body)
	runs = 0
	order = nil

	rt.Batch(func() { v.Set(1) })
	assert.Equal(t, 1, runs)
	assert.Equal(t, []string{"outer-before", "inner-before", "inner-after", "outer-after"}, order)
}

// A deferring scheduler may sit on the drain and release it later; pending
// reactions wait until it does.
func TestDeferringSchedulerHoldsReactionsUntilReleased(t *testing.T) {
	rt := NewRuntime()
	var held []func()
	rt.SetReactionScheduler(func(run func()) { held = append(held, run) })

	v := NewObservableValue(rt, "v", 0, nil)
	runs := 0
	var r *Reaction
	body := func() error { runs++; v.Get(); return nil }
	r = NewReaction(rt, "r", func() { r.Track(body) })
	r.Track(body)
	require.Equal(t, 1, runs)
	// The initial Track's own batch end also hands a (then empty) drain to
	// the scheduler; only the drain held for the write below matters here.
	held = nil

	rt.Batch(func() { v.Set(1) })
	assert.Equal(t, 1, runs, "the deferring scheduler has not released the drain yet")
	require.Len(t, held, 1)

	held[0]()
	assert.Equal(t, 2, runs)
}
