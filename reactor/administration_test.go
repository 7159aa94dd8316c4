package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// host carries a field so that every &host{} is a distinct pointer: pointers
// to zero-size values may compare equal, which would make separate hosts
// share one side-table entry.
type host struct{ _ byte }

// S6: an Administration-backed property participates in the dependency
// graph exactly like a standalone ObservableValue.
func TestAdministrationObservablePropTracksLikeAtom(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)
	age, err := AddObservableProp(admin, "age", 30, nil)
	require.NoError(t, err)

	runs := 0
	var seen []int
	var r *Reaction
	body := func() error { runs++; seen = append(seen, age.Get()); return nil }
	r = NewReaction(rt, "r", func() { r.Track(body) })
	r.Track(body)
	require.Equal(t, 1, runs)

	require.NoError(t, age.Set(31))
	assert.Equal(t, 2, runs)
	assert.Equal(t, []int{30, 31}, seen)

	require.NoError(t, age.Set(31)) // unchanged
	assert.Equal(t, 2, runs)
}

func TestAdministrationComputedProp(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)
	first, _ := AddObservableProp(admin, "first", "Ada", nil)
	last, _ := AddObservableProp(admin, "last", "Lovelace", nil)
	full, err := AddComputedProp(admin, "full", func(string) (string, error) {
		return first.Get() + " " + last.Get(), nil
	}, ComputedPropOptions[string]{})
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", full.Get())
	require.NoError(t, first.Set("Grace"))
	assert.Equal(t, "Grace Lovelace", full.Get())

	assert.Equal(t, []string{"first", "last"}, admin.Keys(), "computed properties are not data keys")
}

func TestAdministrationIllegalAccessThroughStaleHandle(t *testing.T) {
	rt := NewRuntime()
	h1 := &host{}
	h2 := &host{}
	admin := NewAdministration(rt, h1, "host", nil)
	_, err := AddObservableProp(admin, "x", 1, nil)
	require.NoError(t, err)

	_, err = admin.Read(h2, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalAccess)
}

func TestAdministrationDuplicatePropertyNotConfigurable(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)
	_, err := AddObservableProp(admin, "x", 1, nil)
	require.NoError(t, err)
	_, err = AddObservableProp(admin, "x", 2, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConfigurable)
}

func TestAdministrationSealedIsNotExtensible(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)
	admin.Seal()
	_, err := AddObservableProp(admin, "y", 1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotExtensible)
}

func TestAdministrationInterceptorCanRewriteOrCancel(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)
	count, err := AddObservableProp(admin, "count", 0, nil)
	require.NoError(t, err)

	admin.Intercept(func(ch Change) (Change, bool) {
		if ch.Type != ChangeUpdate {
			return ch, true
		}
		n, _ := ch.NewValue.(int)
		if n < 0 {
			return ch, false // cancel negative writes
		}
		ch.NewValue = n * 10
		return ch, true
	})

	require.NoError(t, count.Set(3))
	assert.Equal(t, 30, count.Get())

	require.NoError(t, count.Set(-5))
	assert.Equal(t, 30, count.Get(), "cancelled write must not apply")
}

func TestAdministrationListenerSeesAddUpdateRemove(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)

	var seen []ChangeType
	dispose, err := admin.Observe(func(ch Change) { seen = append(seen, ch.Type) }, false)
	require.NoError(t, err)
	defer dispose()

	v, err := AddObservableProp(admin, "v", 1, nil)
	require.NoError(t, err)
	require.NoError(t, v.Set(2))
	admin.Remove("v")

	assert.Equal(t, []ChangeType{ChangeAdd, ChangeUpdate, ChangeRemove}, seen)
}

func TestAdministrationOfRecoversHandleAndDisposeDetaches(t *testing.T) {
	rt := NewRuntime()
	h := &host{}

	_, err := AdministrationOf(h)
	require.Error(t, err, "a host never administered has no handle to recover")
	assert.ErrorIs(t, err, ErrNotInitialized)

	admin := NewAdministration(rt, h, "host", nil)
	x, err := AddObservableProp(admin, "x", 1, nil)
	require.NoError(t, err)

	found, err := AdministrationOf(h)
	require.NoError(t, err)
	assert.Same(t, admin, found)

	runs := 0
	var r *Reaction
	body := func() error { runs++; x.Get(); return nil }
	r = NewReaction(rt, "r", func() { r.Track(body) })
	r.Track(body)
	require.Equal(t, 1, runs)

	underlying := admin.values["x"].obs
	require.Len(t, underlying.observers, 1, "r must be subscribed to the backing atom before Dispose")

	admin.Dispose()
	assert.Empty(t, underlying.observers, "Dispose must detach every remaining observer from each owned atom")

	_, err = AdministrationOf(h)
	assert.ErrorIs(t, err, ErrNotInitialized, "Dispose must drop the side-table entry")

	err = x.Set(2)
	assert.Error(t, err, "a Prop handle must not keep writing once its administration is disposed")
}

func TestAdministrationKeysTracksAddAndRemove(t *testing.T) {
	rt := NewRuntime()
	h := &host{}
	admin := NewAdministration(rt, h, "host", nil)

	runs := 0
	var lastKeys [][]string
	var r *Reaction
	body := func() error { runs++; lastKeys = append(lastKeys, admin.Keys()); return nil }
	r = NewReaction(rt, "keys-watcher", func() { r.Track(body) })
	r.Track(body)
	require.Equal(t, 1, runs)
	assert.Empty(t, lastKeys[0])

	_, err := AddObservableProp(admin, "a", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Equal(t, []string{"a"}, lastKeys[1])

	admin.Remove("a")
	assert.Equal(t, 3, runs)
	assert.Empty(t, lastKeys[2])
}
