package reactor

import (
	"fmt"
	"reflect"
)

// ChangeType classifies a Change record passed to interceptors/listeners.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeUpdate
	ChangeRemove
)

// Change describes a single mutation to an administered host object,
// before (interceptor) or after (listener) it takes effect.
type Change struct {
	Type     ChangeType
	Object   any
	Name     string
	NewValue any
	OldValue any
}

// Interceptor may rewrite or veto a Change. Returning ok=false cancels the
// operation entirely; no error is raised to the caller, a cancelled write
// is a valid, silent outcome.
type Interceptor func(Change) (rewritten Change, ok bool)

// Listener observes a Change after it has taken effect.
type Listener func(Change)

type propKind int

const (
	propObservable propKind = iota
	propComputed
)

type adminProp struct {
	kind propKind
	obs  *ObservableValue[any]
	comp *ComputedValue[any]
}

// Administration is the per-host-object controller: it owns a name ->
// property map (each property backed by either an ObservableValue[any] or a
// ComputedValue[any], boxed since Go generics can't express a
// heterogeneously-typed map), plus interceptor and listener chains and a
// lazily materialized ordered key list. Host code holds an *Administration
// instead of a language-level property-descriptor table.
type Administration struct {
	rt              *Runtime
	target          any
	Name            string
	defaultEnhancer Enhancer[any]
	values          map[string]*adminProp
	order           []string
	keys            *ObservableValue[int]
	interceptors    []Interceptor
	listeners       []Listener
	extensible      bool
}

// administrations is the side-table backing AdministrationOf: the handle
// from a host object back to its Administration, kept in a package-level
// map from host identity rather than a hidden field on the host itself,
// since Go structs have no identity-keyed hidden slot. Single-threaded, so
// a plain map needs no lock.
var administrations = map[any]*Administration{}

// NewAdministration creates an Administration bound to target (the host
// object whose properties it manages). target is compared by == in Read
// and Write to guard against a stale handle obtained before the host was
// reconstructed. The pair is also recorded in the side-table so
// AdministrationOf(target) can recover it.
func NewAdministration(rt *Runtime, target any, name string, defaultEnhancer Enhancer[any]) *Administration {
	if defaultEnhancer == nil {
		defaultEnhancer = ReferenceEnhancer[any]
	}
	a := &Administration{
		rt:              rt,
		target:          target,
		Name:            name,
		defaultEnhancer: defaultEnhancer,
		values:          map[string]*adminProp{},
		extensible:      true,
	}
	administrations[target] = a
	return a
}

// AdministrationOf recovers the Administration a host was registered with
// via NewAdministration. Returns an ErrNotInitialized-wrapped error if host
// was never administered, or was administered and has since been disposed.
func AdministrationOf(host any) (*Administration, error) {
	a, ok := administrations[host]
	if !ok {
		return nil, fmt.Errorf("reactor: %w", ErrNotInitialized)
	}
	return a, nil
}

// Dispose tears down every property this administration owns, detaching
// each backing ObservableValue/ComputedValue from any derivation still
// observing it, and drops the side-table entry registered by
// NewAdministration.
func (a *Administration) Dispose() {
	for _, p := range a.values {
		switch p.kind {
		case propObservable:
			p.obs.removeAllObservers()
		case propComputed:
			p.comp.removeAllObservers()
		}
	}
	if a.keys != nil {
		a.keys.removeAllObservers()
	}
	a.values = map[string]*adminProp{}
	a.order = nil
	delete(administrations, a.target)
}

// Seal marks the administration non-extensible: further AddObservableProp
// or AddComputedProp calls fail with ErrNotExtensible. Existing properties
// remain writable/removable.
func (a *Administration) Seal() { a.extensible = false }

// AddObservableProp registers a new plain data property under key, backed
// by an ObservableValue[any] using reflect.DeepEqual for equality (boxed
// values are arbitrary host data, not guaranteed to be comparable with ==).
// Returns ErrNotConfigurable if key already exists, or ErrNotExtensible if
// the administration has been sealed.
func AddObservableProp[T any](a *Administration, key string, initial T, enhancer Enhancer[T]) (*Prop[T], error) {
	var boxed Enhancer[any]
	if enhancer != nil {
		boxed = func(newV, oldV any, name string) any {
			nv, _ := newV.(T)
			ov, _ := oldV.(T)
			return enhancer(nv, ov, name)
		}
	}
	if err := a.addObservableProp(key, any(initial), boxed); err != nil {
		return nil, err
	}
	return &Prop[T]{admin: a, key: key}, nil
}

func (a *Administration) addObservableProp(key string, initial any, enhancer Enhancer[any]) error {
	if _, exists := a.values[key]; exists {
		return fmt.Errorf("reactor: property %q: %w", key, ErrNotConfigurable)
	}
	if !a.extensible {
		return fmt.Errorf("reactor: %q on %q: %w", key, a.Name, ErrNotExtensible)
	}
	change := Change{Type: ChangeAdd, Object: a.target, Name: key, NewValue: initial}
	ch, ok := a.runInterceptors(change)
	if !ok {
		return nil
	}
	if enhancer == nil {
		enhancer = a.defaultEnhancer
	}
	ov := NewObservableValueWithEquals[any](a.rt, a.Name+"."+key, ch.NewValue, enhancer, reflect.DeepEqual)
	a.values[key] = &adminProp{kind: propObservable, obs: ov}
	a.order = append(a.order, key)
	a.syncKeys()
	a.notify(Change{Type: ChangeAdd, Object: a.target, Name: key, NewValue: ch.NewValue})
	return nil
}

// ComputedPropOptions configures AddComputedProp.
type ComputedPropOptions[T any] struct {
	Equals           func(a, b T) bool
	KeepAlive        bool
	RequiresReaction bool
	Setter           func(T) error
}

// AddComputedProp registers a derived property under key, backed by a
// ComputedValue[any]. fn receives the previously cached value.
func AddComputedProp[T any](a *Administration, key string, fn func(old T) (T, error), opts ComputedPropOptions[T]) (*Prop[T], error) {
	if _, exists := a.values[key]; exists {
		return nil, fmt.Errorf("reactor: property %q: %w", key, ErrNotConfigurable)
	}
	if !a.extensible {
		return nil, fmt.Errorf("reactor: %q on %q: %w", key, a.Name, ErrNotExtensible)
	}
	boxedFn := func(old any) (any, error) {
		o, _ := old.(T)
		return fn(o)
	}
	var cOpts []ComputedOption[any]
	if opts.Equals != nil {
		cOpts = append(cOpts, WithComputedEquals[any](func(a, b any) bool {
			av, _ := a.(T)
			bv, _ := b.(T)
			return opts.Equals(av, bv)
		}))
	}
	cOpts = append(cOpts, WithKeepAlive[any](opts.KeepAlive), WithRequiresReaction[any](opts.RequiresReaction))
	if opts.Setter != nil {
		cOpts = append(cOpts, WithSetter[any](func(v any) error {
			tv, _ := v.(T)
			return opts.Setter(tv)
		}))
	}
	cv := NewComputed(a.rt, a.Name+"."+key, boxedFn, cOpts...)
	a.values[key] = &adminProp{kind: propComputed, comp: cv}
	// Computed properties are derived, not data: they never appear in the
	// observable key sequence.
	return &Prop[T]{admin: a, key: key}, nil
}

// Read returns the current value of key as seen by owner. owner must be
// the exact target this Administration was constructed for; any other
// value (a stale handle captured before the host was replaced) is an
// illegal access.
func (a *Administration) Read(owner any, key string) (any, error) {
	if owner != a.target {
		return nil, fmt.Errorf("reactor: read of %q: %w", key, ErrIllegalAccess)
	}
	p, ok := a.values[key]
	if !ok {
		return nil, fmt.Errorf("reactor: no such property %q", key)
	}
	if p.kind == propObservable {
		return p.obs.Get(), nil
	}
	return p.comp.Get()
}

// Write assigns value to key as owner. Interceptors run before the value
// is stored or any listener is notified; a cancelling interceptor makes
// Write a silent no-op (nil error, no observable change).
func (a *Administration) Write(owner any, key string, value any) error {
	if owner != a.target {
		return fmt.Errorf("reactor: write to %q: %w", key, ErrIllegalAccess)
	}
	p, ok := a.values[key]
	if !ok {
		return fmt.Errorf("reactor: no such property %q", key)
	}
	if p.kind == propComputed {
		return p.comp.Set(value)
	}

	old := p.obs.peek()
	change := Change{Type: ChangeUpdate, Object: a.target, Name: key, NewValue: value, OldValue: old}
	ch, ok2 := a.runInterceptors(change)
	if !ok2 {
		return nil
	}

	var changed bool
	var newVal any
	a.rt.Batch(func() {
		newVal, changed = p.obs.Set(ch.NewValue)
	})
	if changed {
		a.notify(Change{Type: ChangeUpdate, Object: a.target, Name: key, NewValue: newVal, OldValue: old})
	}
	return nil
}

// Remove deletes a data property entirely (observable properties only;
// computed properties are removed by rebuilding the Administration, since
// a computed has no independent "removed" state to observe).
func (a *Administration) Remove(key string) {
	p, ok := a.values[key]
	if !ok || p.kind != propObservable {
		return
	}
	old := p.obs.peek()
	change := Change{Type: ChangeRemove, Object: a.target, Name: key, OldValue: old}
	ch, ok2 := a.runInterceptors(change)
	if !ok2 {
		return
	}
	a.rt.Batch(func() {
		delete(a.values, key)
		for i, k := range a.order {
			if k == key {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
		a.syncKeys()
	})
	a.notify(Change{Type: ChangeRemove, Object: a.target, Name: key, OldValue: ch.OldValue})
}

// Observe appends cb to the listener chain. fireImmediately is rejected:
// an object-level listener has no single "current value" to replay.
func (a *Administration) Observe(cb Listener, fireImmediately bool) (dispose func(), err error) {
	if fireImmediately {
		return nil, fmt.Errorf("reactor: observable objects do not support fireImmediately")
	}
	a.listeners = append(a.listeners, cb)
	idx := len(a.listeners) - 1
	return func() { a.listeners[idx] = nil }, nil
}

// Intercept appends h to the interceptor chain; interceptors run in
// registration order and each sees the Change as rewritten by the ones
// before it.
func (a *Administration) Intercept(h Interceptor) (dispose func()) {
	a.interceptors = append(a.interceptors, h)
	idx := len(a.interceptors) - 1
	return func() { a.interceptors[idx] = nil }
}

// Keys returns the administration's data-property names in insertion order;
// computed properties are derived, not data, and are excluded. Reading it
// inside a derivation subscribes to additions and removals (but not to
// updates of existing properties' values).
func (a *Administration) Keys() []string {
	a.ensureKeysTracked()
	a.keys.Get()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

func (a *Administration) ensureKeysTracked() {
	if a.keys == nil {
		a.keys = NewObservableValueWithEquals(a.rt, a.Name+".$keys", 0, nil, func(x, y int) bool { return x == y })
	}
}

func (a *Administration) syncKeys() {
	if a.keys != nil {
		a.rt.Batch(func() {
			a.keys.Set(a.keys.peek() + 1)
		})
	}
}

func (a *Administration) runInterceptors(change Change) (Change, bool) {
	cur := change
	for _, h := range a.interceptors {
		if h == nil {
			continue
		}
		next, ok := h(cur)
		if !ok {
			return cur, false
		}
		cur = next
	}
	return cur, true
}

func (a *Administration) notify(change Change) {
	switch change.Type {
	case ChangeAdd:
		a.rt.emit(Event{Type: EventAdd, Name: change.Name})
	case ChangeUpdate:
		a.rt.emit(Event{Type: EventUpdate, Name: change.Name})
	case ChangeRemove:
		a.rt.emit(Event{Type: EventRemove, Name: change.Name})
	}
	for _, l := range a.listeners {
		if l != nil {
			l(change)
		}
	}
}

// Prop is a typed accessor returned by AddObservableProp/AddComputedProp,
// letting callers round-trip through Administration.Read/Write without
// repeating the key string or a type assertion at every call site.
type Prop[T any] struct {
	admin *Administration
	key   string
}

// Get reads the property's current value as T.
func (p *Prop[T]) Get() T {
	v, err := p.admin.Read(p.admin.target, p.key)
	if err != nil {
		var zero T
		return zero
	}
	t, _ := v.(T)
	return t
}

// Set writes v to the property.
func (p *Prop[T]) Set(v T) error {
	return p.admin.Write(p.admin.target, p.key, v)
}
