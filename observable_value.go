package quark

import "fmt"

// ObservableValue is a boxed reactive value: the simplest useful
// observable built on top of Atom.
type ObservableValue[T comparable] struct {
	atom  *Atom
	value T
}

// Box creates an observable holding initial. An empty name is synthesized
// from the context's unique-id counter.
func Box[T comparable](ctx *ReactiveContext, initial T, name string) *ObservableValue[T] {
	if name == "" {
		name = fmt.Sprintf("ObservableValue@%d", ctx.nextUniqueID())
	}
	v := &ObservableValue[T]{value: initial}
	v.atom = ctx.CreateAtom(name, nil, nil)
	v.atom.owner = v
	return v
}

func (v *ObservableValue[T]) Node() *Atom { return v.atom }

func (v *ObservableValue[T]) Probe() (ProbeResult, error) { return ProbeUnchanged, nil }

// Get reads the value, linking it into the active tracked run if any.
func (v *ObservableValue[T]) Get() T {
	v.atom.ReportObserved()
	return v.value
}

// Set stores next and propagates the change. Writing an equal value is a
// no-op and wakes nobody.
func (v *ObservableValue[T]) Set(next T) {
	if v.value == next {
		return
	}
	v.value = next
	v.atom.ReportChanged()
}
