package quark

import "fmt"

// ComputedValue derives a value from other observables. It is both sides
// of the bipartite graph at once: an Observable to whatever reads it and a
// Derivation over whatever it reads. Results are memoized and recomputed
// lazily, and the whole node suspends once nothing observes it.
type ComputedValue[T comparable] struct {
	atom *Atom
	core DerivationCore
	fn   func() (T, error)

	value       T
	lastErr     error
	isComputing bool
}

// Computed creates a derived value evaluated by fn. The computation runs
// lazily on first read, not at construction.
func Computed[T comparable](ctx *ReactiveContext, name string, fn func() (T, error)) *ComputedValue[T] {
	if name == "" {
		name = fmt.Sprintf("ComputedValue@%d", ctx.nextUniqueID())
	}
	c := &ComputedValue[T]{fn: fn}
	c.atom = ctx.CreateAtom(name, nil, nil)
	c.atom.owner = c
	c.core = NewDerivationCore(ctx, name)
	return c
}

func (c *ComputedValue[T]) Node() *Atom { return c.atom }

func (c *ComputedValue[T]) DerivationNode() *DerivationCore { return &c.core }

// OnBecomeStale forwards upstream doubt to our own observers without
// recomputing anything yet.
func (c *ComputedValue[T]) OnBecomeStale() {
	propagateMaybeChanged(c.atom)
}

// Get returns the memoized value, recomputing only when the staleness
// resolution says so. Reading a computed from within its own computation
// is a fatal self-reference.
func (c *ComputedValue[T]) Get() (T, error) {
	if c.isComputing {
		panic(fmt.Errorf("%w: %s", ErrCaughtCycle, c.atom.name))
	}
	ctx := c.core.ctx

	if ctx.batchDepth == 0 && c.atom.observers.Cardinality() == 0 {
		// nobody depends on us and no batch is open: compute on the
		// side without entering the graph, and stay suspended
		if !ShouldCompute(c) {
			return c.value, c.lastErr
		}
		ctx.StartBatch()
		defer ctx.EndBatch()
		return c.computeValue(false)
	}

	c.atom.ReportObserved()
	if ShouldCompute(c) {
		if c.trackAndCompute() {
			propagateChangeConfirmed(c.atom)
		}
	}
	return c.value, c.lastErr
}

// Probe forces the value if the resolution demands it. A computation fault
// is contained as "changed" unless error boundaries are disabled, in which
// case it belongs to the caller.
func (c *ComputedValue[T]) Probe() (ProbeResult, error) {
	if !ShouldCompute(c) {
		// a fault cached by an earlier recovered propagation is still the
		// node's current result
		if c.lastErr != nil && c.core.ctx.cfg.DisableErrorBoundaries {
			return ProbePropagate, c.lastErr
		}
		return ProbeUnchanged, nil
	}
	changed := c.trackAndCompute()
	if c.lastErr != nil && c.core.ctx.cfg.DisableErrorBoundaries {
		return ProbePropagate, c.lastErr
	}
	if changed {
		propagateChangeConfirmed(c.atom)
		return ProbeChanged, c.lastErr
	}
	return ProbeUnchanged, nil
}

// trackAndCompute re-runs the computation under tracking and reports
// whether the outcome differs from the memoized one. A first run after
// suspension always counts as changed, as does any run that faults or
// recovers from a fault.
func (c *ComputedValue[T]) trackAndCompute() bool {
	wasSuspended := c.core.state == NotTracking
	oldValue, oldErr := c.value, c.lastErr

	v, err := c.computeValue(true)

	changed := wasSuspended || oldErr != nil || err != nil || v != oldValue
	if changed {
		c.value, c.lastErr = v, err
	}
	return changed
}

func (c *ComputedValue[T]) computeValue(track bool) (v T, err error) {
	ctx := c.core.ctx
	c.isComputing = true
	ctx.computationDepth++
	defer func() {
		ctx.computationDepth--
		c.isComputing = false
	}()
	if track {
		err = ctx.trackDerivation(c, func() error {
			var ferr error
			v, ferr = c.fn()
			return ferr
		})
		return v, err
	}
	return c.fn()
}

// suspend drops the memoized result; clearObserving has already detached
// the dependency edges by the time the sweep calls this.
func (c *ComputedValue[T]) suspend() {
	var zero T
	c.value = zero
	c.lastErr = nil
}
