package quark

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Observable is a reactive cell derivations may depend on. Concrete
// implementations expose their shared bookkeeping through Node and answer
// staleness probes through Probe.
type Observable interface {
	// Node returns the atom carrying this observable's graph bookkeeping.
	Node() *Atom
	// Probe resolves whether this dependency has changed since the asking
	// derivation last read it. It runs under an untracked read. A derived
	// observable forces its own value here; a plain one reports unchanged
	// unless the read itself faults.
	Probe() (ProbeResult, error)
}

// Atom is the minimal concrete Observable and the building block other
// reactive values embed. It tracks its observer set, a cache of the lowest
// staleness state across those observers, and fires its two hooks exactly
// once per observed/unobserved transition.
type Atom struct {
	ctx  *ReactiveContext
	name string

	// owner is the Observable this atom does bookkeeping for: the atom
	// itself for plain atoms, the embedding value for boxed and computed
	// ones. Graph edges always reference the owner.
	owner Observable

	observers           mapset.Set[Derivation]
	lowestObserverState DerivationState

	isPendingUnobservation bool
	isBeingObserved        bool
	lastAccessedBy         uint64

	onBecomeObserved   func()
	onBecomeUnobserved func()
}

// CreateAtom builds an atom owned by this context. An empty name is
// synthesized as "Atom@<uniqueId>"; explicit names never consume ids.
// Either hook may be nil.
func (ctx *ReactiveContext) CreateAtom(name string, onBecomeObserved, onBecomeUnobserved func()) *Atom {
	if name == "" {
		name = fmt.Sprintf("Atom@%d", ctx.nextUniqueID())
	}
	a := &Atom{
		ctx:                 ctx,
		name:                name,
		observers:           mapset.NewThreadUnsafeSet[Derivation](),
		lowestObserverState: NotTracking,
		onBecomeObserved:    onBecomeObserved,
		onBecomeUnobserved:  onBecomeUnobserved,
	}
	a.owner = a
	return a
}

func (a *Atom) Node() *Atom { return a }

// Probe on a plain atom: reading it cannot fault and it cannot change on
// its own, so it never resolves a PossiblyStale observer to stale.
func (a *Atom) Probe() (ProbeResult, error) { return ProbeUnchanged, nil }

func (a *Atom) Name() string { return a.name }

// Observers exposes the current observer set.
func (a *Atom) Observers() mapset.Set[Derivation] { return a.observers }

// LowestObserverState is the incrementally maintained minimum of the
// observers' dependency states.
func (a *Atom) LowestObserverState() DerivationState { return a.lowestObserverState }

func (a *Atom) IsBeingObserved() bool        { return a.isBeingObserved }
func (a *Atom) IsPendingUnobservation() bool { return a.isPendingUnobservation }

// ReportObserved links the atom into the active tracked run, if any, and
// reports whether a derivation was listening. Reads are deduplicated per
// run via the run id. A read while state reads are disallowed is fatal.
func (a *Atom) ReportObserved() bool {
	ctx := a.ctx
	if !ctx.allowStateReads {
		panic(fmt.Errorf("%w: %s", ErrInvalidStateRead, a.name))
	}
	d := ctx.trackingDerivation
	if d != nil {
		core := d.DerivationNode()
		if core.runID != a.lastAccessedBy {
			a.lastAccessedBy = core.runID
			core.newObserving = append(core.newObserving, a.owner)
			if !a.isBeingObserved {
				a.isBeingObserved = true
				if a.onBecomeObserved != nil {
					a.onBecomeObserved()
				}
			}
		}
		return true
	}
	if a.observers.Cardinality() == 0 && ctx.batchDepth > 0 {
		a.queueForUnobservation()
	}
	return false
}

// ReportChanged marks every observer stale and, outside an enclosing
// batch, immediately runs the resulting reactions.
func (a *Atom) ReportChanged() {
	a.checkWriteAllowed()
	ctx := a.ctx
	ctx.StartBatch()
	defer ctx.EndBatch()
	propagateChanged(a)
	ctx.spyReport(SpyEvent{Kind: SpyObservableChanged, Name: a.name})
}

// Observed observables may not be mutated from inside a computation.
func (a *Atom) checkWriteAllowed() {
	if a.ctx.computationDepth > 0 && a.observers.Cardinality() > 0 {
		panic(fmt.Errorf("%w: tried to change %s", ErrInvalidWrite, a.name))
	}
}

func (a *Atom) queueForUnobservation() {
	if a.isPendingUnobservation {
		return
	}
	a.isPendingUnobservation = true
	a.ctx.pendingUnobservations = append(a.ctx.pendingUnobservations, a.owner)
}

// propagateChanged is the confirmed-change walk: every observer becomes
// Stale, and observers that were UpToDate get their OnBecomeStale
// notification so reactions can schedule themselves.
func propagateChanged(a *Atom) {
	if a.lowestObserverState == Stale {
		return
	}
	a.lowestObserverState = Stale
	a.observers.Each(func(d Derivation) bool {
		core := d.DerivationNode()
		if core.state == UpToDate {
			d.OnBecomeStale()
		}
		core.state = Stale
		return false
	})
}

// propagateMaybeChanged is the unconfirmed walk used when a derived
// observable's own dependencies changed: UpToDate observers drop to
// PossiblyStale and get notified once.
func propagateMaybeChanged(a *Atom) {
	if a.lowestObserverState != UpToDate {
		return
	}
	a.lowestObserverState = PossiblyStale
	a.observers.Each(func(d Derivation) bool {
		core := d.DerivationNode()
		if core.state == UpToDate {
			core.state = PossiblyStale
			d.OnBecomeStale()
		}
		return false
	})
}

// propagateChangeConfirmed upgrades a prior maybe-changed walk after the
// derived observable recomputed to a genuinely different value.
func propagateChangeConfirmed(a *Atom) {
	if a.lowestObserverState == Stale {
		return
	}
	a.lowestObserverState = Stale
	a.observers.Each(func(d Derivation) bool {
		core := d.DerivationNode()
		if core.state == PossiblyStale {
			core.state = Stale
		} else if core.state == UpToDate {
			// the observer re-read us during its own run; the cache
			// below it is already consistent
			a.lowestObserverState = UpToDate
		}
		return false
	})
}
