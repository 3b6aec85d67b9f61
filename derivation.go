package quark

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Derivation is a unit that reads observables during a tracked run: a
// computed value or a reaction. Implementations expose their bookkeeping
// through DerivationNode and are told about upstream changes through
// OnBecomeStale.
type Derivation interface {
	DerivationNode() *DerivationCore
	// OnBecomeStale fires when the derivation leaves UpToDate. Computed
	// values forward the doubt to their own observers; reactions schedule
	// themselves.
	OnBecomeStale()
}

// DerivationCore is the bookkeeping every derivation embeds: its staleness
// state, the set of observables read during the last tracked run, and the
// run id used to deduplicate reads within a run. The back-reference to the
// coordinator is non-owning.
type DerivationCore struct {
	ctx  *ReactiveContext
	name string

	state        DerivationState
	observing    mapset.Set[Observable]
	newObserving []Observable
	runID        uint64
}

// NewDerivationCore prepares bookkeeping for a derivation owned by ctx.
func NewDerivationCore(ctx *ReactiveContext, name string) DerivationCore {
	return DerivationCore{
		ctx:       ctx,
		name:      name,
		state:     NotTracking,
		observing: mapset.NewThreadUnsafeSet[Observable](),
	}
}

func (c *DerivationCore) Name() string { return c.name }

// DependenciesState reports the derivation's current staleness.
func (c *DerivationCore) DependenciesState() DerivationState { return c.state }

// SetDependenciesState overrides the staleness state. It exists for
// external Derivation implementations; the built-in ones go through the
// propagation walks.
func (c *DerivationCore) SetDependenciesState(s DerivationState) { c.state = s }

// Observing exposes the observables read during the last tracked run.
func (c *DerivationCore) Observing() mapset.Set[Observable] { return c.observing }

// Context returns the owning coordinator.
func (c *DerivationCore) Context() *ReactiveContext { return c.ctx }

// trackDerivation runs fn as d's tracked run: the tracking slot holds d,
// state reads are allowed, reads accumulate in newObserving stamped with a
// fresh run id, and afterwards the dependency edges are rebound to what
// was actually read. The whole run sits inside a batch so unobservations
// caused by rebinding are swept at a sane boundary.
func (ctx *ReactiveContext) trackDerivation(d Derivation, fn func() error) error {
	core := d.DerivationNode()
	changeDependenciesStateToUpToDate(d)
	core.newObserving = core.newObserving[:0]
	core.runID = ctx.NextRunID()

	ctx.StartBatch()
	defer ctx.EndBatch()
	prevReads := ctx.StartAllowStateReads(true)
	prev := ctx.StartTracking(d)
	ctx.spyReport(SpyEvent{Kind: SpyTrackStart, Name: core.name})
	// unwound on every exit path, so a recovered fault inside fn leaves
	// the coordinator consistent
	defer func() {
		ctx.spyReport(SpyEvent{Kind: SpyTrackEnd, Name: core.name})
		ctx.EndTracking(prev)
		ctx.EndAllowStateReads(prevReads)
		bindDependencies(d)
	}()

	return fn()
}

// bindDependencies diffs what the run read against what the derivation
// observed before, severing both directions of dropped edges and linking
// new ones. Observables whose observer count hits zero are queued for the
// batch-end sweep rather than torn down here.
func bindDependencies(d Derivation) {
	core := d.DerivationNode()
	prev := core.observing
	next := mapset.NewThreadUnsafeSet[Observable]()
	for _, obs := range core.newObserving {
		next.Add(obs)
	}
	core.observing = next
	core.newObserving = core.newObserving[:0]

	prev.Each(func(obs Observable) bool {
		if !next.Contains(obs) {
			removeObserver(obs, d)
		}
		return false
	})
	next.Each(func(obs Observable) bool {
		if !prev.Contains(obs) {
			addObserver(obs, d)
		}
		return false
	})
}

func addObserver(obs Observable, d Derivation) {
	a := obs.Node()
	a.observers.Add(d)
	if a.lowestObserverState > d.DerivationNode().state {
		a.lowestObserverState = d.DerivationNode().state
	}
}

func removeObserver(obs Observable, d Derivation) {
	a := obs.Node()
	a.observers.Remove(d)
	if a.observers.Cardinality() == 0 {
		a.queueForUnobservation()
	}
}

// clearObserving severs every dependency edge and suspends tracking. Used
// when a reaction is disposed and when a derived observable loses its last
// observer.
func clearObserving(d Derivation) {
	core := d.DerivationNode()
	obs := core.observing.ToSlice()
	core.observing.Clear()
	for _, o := range obs {
		removeObserver(o, d)
	}
	core.state = NotTracking
}

// changeDependenciesStateToUpToDate settles the derivation at UpToDate and
// promotes the lowest-observer cache of everything it observes, stopping
// at the first dependency that already shows UpToDate.
func changeDependenciesStateToUpToDate(d Derivation) {
	core := d.DerivationNode()
	if core.state == UpToDate {
		return
	}
	core.state = UpToDate
	core.observing.Each(func(obs Observable) bool {
		a := obs.Node()
		if a.lowestObserverState == UpToDate {
			return true
		}
		a.lowestObserverState = UpToDate
		return false
	})
}
