package quark

import "fmt"

// ReactiveContext is the single authority for one reactive graph: batch
// bookkeeping, the active tracking slot, run and unique id sequencing and
// the pending-unobservation queue all live here. It never owns graph edges
// directly; observables and derivations hold those between themselves.
//
// All state is instance-scoped. Two contexts are fully independent graphs
// and a context must only ever be touched from one goroutine at a time.
type ReactiveContext struct {
	cfg Config

	batchDepth       int
	uniqueID         uint64
	runID            uint64
	computationDepth int

	allowStateReads    bool
	trackingDerivation Derivation

	pendingUnobservations []Observable
	pendingReactions      []*Reaction
	runningReactions      bool

	spySubs []spyListener
	spySeq  uint64
}

// NewReactiveContext builds a coordinator from cfg. A nil cfg is fatal.
func NewReactiveContext(cfg *Config) *ReactiveContext {
	if cfg == nil {
		panic(ErrMissingConfig)
	}
	c := *cfg
	if c.MaxReactionIterations <= 0 {
		c.MaxReactionIterations = defaultMaxReactionIterations
	}
	return &ReactiveContext{
		cfg:             c,
		allowStateReads: true,
	}
}

// StartBatch opens a (reentrant) batch scope. While at least one batch is
// open, reactions and unobservation cleanup are deferred.
func (ctx *ReactiveContext) StartBatch() {
	if ctx.batchDepth == 0 {
		ctx.spyReport(SpyEvent{Kind: SpyBatchStart})
	}
	ctx.batchDepth++
}

// EndBatch closes one batch scope. Only the transition from depth 1 to 0
// runs scheduled reactions and sweeps the unobservation queue. Calling it
// with no open batch is fatal.
func (ctx *ReactiveContext) EndBatch() {
	if ctx.batchDepth == 0 {
		panic(ErrUnbalancedBatch)
	}
	ctx.batchDepth--
	if ctx.batchDepth == 0 {
		ctx.runReactions()
		ctx.sweepPendingUnobservations()
		ctx.spyReport(SpyEvent{Kind: SpyBatchEnd})
	}
}

// Batch runs fn inside its own batch scope.
func (ctx *ReactiveContext) Batch(fn func()) {
	ctx.StartBatch()
	defer ctx.EndBatch()
	fn()
}

// StartUntracked clears the active tracking slot so observable reads stop
// creating dependency edges. The previous occupant is returned and must be
// handed back to EndUntracked on every exit path, faulting ones included.
func (ctx *ReactiveContext) StartUntracked() Derivation {
	prev := ctx.trackingDerivation
	ctx.trackingDerivation = nil
	return prev
}

// EndUntracked restores the tracking slot saved by StartUntracked.
func (ctx *ReactiveContext) EndUntracked(prev Derivation) {
	ctx.trackingDerivation = prev
}

// Untracked runs fn with tracking suspended.
func (ctx *ReactiveContext) Untracked(fn func()) {
	prev := ctx.StartUntracked()
	defer ctx.EndUntracked(prev)
	fn()
}

// StartTracking installs d as the active tracking target: every observable
// read until the matching EndTracking links itself into d's observing set.
func (ctx *ReactiveContext) StartTracking(d Derivation) Derivation {
	prev := ctx.trackingDerivation
	ctx.trackingDerivation = d
	return prev
}

// EndTracking restores the tracking slot saved by StartTracking. Save and
// restore calls must nest LIFO; the context does not police the order.
func (ctx *ReactiveContext) EndTracking(prev Derivation) {
	ctx.trackingDerivation = prev
}

// TrackingDerivation reports the current occupant of the tracking slot,
// nil when no tracked run is executing.
func (ctx *ReactiveContext) TrackingDerivation() Derivation {
	return ctx.trackingDerivation
}

// StartAllowStateReads swaps the read-permission flag, returning the
// previous value for EndAllowStateReads.
func (ctx *ReactiveContext) StartAllowStateReads(allow bool) bool {
	prev := ctx.allowStateReads
	ctx.allowStateReads = allow
	return prev
}

// EndAllowStateReads restores the flag saved by StartAllowStateReads.
func (ctx *ReactiveContext) EndAllowStateReads(prev bool) {
	ctx.allowStateReads = prev
}

// NextRunID hands out a strictly increasing id. Tracked runs stamp their
// reads with it so a dependency read twice in one run is recorded once.
func (ctx *ReactiveContext) NextRunID() uint64 {
	ctx.runID++
	return ctx.runID
}

func (ctx *ReactiveContext) nextUniqueID() uint64 {
	ctx.uniqueID++
	return ctx.uniqueID
}

// runReactions is the batch-end reaction phase: drain the pending queue in
// FIFO order, repeating while freshly scheduled reactions exist, bounded by
// the configured iteration cap.
func (ctx *ReactiveContext) runReactions() {
	if ctx.batchDepth > 0 || ctx.runningReactions {
		return
	}
	ctx.runningReactions = true
	defer func() { ctx.runningReactions = false }()

	iterations := 0
	for len(ctx.pendingReactions) > 0 {
		iterations++
		if iterations > ctx.cfg.MaxReactionIterations {
			first := ctx.pendingReactions[0]
			ctx.pendingReactions = nil
			panic(fmt.Errorf("%w: still pending after %d iterations, first is %s",
				ErrReactionsDiverged, ctx.cfg.MaxReactionIterations, first.core.name))
		}
		remaining := ctx.pendingReactions
		ctx.pendingReactions = nil
		for _, r := range remaining {
			r.runReaction()
		}
	}
}

// sweepPendingUnobservations drains the unobservation queue to a fixed
// point. Detaching a derived observable from its own dependencies may
// enqueue further observables; the index walk picks those up because the
// slice grows behind the cursor.
func (ctx *ReactiveContext) sweepPendingUnobservations() {
	for i := 0; i < len(ctx.pendingUnobservations); i++ {
		obs := ctx.pendingUnobservations[i]
		a := obs.Node()
		a.isPendingUnobservation = false
		if a.observers.Cardinality() != 0 {
			continue
		}
		if a.isBeingObserved {
			a.isBeingObserved = false
			if a.onBecomeUnobserved != nil {
				a.onBecomeUnobserved()
			}
			ctx.spyReport(SpyEvent{Kind: SpyUnobserved, Name: a.name})
		}
		if d, ok := obs.(Derivation); ok {
			clearObserving(d)
			if s, ok := obs.(suspender); ok {
				s.suspend()
			}
		}
	}
	ctx.pendingUnobservations = ctx.pendingUnobservations[:0]
}

// suspender is implemented by derived observables that cache a value which
// should be dropped once nothing observes them.
type suspender interface {
	suspend()
}
