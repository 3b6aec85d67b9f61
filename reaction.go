package quark

import "fmt"

// Reaction is the derivation that closes the loop: instead of producing a
// value it schedules a side effect whenever something it observed changed.
// Scheduling is FIFO on the coordinator and execution happens at the
// outermost batch boundary.
type Reaction struct {
	core         DerivationCore
	onInvalidate func(r *Reaction)

	isScheduled bool
	isDisposed  bool
	isRunning   bool
}

// NewReaction builds a reaction whose onInvalidate is called whenever the
// staleness resolution confirms a recompute. onInvalidate is expected to
// call Track to establish the next dependency set.
func NewReaction(ctx *ReactiveContext, name string, onInvalidate func(r *Reaction)) *Reaction {
	if name == "" {
		name = fmt.Sprintf("Reaction@%d", ctx.nextUniqueID())
	}
	return &Reaction{
		core:         NewDerivationCore(ctx, name),
		onInvalidate: onInvalidate,
	}
}

func (r *Reaction) DerivationNode() *DerivationCore { return &r.core }

func (r *Reaction) OnBecomeStale() { r.Schedule() }

// Schedule queues the reaction for the batch-end reaction phase. Outside
// any batch the phase runs immediately.
func (r *Reaction) Schedule() {
	if r.isScheduled || r.isDisposed {
		return
	}
	r.isScheduled = true
	ctx := r.core.ctx
	ctx.pendingReactions = append(ctx.pendingReactions, r)
	ctx.spyReport(SpyEvent{Kind: SpyReactionScheduled, Name: r.core.name})
	ctx.runReactions()
}

func (r *Reaction) runReaction() {
	if r.isDisposed {
		return
	}
	ctx := r.core.ctx
	ctx.StartBatch()
	defer ctx.EndBatch()
	r.isScheduled = false
	if ShouldCompute(r) {
		r.onInvalidate(r)
	}
}

// Track runs fn as this reaction's tracked run, rebinding its dependency
// set to whatever fn read. Faults from fn go to the configured OnError
// handler; with no handler they are fatal.
func (r *Reaction) Track(fn func() error) {
	if r.isDisposed {
		return
	}
	ctx := r.core.ctx
	ctx.StartBatch()
	defer ctx.EndBatch()
	r.isRunning = true
	defer func() {
		r.isRunning = false
		if r.isDisposed {
			clearObserving(r)
		}
	}()
	err := ctx.trackDerivation(r, fn)
	if err != nil {
		if ctx.cfg.OnError != nil {
			ctx.cfg.OnError(r, err)
		} else {
			panic(fmt.Errorf("quark: unhandled reaction error in %s: %w", r.core.name, err))
		}
	}
}

// Dispose detaches the reaction from everything it observes. Disposing
// from inside the reaction's own run defers the detach until the run ends.
func (r *Reaction) Dispose() {
	if r.isDisposed {
		return
	}
	r.isDisposed = true
	if !r.isRunning {
		ctx := r.core.ctx
		ctx.StartBatch()
		defer ctx.EndBatch()
		clearObserving(r)
	}
}

// Autorun runs view immediately and re-runs it whenever an observable it
// read changes. The returned reaction's Dispose stops it.
func Autorun(ctx *ReactiveContext, name string, view func() error) *Reaction {
	r := NewReaction(ctx, name, func(r *Reaction) {
		r.Track(view)
	})
	r.Schedule()
	return r
}
