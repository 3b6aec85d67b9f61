package quark_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/quark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal derivation for driving ShouldCompute directly
type stubDerivation struct {
	core      quark.DerivationCore
	staleHits int
}

func newStubDerivation(ctx *quark.ReactiveContext, name string) *stubDerivation {
	return &stubDerivation{core: quark.NewDerivationCore(ctx, name)}
}

func (d *stubDerivation) DerivationNode() *quark.DerivationCore { return &d.core }
func (d *stubDerivation) OnBecomeStale()                        { d.staleHits++ }

// observable whose probe outcome is scripted
type scriptedObservable struct {
	atom   *quark.Atom
	result quark.ProbeResult
	err    error
	probes int
}

func newScriptedObservable(ctx *quark.ReactiveContext, name string, result quark.ProbeResult, err error) *scriptedObservable {
	return &scriptedObservable{atom: ctx.CreateAtom(name, nil, nil), result: result, err: err}
}

func (o *scriptedObservable) Node() *quark.Atom { return o.atom }
func (o *scriptedObservable) Probe() (quark.ProbeResult, error) {
	o.probes++
	return o.result, o.err
}

func TestShouldComputeDefiniteStates(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	d := newStubDerivation(ctx, "d")

	// the observing set must be irrelevant for the definite states
	d.core.Observing().Add(newScriptedObservable(ctx, "dep", quark.ProbeChanged, nil))

	d.core.SetDependenciesState(quark.UpToDate)
	assert.False(t, quark.ShouldCompute(d))

	d.core.SetDependenciesState(quark.NotTracking)
	assert.True(t, quark.ShouldCompute(d))

	d.core.SetDependenciesState(quark.Stale)
	assert.True(t, quark.ShouldCompute(d))
}

func TestShouldComputePossiblyStaleAllUnchanged(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	d := newStubDerivation(ctx, "d")

	depA := ctx.CreateAtom("a", nil, nil)
	depB := ctx.CreateAtom("b", nil, nil)
	d.core.Observing().Add(quark.Observable(depA))
	d.core.Observing().Add(quark.Observable(depB))
	d.core.SetDependenciesState(quark.PossiblyStale)

	require.False(t, quark.ShouldCompute(d))
	assert.Equal(t, quark.UpToDate, d.core.DependenciesState())
	assert.Equal(t, quark.UpToDate, depA.LowestObserverState())
	assert.Equal(t, quark.UpToDate, depB.LowestObserverState())

	// second resolution on the unchanged graph is idempotent
	require.False(t, quark.ShouldCompute(d))
	assert.Equal(t, quark.UpToDate, d.core.DependenciesState())
}

func TestShouldComputeFaultingDependencyRestoresTrackingSlot(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	d := newStubDerivation(ctx, "d")
	d.core.Observing().Add(quark.Observable(
		newScriptedObservable(ctx, "boom", quark.ProbeChanged, errors.New("read fault"))))
	d.core.SetDependenciesState(quark.PossiblyStale)

	active := newStubDerivation(ctx, "active")
	prev := ctx.StartTracking(active)

	assert.True(t, quark.ShouldCompute(d))
	// full reversal on the early-return path
	assert.Same(t, active, ctx.TrackingDerivation())

	ctx.EndTracking(prev)
	assert.Nil(t, ctx.TrackingDerivation())
}

func TestShouldComputePropagatingProbeIsFatal(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	d := newStubDerivation(ctx, "d")
	boom := errors.New("unbounded fault")
	d.core.Observing().Add(quark.Observable(
		newScriptedObservable(ctx, "boom", quark.ProbePropagate, boom)))
	d.core.SetDependenciesState(quark.PossiblyStale)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.Equal(t, boom, r)
		assert.Nil(t, ctx.TrackingDerivation())
	}()
	quark.ShouldCompute(d)
	t.Fatal("expected a panic")
}

func TestCachedFaultStillPropagatesWithoutBoundaries(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{DisableErrorBoundaries: true})
	boom := errors.New("boom")
	c := quark.Computed(ctx, "c", func() (int, error) {
		return 0, boom
	})

	watcher := newStubDerivation(ctx, "watcher")
	watcher.core.Observing().Add(quark.Observable(c))
	c.Node().Observers().Add(quark.Derivation(watcher))
	watcher.core.SetDependenciesState(quark.PossiblyStale)

	// the first resolution computes, caches the fault and propagates it
	func() {
		defer func() { require.NotNil(t, recover()) }()
		quark.ShouldCompute(watcher)
	}()
	require.Equal(t, quark.UpToDate, c.DerivationNode().DependenciesState())

	// a later resolution must not swallow the fault just because the
	// node has settled
	other := newStubDerivation(ctx, "other")
	other.core.Observing().Add(quark.Observable(c))
	c.Node().Observers().Add(quark.Derivation(other))
	other.core.SetDependenciesState(quark.PossiblyStale)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.ErrorIs(t, r.(error), boom)
	}()
	quark.ShouldCompute(other)
	t.Fatal("expected the cached fault to propagate")
}

func TestShouldComputeInvalidStateIsFatal(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	d := newStubDerivation(ctx, "d")
	d.core.SetDependenciesState(quark.DerivationState(42))
	assert.Panics(t, func() { quark.ShouldCompute(d) })
}
