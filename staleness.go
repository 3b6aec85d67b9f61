package quark

import "fmt"

// ProbeResult is the explicit tri-state outcome of asking a dependency
// whether it changed, instead of signalling "changed" through raised
// faults.
type ProbeResult uint8

const (
	// ProbeUnchanged: the dependency settled without a relevant change.
	ProbeUnchanged ProbeResult = iota
	// ProbeChanged: the dependency changed, or faulted in a way that is
	// contained and treated as a change.
	ProbeChanged
	// ProbePropagate: the dependency faulted with error boundaries
	// disabled; the fault belongs to the caller.
	ProbePropagate
)

// ShouldCompute resolves an ambiguously stale derivation into a definite
// recompute/no-recompute answer without forcing the derivation's own
// recomputation.
//
// UpToDate never recomputes; NotTracking and Stale always do. The
// interesting case is PossiblyStale, resolved by probing every observed
// dependency under an untracked read. If no probe reports a change the
// derivation is confirmed unchanged and settles at UpToDate, together with
// the lowest-observer caches of its dependencies.
func ShouldCompute(d Derivation) bool {
	core := d.DerivationNode()
	switch core.state {
	case UpToDate:
		return false
	case NotTracking, Stale:
		return true
	case PossiblyStale:
		ctx := core.ctx
		prev := ctx.StartUntracked()
		// restored on every exit path, early returns and faults included
		defer ctx.EndUntracked(prev)

		changed := false
		core.observing.Each(func(obs Observable) bool {
			res, err := obs.Probe()
			switch res {
			case ProbePropagate:
				panic(err)
			case ProbeChanged:
				changed = true
				return true
			}
			// probing a derived dependency may have recomputed it and
			// confirmed the change straight onto us
			if core.state == Stale {
				changed = true
				return true
			}
			return false
		})
		if changed {
			return true
		}
		changeDependenciesStateToUpToDate(d)
		return false
	default:
		panic(fmt.Errorf("quark: %s has invalid dependencies state %d", core.name, core.state))
	}
}
