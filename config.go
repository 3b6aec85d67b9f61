package quark

// OnErrorFunc receives computation faults raised while a reaction was
// running. The derivation that faulted is passed alongside the error.
type OnErrorFunc func(from Derivation, err error)

const defaultMaxReactionIterations = 100

// Config carries the collaborators a ReactiveContext needs at construction.
// There is no defaulted construction path; NewReactiveContext panics on a
// nil config.
type Config struct {
	// DisableErrorBoundaries makes staleness probing propagate computation
	// faults to the caller instead of containing them as "dependency
	// changed".
	DisableErrorBoundaries bool

	// MaxReactionIterations caps how many times the batch-end reaction
	// phase may drain the pending queue before the run is declared a
	// non-terminating reaction chain. Zero or negative selects the
	// default of 100.
	MaxReactionIterations int

	// OnError receives faults raised by reaction bodies. When nil, a
	// faulting reaction panics with its error.
	OnError OnErrorFunc
}
