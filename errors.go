package quark

import "errors"

// Usage faults are fatal and delivered as panics wrapping one of these
// sentinels, so callers that insist on recovering can still match them
// with errors.Is.
var (
	ErrMissingConfig     = errors.New("quark: reactive context requires a non-nil config")
	ErrUnbalancedBatch   = errors.New("quark: EndBatch called without a matching StartBatch")
	ErrInvalidStateRead  = errors.New("quark: observable read while state reads are disallowed")
	ErrInvalidWrite      = errors.New("quark: side effects are not allowed inside a computation")
	ErrCaughtCycle       = errors.New("quark: cycle detected, a computed value read itself during its own computation")
	ErrReactionsDiverged = errors.New("quark: reactions did not settle, non-terminating reaction chain")
)
