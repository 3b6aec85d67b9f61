package quark

// DerivationState describes how much a derivation's cached result can be
// trusted. States are totally ordered by increasing staleness, so the
// minimum over a set of observers is meaningful.
type DerivationState int8

const (
	// NotTracking means the derivation has never run, or its tracking has
	// been suspended because nothing observes it anymore.
	NotTracking DerivationState = iota
	// UpToDate means the cached result is valid.
	UpToDate
	// PossiblyStale means an upstream derived dependency may have changed
	// but hasn't confirmed it yet.
	PossiblyStale
	// Stale means a recompute is confirmed to be required.
	Stale
)

func (s DerivationState) String() string {
	switch s {
	case NotTracking:
		return "not-tracking"
	case UpToDate:
		return "up-to-date"
	case PossiblyStale:
		return "possibly-stale"
	case Stale:
		return "stale"
	default:
		return "invalid"
	}
}
