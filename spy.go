package quark

import (
	"github.com/cespare/xxhash/v2"
)

// SpyEventKind discriminates spy events. Kinds are xxhash-derived from
// their names so they stay stable across processes and versions.
type SpyEventKind uint64

func spyKind(name string) SpyEventKind {
	return SpyEventKind(xxhash.Sum64String("quark/spy/" + name))
}

var (
	SpyObservableChanged = spyKind("observable-changed")
	SpyTrackStart        = spyKind("track-start")
	SpyTrackEnd          = spyKind("track-end")
	SpyBatchStart        = spyKind("batch-start")
	SpyBatchEnd          = spyKind("batch-end")
	SpyReactionScheduled = spyKind("reaction-scheduled")
	SpyUnobserved        = spyKind("unobserved")
)

var spyKindNames = map[SpyEventKind]string{
	SpyObservableChanged: "observable-changed",
	SpyTrackStart:        "track-start",
	SpyTrackEnd:          "track-end",
	SpyBatchStart:        "batch-start",
	SpyBatchEnd:          "batch-end",
	SpyReactionScheduled: "reaction-scheduled",
	SpyUnobserved:        "unobserved",
}

func (k SpyEventKind) String() string {
	if name, ok := spyKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// SpyEvent is one notification on the spy channel: observable changes,
// derivation tracking starts/stops, batch boundaries and unobservations.
// Name is empty for batch boundary events.
type SpyEvent struct {
	Kind SpyEventKind
	Name string
}

// SpyFunc receives spy events synchronously on the graph's thread of
// control; it must not mutate the graph.
type SpyFunc func(SpyEvent)

type spyListener struct {
	id uint64
	fn SpyFunc
}

// SpySubscribe registers fn on the spy channel and returns its
// unsubscribe function. Listeners receive each event in registration
// order.
func (ctx *ReactiveContext) SpySubscribe(fn SpyFunc) (unsubscribe func()) {
	ctx.spySeq++
	id := ctx.spySeq
	ctx.spySubs = append(ctx.spySubs, spyListener{id: id, fn: fn})
	return func() {
		for i, l := range ctx.spySubs {
			if l.id == id {
				ctx.spySubs = append(ctx.spySubs[:i], ctx.spySubs[i+1:]...)
				return
			}
		}
	}
}

func (ctx *ReactiveContext) spyReport(ev SpyEvent) {
	for _, l := range ctx.spySubs {
		l.fn(ev)
	}
}
