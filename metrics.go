package quark

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts spy events into prometheus counters so an embedding
// application can watch its reactive graph the same way it watches the
// rest of its runtime.
type Metrics struct {
	Batches            prometheus.Counter
	TrackedRuns        prometheus.Counter
	ObservableChanges  prometheus.Counter
	ReactionsScheduled prometheus.Counter
	Unobservations     prometheus.Counter

	unsubscribe func()
}

// ObserveMetrics registers a counter set on reg and feeds it from ctx's
// spy channel until Close is called.
func ObserveMetrics(ctx *ReactiveContext, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quark_batches_total",
			Help: "Outermost batch scopes completed.",
		}),
		TrackedRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quark_tracked_runs_total",
			Help: "Derivation tracked runs executed.",
		}),
		ObservableChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quark_observable_changes_total",
			Help: "Observable change notifications propagated.",
		}),
		ReactionsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quark_reactions_scheduled_total",
			Help: "Reactions queued for the batch-end reaction phase.",
		}),
		Unobservations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quark_unobservations_total",
			Help: "Observables swept after their observer count reached zero.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.Batches, m.TrackedRuns, m.ObservableChanges, m.ReactionsScheduled, m.Unobservations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering quark metrics: %w", err)
		}
	}
	m.unsubscribe = ctx.SpySubscribe(func(ev SpyEvent) {
		switch ev.Kind {
		case SpyBatchEnd:
			m.Batches.Inc()
		case SpyTrackStart:
			m.TrackedRuns.Inc()
		case SpyObservableChanged:
			m.ObservableChanges.Inc()
		case SpyReactionScheduled:
			m.ReactionsScheduled.Inc()
		case SpyUnobserved:
			m.Unobservations.Inc()
		}
	})
	return m, nil
}

// Close stops feeding the counters. Registered collectors stay registered.
func (m *Metrics) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}
