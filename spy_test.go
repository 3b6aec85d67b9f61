package quark_test

import (
	"testing"

	"github.com/delaneyj/quark"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpyReportsDiscriminatedEvents(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	counts := map[quark.SpyEventKind]int{}
	unsubscribe := ctx.SpySubscribe(func(ev quark.SpyEvent) {
		counts[ev.Kind]++
	})

	b := quark.Box(ctx, 1, "b")
	r := quark.Autorun(ctx, "watch", func() error {
		b.Get()
		return nil
	})
	b.Set(2)
	r.Dispose()

	assert.Positive(t, counts[quark.SpyBatchStart])
	assert.Equal(t, counts[quark.SpyBatchStart], counts[quark.SpyBatchEnd])
	assert.Equal(t, 2, counts[quark.SpyTrackStart], "initial run plus one change")
	assert.Equal(t, counts[quark.SpyTrackStart], counts[quark.SpyTrackEnd])
	assert.Equal(t, 1, counts[quark.SpyObservableChanged])
	assert.Equal(t, 2, counts[quark.SpyReactionScheduled])
	assert.Equal(t, 1, counts[quark.SpyUnobserved])

	// unsubscribing stops delivery
	before := counts[quark.SpyObservableChanged]
	unsubscribe()
	b.Set(3)
	assert.Equal(t, before, counts[quark.SpyObservableChanged])
}

func TestSpyEventKindsAreStableAndNamed(t *testing.T) {
	assert.Equal(t, "observable-changed", quark.SpyObservableChanged.String())
	assert.Equal(t, "batch-end", quark.SpyBatchEnd.String())
	assert.NotEqual(t, quark.SpyTrackStart, quark.SpyTrackEnd)
	assert.Equal(t, "unknown", quark.SpyEventKind(0).String())
}

func TestSpyDeliversInRegistrationOrder(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	var order []string
	stopFirst := ctx.SpySubscribe(func(ev quark.SpyEvent) {
		if ev.Kind == quark.SpyObservableChanged {
			order = append(order, "first")
		}
	})
	defer stopFirst()
	stopSecond := ctx.SpySubscribe(func(ev quark.SpyEvent) {
		if ev.Kind == quark.SpyObservableChanged {
			order = append(order, "second")
		}
	})
	defer stopSecond()

	b := quark.Box(ctx, 1, "b")
	b.Set(2)
	b.Set(3)
	assert.Equal(t, []string{"first", "second", "first", "second"}, order)

	// removing a listener keeps the remaining order intact
	stopFirst()
	b.Set(4)
	assert.Equal(t, []string{"first", "second", "first", "second", "second"}, order)
}

func TestSpyToLoggerUnsubscribesCleanly(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	logger := zerolog.Nop()
	stop := quark.SpyToLogger(ctx, logger)

	b := quark.Box(ctx, 1, "b")
	b.Set(2)
	stop()
	assert.NotPanics(t, func() { b.Set(3) })
}

func TestMetricsCountSpyEvents(t *testing.T) {
	ctx := quark.NewReactiveContext(&quark.Config{})
	reg := prometheus.NewRegistry()
	m, err := quark.ObserveMetrics(ctx, reg)
	require.NoError(t, err)
	defer m.Close()

	b := quark.Box(ctx, 1, "b")
	r := quark.Autorun(ctx, "", func() error {
		b.Get()
		return nil
	})
	defer r.Dispose()
	b.Set(2)
	b.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ObservableChanges))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TrackedRuns))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReactionsScheduled))
	assert.Positive(t, testutil.ToFloat64(m.Batches))

	// double registration is rejected, not silently duplicated
	_, err = quark.ObserveMetrics(ctx, reg)
	assert.Error(t, err)
}
