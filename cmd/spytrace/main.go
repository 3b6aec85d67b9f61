package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/delaneyj/quark"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
)

// spytrace runs a small diamond workload under a spy subscription and
// renders what the graph did: every event logged as it happens, then a
// per-kind summary table.
func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()

	ctx := quark.NewReactiveContext(&quark.Config{})
	stopLog := quark.SpyToLogger(ctx, logger)
	defer stopLog()

	counts := map[quark.SpyEventKind]int{}
	stopCount := ctx.SpySubscribe(func(ev quark.SpyEvent) {
		counts[ev.Kind]++
	})
	defer stopCount()

	celsius := quark.Box(ctx, 20, "celsius")
	fahrenheit := quark.Computed(ctx, "fahrenheit", func() (int, error) {
		return celsius.Get()*9/5 + 32, nil
	})
	kelvin := quark.Computed(ctx, "kelvin", func() (int, error) {
		return celsius.Get() + 273, nil
	})
	report := quark.Computed(ctx, "report", func() (string, error) {
		f, err := fahrenheit.Get()
		if err != nil {
			return "", err
		}
		k, err := kelvin.Get()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d°F / %dK", f, k), nil
	})

	watcher := quark.Autorun(ctx, "display", func() error {
		s, err := report.Get()
		if err != nil {
			return err
		}
		logger.Info().Str("report", s).Msg("temperature")
		return nil
	})

	for _, c := range []int{21, 25, 25, -40} {
		celsius.Set(c)
	}
	ctx.Batch(func() {
		celsius.Set(0)
		celsius.Set(100)
	})
	watcher.Dispose()

	kinds := make([]quark.SpyEventKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].String() < kinds[j].String() })

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"event", "count"})
	for _, k := range kinds {
		tbl.Append([]string{k.String(), fmt.Sprint(counts[k])})
	}
	tbl.Render()
}
