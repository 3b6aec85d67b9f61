package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/quark"
	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	configKey     = "config"
	iterationsKey = "iterations"
)

type benchmarkConfig struct {
	Widths     []int `toml:"widths"`
	Heights    []int `toml:"heights"`
	Iterations int   `toml:"iterations"`
}

func defaultConfig() benchmarkConfig {
	return benchmarkConfig{
		Widths:     []int{1, 10, 100, 1_000},
		Heights:    []int{1, 10, 100},
		Iterations: 100,
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure propagation latency through layered quark graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  configKey,
				Usage: "TOML file describing the workload grid",
			},
			&cli.IntFlag{
				Name:  iterationsKey,
				Usage: "Override the number of writes per workload",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(_ context.Context, cmd *cli.Command) error {
	cfg := defaultConfig()
	if path := cmd.String(configKey); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if n := cmd.Int(iterationsKey); n > 0 {
		cfg.Iterations = int(n)
	}

	tbl := table.NewWriter()
	tbl.SetTitle("quark propagation")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "writes", "avg", "min", "p75", "p99", "max", "checksum"})

	for _, w := range cfg.Widths {
		for _, h := range cfg.Heights {
			tach := tachymeter.New(&tachymeter.Config{Size: cfg.Iterations})

			ctx := quark.NewReactiveContext(&quark.Config{})
			src := quark.Box(ctx, 1, "src")

			// w independent chains of h computed layers, each watched by
			// an autorun feeding the checksum
			digest := xxhash.New()
			var buf [8]byte
			reactions := make([]*quark.Reaction, 0, w)
			for i := 0; i < w; i++ {
				last := func() (int, error) { return src.Get(), nil }
				for j := 0; j < h; j++ {
					prev := last
					c := quark.Computed(ctx, "", func() (int, error) {
						v, err := prev()
						if err != nil {
							return 0, err
						}
						return v + 1, nil
					})
					last = c.Get
				}
				view := last
				reactions = append(reactions, quark.Autorun(ctx, "", func() error {
					v, err := view()
					if err != nil {
						return err
					}
					putUint64(&buf, uint64(v))
					digest.Write(buf[:])
					return nil
				}))
			}

			for i := 0; i < cfg.Iterations; i++ {
				start := time.Now()
				src.Set(src.Get() + 1)
				tach.AddTime(time.Since(start))
			}
			for _, r := range reactions {
				r.Dispose()
			}

			calc := tach.Calc()
			tbl.AppendRow(table.Row{
				fmt.Sprintf("propagate %d * %d", w, h),
				humanize.Comma(int64(cfg.Iterations)),
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
				fmt.Sprintf("%016x", digest.Sum64()),
			})
		}
	}

	tbl.Render()
	return nil
}

func putUint64(buf *[8]byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}
