// Command reactorbench measures write-to-settle propagation latency across
// synthetic dependency graphs of varying width and depth.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/runestone-dev/reactor/reactor"
)

const (
	renderKey = "renderer"
	itersKey  = "iterations"
)

func main() {
	cmd := &cli.Command{
		Name:  "reactorbench",
		Usage: "Benchmark propagation latency across reactor dependency graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  renderKey,
				Usage: "table renderer: pretty (default) or plain",
				Value: "pretty",
			},
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "writes performed per graph shape",
				Value: 100,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	widths  = []int{1, 10, 100, 1_000}
	heights = []int{1, 10, 100, 1_000}
)

type row struct {
	shape string
	avg   time.Duration
	min   time.Duration
	p75   time.Duration
	p99   time.Duration
	max   time.Duration
	n     int64
}

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))
	rows := benchmarkChains(iters)

	switch cmd.String(renderKey) {
	case "plain":
		renderPlain(rows)
	default:
		renderPretty(rows)
	}
	return nil
}

// benchmarkChains builds, for each (width, height) pair, `width` independent
// chains of `height` computeds fed by one shared source atom, with a
// reaction observing the tip of every chain, then times `iters` writes to
// the source.
func benchmarkChains(iters int) []row {
	var rows []row
	for _, w := range widths {
		for _, h := range heights {
			rows = append(rows, benchmarkOneShape(w, h, iters))
		}
	}
	return rows
}

func benchmarkOneShape(width, height, iters int) row {
	rt := reactor.NewRuntime(reactor.WithLogger(log.New(os.Stderr, "", 0)))
	src := reactor.NewObservableValue(rt, "src", 0, nil)

	scope := reactor.NewScope(rt)
	for i := 0; i < width; i++ {
		var tip *reactor.ComputedValue[int]
		tip = reactor.NewComputed(rt, "tip0", func(int) (int, error) { return src.Get() + 1, nil })
		for j := 1; j < height; j++ {
			prev := tip
			tip = reactor.NewComputed(rt, fmt.Sprintf("tip%d", j), func(int) (int, error) {
				v, err := prev.Get()
				return v + 1, err
			})
		}
		final := tip
		var r *reactor.Reaction
		r = reactor.NewReaction(rt, "leaf", func() {
			r.Track(func() error { _, err := final.Get(); return err })
		})
		r.Track(func() error { _, err := final.Get(); return err })
		scope.Track(r)
	}
	defer scope.Dispose()

	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	for i := 0; i < iters; i++ {
		start := time.Now()
		rt.Batch(func() { src.Set(i) })
		tach.AddTime(time.Since(start))
	}

	calc := tach.Calc()
	return row{
		shape: fmt.Sprintf("%d x %d", width, height),
		avg:   calc.Time.Avg,
		min:   calc.Time.Min,
		p75:   calc.Time.P75,
		p99:   calc.Time.P99,
		max:   calc.Time.Max,
		n:     int64(iters),
	}
}

func renderPretty(rows []row) {
	tbl := table.NewWriter()
	tbl.SetTitle("reactor propagation latency")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"shape", "writes", "avg", "min", "p75", "p99", "max"})
	for _, r := range rows {
		tbl.AppendRow(table.Row{r.shape, humanize.Comma(r.n), r.avg, r.min, r.p75, r.p99, r.max})
	}
	tbl.Render()
}

func renderPlain(rows []row) {
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"shape", "writes", "avg", "min", "p75", "p99", "max"})
	for _, r := range rows {
		tbl.Append([]string{
			r.shape,
			humanize.Comma(r.n),
			fmt.Sprint(r.avg),
			fmt.Sprint(r.min),
			fmt.Sprint(r.p75),
			fmt.Sprint(r.p99),
			fmt.Sprint(r.max),
		})
	}
	tbl.Render()
}
