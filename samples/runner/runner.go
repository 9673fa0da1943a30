// Package runner holds what the sample benches share: command line flags,
// logging setup, the optional web monitor and the closing summary.
package runner

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hwtb/config"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/manifest"
	"github.com/sarchlab/hwtb/tester"
	"github.com/tebeka/atexit"
)

// Options are the flags every sample accepts.
type Options struct {
	BenchFile string
	LogFile   string
	Report    string
	Seed      int64
	Monitor   bool
	Manifest  string
	Top       string

	seedSet bool
}

// ParseFlags reads the command line.
func ParseFlags() *Options {
	o := &Options{}

	flag.StringVar(&o.BenchFile, "bench", "", "bench description (YAML)")
	flag.StringVar(&o.LogFile, "log", "", "write JSON logs to this file instead of stderr")
	flag.StringVar(&o.Report, "report", "", "write the scoreboard report to this file")
	flag.Int64Var(&o.Seed, "seed", 0, "override the seed of the bench")
	flag.BoolVar(&o.Monitor, "monitor", false, "serve the akita monitor while simulating")
	flag.StringVar(&o.Manifest, "manifest", "", "list the sources of the device from this manifest")
	flag.StringVar(&o.Top, "top", "", "manifest module of the device, defaults to the bench name")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			o.seedSet = true
		}
	})

	return o
}

// Bench loads the bench file, or returns def if none was given.
func (o *Options) Bench(def *config.Bench) *config.Bench {
	b := def

	if o.BenchFile != "" {
		loaded, err := config.Load(o.BenchFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			atexit.Exit(2)
		}

		b = loaded
	}

	if o.seedSet {
		b.Seed = o.Seed
	}

	return b
}

// ListSources prints the compile order of the device sources when a manifest
// was given.
func (o *Options) ListSources(b *config.Bench) {
	if o.Manifest == "" {
		return
	}

	m, err := manifest.Load(o.Manifest)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	top := o.Top
	if top == "" {
		top = b.Name
	}

	if err := WriteSources(os.Stdout, m, top); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}
}

// WriteSources renders the sources of module top, dependencies first.
func WriteSources(w io.Writer, m *manifest.Manifest, top string) error {
	order, err := m.DependencyOrder(top)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Sources of " + top)
	t.AppendHeader(table.Row{"#", "File", "Library"})

	for i, src := range order {
		lib := src.Library
		if lib == "" {
			lib = "work"
		}

		t.AppendRow(table.Row{i + 1, src.File, lib})
	}

	t.Render()

	return nil
}

// Logger creates the logger of the run.
func (o *Options) Logger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if o.LogFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	f, err := os.Create(o.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open log file:", err)
		atexit.Exit(2)
	}

	atexit.Register(func() { f.Close() })

	return slog.New(slog.NewJSONHandler(f, opts))
}

// Kernel builds the kernel of the run.
func (o *Options) Kernel(name string, b *config.Bench, logger *slog.Logger) *kernel.Kernel {
	engine := sim.NewSerialEngine()

	if o.Monitor {
		monitor := monitoring.NewMonitor()
		monitor.RegisterEngine(engine)
		monitor.StartServer()
	}

	return b.ApplyKernel(kernel.MakeBuilder().
		WithEngine(engine).
		WithLogger(logger)).
		Build(name)
}

// Trace forwards the events of every component of tb to logger when trace
// records are enabled.
func Trace(tb *tester.Tester, logger *slog.Logger) {
	if !logger.Enabled(context.Background(), kernel.LevelTrace) {
		return
	}

	hook := kernel.NewLogHook(logger)
	tb.Kernel().AcceptHook(hook)
	tb.Driver().AcceptHook(hook)
	tb.Monitor().AcceptHook(hook)
	tb.Scoreboard().AcceptHook(hook)

	if c := tb.Controller(); c != nil {
		c.AcceptHook(hook)
	}
}

// Summarize prints a table about the run and the scoreboard report.
func Summarize(w io.Writer, tb *tester.Tester, err error) {
	k := tb.Kernel()

	result := "PASS"
	if err != nil {
		result = "FAIL"
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Bench", "Cycles", "Time (ns)", "Matched", "Failures", "Result"})
	t.AppendRow(table.Row{
		tb.Name(),
		k.Cycle(),
		fmt.Sprintf("%.1f", float64(k.Now())*1e9),
		tb.Scoreboard().Matched(),
		len(tb.Scoreboard().Mismatches()),
		result,
	})
	t.Render()

	tb.Scoreboard().WriteReport(w)

	if err != nil {
		fmt.Fprintln(w, "error:", err)
	}
}

// Finish prints the summary, saves the report if asked to, and exits with a
// status that tells whether the run passed.
func (o *Options) Finish(tb *tester.Tester, err error) {
	Summarize(os.Stdout, tb, err)

	if o.Report != "" {
		if rerr := tb.Scoreboard().SaveReport(o.Report); rerr != nil {
			fmt.Fprintln(os.Stderr, rerr)
		}
	}

	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
