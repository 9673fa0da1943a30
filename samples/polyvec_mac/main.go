// Command polyvec_mac loads random operands into a polynomial MAC unit,
// accumulates, and checks the result it streams back.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/hwtb/bus"
	"github.com/sarchlab/hwtb/config"
	"github.com/sarchlab/hwtb/dut"
	"github.com/sarchlab/hwtb/kernel"
	"github.com/sarchlab/hwtb/kyber"
	"github.com/sarchlab/hwtb/samples/runner"
	"github.com/sarchlab/hwtb/tester"
	"github.com/tebeka/atexit"
)

var (
	rounds   = flag.Int("rounds", 2, "number of accumulations")
	subtract = flag.Bool("subtract", false, "subtract the products instead of adding them")
)

func defaultBench() *config.Bench {
	b := config.Default()
	b.Name = "polyvec_mac"
	b.Seed = 1
	b.CycleLimit = 1000000
	b.Buses = map[string]config.Bus{
		"din":  {Idle: "intermittent_single_cycles"},
		"dout": {Idle: "random_50_percent"},
	}
	b.DoneSignal = "o_done"
	b.Commands = map[string][]string{
		"recv_a":  {"i_recv_a"},
		"recv_b":  {"i_recv_b"},
		"recv_r":  {"i_recv_r"},
		"mac":     {"i_do_mac"},
		"mac_sub": {"i_do_mac", "i_subtract"},
		"send_r":  {"i_send_r"},
	}

	return b
}

func main() {
	opts := runner.ParseFlags()
	bench := opts.Bench(defaultBench())
	opts.ListSources(bench)
	logger := opts.Logger(bench.Level())
	k := opts.Kernel(bench.Name, bench, logger)

	mac := dut.MakePolyMACBuilder().
		WithKernel(k).
		WithLogger(logger).
		Build("PolyMAC")
	mac.Start()

	tb, err := tester.MakeBuilder().
		WithKernel(k).
		WithModule(mac.Module()).
		WithBench(bench).
		WithLogger(logger).
		Build(bench.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	runner.Trace(tb, logger)

	op := "mac"
	if *subtract {
		op = "mac_sub"
	}

	err = tb.Run(func(t *kernel.Task) error {
		if err := tb.Reset(t); err != nil {
			return err
		}

		r := kyber.RandomPoly(tb.Rand())
		if err := tb.Command(t, "recv_r", r.Coeffs()); err != nil {
			return err
		}

		for i := 0; i < *rounds; i++ {
			a := kyber.RandomPolyVec(tb.Rand())
			b := kyber.RandomPolyVec(tb.Rand())
			r = kyber.PolyVecNegaMAC(r, &a, &b, *subtract)

			if err := tb.Command(t, "recv_a", a.Coeffs()); err != nil {
				return err
			}

			if err := tb.Command(t, "recv_b", b.Coeffs()); err != nil {
				return err
			}

			if err := tb.Command(t, op, nil); err != nil {
				return err
			}
		}

		expected := make(bus.Transaction, kyber.N)
		for i, c := range r {
			expected[i] = bus.Word(c)
		}

		tb.SetExpected(expected)

		return tb.Command(t, "send_r", nil)
	})

	opts.Finish(tb, err)
}
