// Command cbd checks a CBD sampler against the reference sampler on noise
// expanded from random seeds.
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

var polys = flag.Int("polys", 4, "number of noise polynomials to sample")

func defaultBench() *config.Bench {
	b := config.Default()
	b.Name = "cbd"
	b.Seed = 1
	b.CycleLimit = 200000
	b.OutputBus = "coeffout"
	b.Buses = map[string]config.Bus{
		"din":      {Idle: "wave"},
		"coeffout": {Idle: "random_50_percent"},
	}

	return b
}

// nibbles splits every byte into its low and its high nibble.
func nibbles(buf []byte) []bus.Word {
	out := make([]bus.Word, 0, 2*len(buf))
	for _, b := range buf {
		out = append(out, bus.Word(b&0xf), bus.Word(b>>4))
	}

	return out
}

func coefficients(p kyber.Poly) bus.Transaction {
	tr := make(bus.Transaction, len(p))
	for i, c := range p {
		tr[i] = bus.Word(c)
	}

	return tr
}

func main() {
	opts := runner.ParseFlags()
	bench := opts.Bench(defaultBench())
	opts.ListSources(bench)
	logger := opts.Logger(bench.Level())
	k := opts.Kernel(bench.Name, bench, logger)

	sampler := dut.MakeCBDSamplerBuilder().
		WithKernel(k).
		WithLogger(logger).
		Build("CBD")
	sampler.Start()

	tb, err := tester.MakeBuilder().
		WithKernel(k).
		WithModule(sampler.Module()).
		WithBench(bench).
		WithLogger(logger).
		Build(bench.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	runner.Trace(tb, logger)

	err = tb.Run(func(t *kernel.Task) error {
		if err := tb.Reset(t); err != nil {
			return err
		}

		seed := make([]byte, kyber.SymBytes)

		for nonce := 0; nonce < *polys; nonce++ {
			tb.Rand().Read(seed)

			buf, err := kyber.NoiseSeed(seed, byte(nonce))
			if err != nil {
				return err
			}

			ref, err := kyber.CBD(buf)
			if err != nil {
				return err
			}

			tb.SetExpected(coefficients(ref))

			if err := tb.SendInput(t, nibbles(buf)); err != nil {
				return err
			}

			tb.WaitTransaction(t)
		}

		return nil
	})

	opts.Finish(tb, err)
}
